// Package matrix turns aggregated codes and per-interview assignments into a
// code presence matrix ready for export and review.
package matrix

import (
	"sort"

	"github.com/c360studio/qualcoder/coding"
)

// Source is the input of the materializer: the two maps produced by an
// aggregation run plus the orderings they are read in.
type Source struct {
	// Keys orders the question groups. Keys missing from Vocabularies are
	// ignored; vocabularies not listed here follow in sorted order.
	Keys []string

	// InterviewIDs orders the presence columns.
	InterviewIDs []string

	// Vocabularies maps a question key to its codes in discovery order.
	Vocabularies map[string][]string

	// Assignments maps interview id -> question key -> assigned codes.
	Assignments map[string]map[string][]string
}

// FromResult adapts an aggregation result.
func FromResult(res *coding.Result) Source {
	return Source{
		Keys:         res.Keys,
		InterviewIDs: res.InterviewIDs,
		Vocabularies: res.Vocabularies,
		Assignments:  res.Assignments,
	}
}

// Row is one (question, code) pair of the matrix.
type Row struct {
	Question string
	Code     string

	// Present is aligned with Matrix.InterviewIDs.
	Present []bool
	Count   int
}

// Matrix is the ordered coding matrix.
type Matrix struct {
	InterviewIDs []string
	Rows         []Row
}

// Build computes the matrix rows. Rows follow question order; within a
// question they are sorted by count descending with ties kept in discovery
// order.
func Build(src Source) *Matrix {
	m := &Matrix{InterviewIDs: append([]string(nil), src.InterviewIDs...)}

	for _, key := range orderedKeys(src) {
		codes := src.Vocabularies[key]
		group := make([]Row, 0, len(codes))
		for _, code := range codes {
			row := Row{
				Question: key,
				Code:     code,
				Present:  make([]bool, len(m.InterviewIDs)),
			}
			for i, id := range m.InterviewIDs {
				if contains(src.Assignments[id][key], code) {
					row.Present[i] = true
					row.Count++
				}
			}
			group = append(group, row)
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Count > group[j].Count
		})
		m.Rows = append(m.Rows, group...)
	}
	return m
}

// PresentIn reports whether row r was assigned to interview id.
func (m *Matrix) PresentIn(r int, id string) bool {
	for i, iid := range m.InterviewIDs {
		if iid == id {
			return m.Rows[r].Present[i]
		}
	}
	return false
}

// Spans returns the merged display layout of the matrix rows.
func (m *Matrix) Spans() []Span {
	return MergedLayout(m.Rows)
}

func orderedKeys(src Source) []string {
	seen := make(map[string]bool, len(src.Vocabularies))
	keys := make([]string, 0, len(src.Vocabularies))
	for _, k := range src.Keys {
		if _, ok := src.Vocabularies[k]; ok && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	var rest []string
	for k := range src.Vocabularies {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func contains(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
