// Package export writes coding results to files: the aggregated code lists
// and per-interview assignments as JSON, and the coding matrix as CSV or XLSX.
package export

import (
	"fmt"
	"slices"
	"strings"
)

// Format identifies an output file format. Its value is also the file
// extension.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// Kind identifies one logical output artifact.
type Kind string

const (
	KindAggregated Kind = "aggregated_codes"
	KindInterviews Kind = "interview_codes"
	KindMatrix     Kind = "coding_matrix"
)

// DefaultFormats are written when no formats are configured.
var DefaultFormats = []Format{FormatJSON, FormatXLSX}

// artifacts lists what each format writes. JSON carries the two maps;
// the tabular formats carry the matrix.
var artifacts = map[Format][]Kind{
	FormatJSON: {KindAggregated, KindInterviews},
	FormatCSV:  {KindMatrix},
	FormatXLSX: {KindMatrix},
}

// Valid reports whether f is a supported format.
func (f Format) Valid() bool {
	_, ok := artifacts[f]
	return ok
}

// Kinds returns the artifacts written in format f.
func (f Format) Kinds() []Kind {
	return artifacts[f]
}

// ParseFormats parses format names, each of which may be a comma-separated
// list. Names are case-insensitive and duplicates are dropped.
func ParseFormats(names []string) ([]Format, error) {
	var formats []Format
	for _, name := range names {
		for part := range strings.SplitSeq(name, ",") {
			f := Format(strings.ToLower(strings.TrimSpace(part)))
			switch {
			case f == "" || slices.Contains(formats, f):
			case !f.Valid():
				return nil, fmt.Errorf("unknown export format %q (supported: %s)", part, strings.Join(SupportedFormats(), ", "))
			default:
				formats = append(formats, f)
			}
		}
	}
	return formats, nil
}

// SupportedFormats returns the format names, sorted.
func SupportedFormats() []string {
	names := make([]string, 0, len(artifacts))
	for f := range artifacts {
		names = append(names, string(f))
	}
	slices.Sort(names)
	return names
}
