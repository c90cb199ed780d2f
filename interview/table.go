// Package interview loads interview response grids into a normalized table.
//
// A grid carries interview identifiers in its header row (columns 1..n of
// row 0) and question text in column 0 of rows 1..m. Every other cell is the
// response of one interview to one question.
package interview

import "fmt"

// Grid is a raw two-dimensional cell grid as read from a spreadsheet or
// delimited file. Rows may be ragged.
type Grid [][]string

// Table is the normalized, typed view of an interview grid.
//
// The interview axis is fixed for the lifetime of the table. Questions keep
// their original row order and may repeat; each occurrence is a separate row.
type Table struct {
	questions    []string
	interviewIDs []string
	index        map[string]int

	// cells[row][interview] is nil when the interview gave no response.
	cells [][]*string
}

// NewTable creates an empty table for the given axes. Interview identifiers
// must be distinct.
func NewTable(questions, interviewIDs []string) (*Table, error) {
	index := make(map[string]int, len(interviewIDs))
	for i, id := range interviewIDs {
		if _, dup := index[id]; dup {
			return nil, fmt.Errorf("duplicate interview id %q", id)
		}
		index[id] = i
	}

	cells := make([][]*string, len(questions))
	for q := range cells {
		cells[q] = make([]*string, len(interviewIDs))
	}

	return &Table{
		questions:    append([]string(nil), questions...),
		interviewIDs: append([]string(nil), interviewIDs...),
		index:        index,
		cells:        cells,
	}, nil
}

// Questions returns the question text of every row, in row order.
func (t *Table) Questions() []string {
	return append([]string(nil), t.questions...)
}

// Question returns the question text of row q.
func (t *Table) Question(q int) string {
	return t.questions[q]
}

// InterviewIDs returns the interview identifiers in column order.
func (t *Table) InterviewIDs() []string {
	return append([]string(nil), t.interviewIDs...)
}

// NumQuestions returns the number of question rows.
func (t *Table) NumQuestions() int {
	return len(t.questions)
}

// NumInterviews returns the number of interview columns.
func (t *Table) NumInterviews() int {
	return len(t.interviewIDs)
}

// Set stores a response for row q and interview column i. An empty string is
// a present, empty response; use Clear to mark a cell absent.
func (t *Table) Set(q, i int, response string) {
	r := response
	t.cells[q][i] = &r
}

// Clear marks the cell at row q, interview column i as absent.
func (t *Table) Clear(q, i int) {
	t.cells[q][i] = nil
}

// At returns the response at row q and interview column i. The boolean is
// false when the interview gave no response.
func (t *Table) At(q, i int) (string, bool) {
	c := t.cells[q][i]
	if c == nil {
		return "", false
	}
	return *c, true
}

// Cell returns the response of the named interview for row q.
func (t *Table) Cell(q int, interviewID string) (string, bool) {
	i, ok := t.index[interviewID]
	if !ok {
		return "", false
	}
	return t.At(q, i)
}

// Responses counts the present cells in the table.
func (t *Table) Responses() int {
	n := 0
	for _, row := range t.cells {
		for _, c := range row {
			if c != nil {
				n++
			}
		}
	}
	return n
}
