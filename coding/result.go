package coding

import (
	"fmt"
	"time"
)

// CellFailure records a classifier call that did not produce codes. The cell
// counts as having produced an empty code list.
type CellFailure struct {
	Row            int
	Question       string
	InterviewIndex int
	InterviewID    string
	Err            error
}

func (f CellFailure) Error() string {
	return fmt.Sprintf("row %d %q, interview %q: %v", f.Row+1, f.Question, f.InterviewID, f.Err)
}

func (f CellFailure) Unwrap() error {
	return f.Err
}

// Result is the outcome of one aggregation run.
type Result struct {
	RunID string
	Scope Scope

	// Keys lists vocabulary keys in the order their first row appears.
	Keys []string

	// RowKeys maps each table row to its vocabulary key.
	RowKeys []string

	// InterviewIDs lists interviews in table column order.
	InterviewIDs []string

	// Vocabularies maps a key to its codes in discovery order.
	Vocabularies map[string][]string

	// Assignments maps interview id -> key -> codes the classifier returned
	// for that cell, de-duplicated in return order. Every interview has an
	// entry; a key is absent when the interview answered none of its rows.
	// Failed cells are present with an empty list.
	Assignments map[string]map[string][]string

	Failures []CellFailure

	// Calls counts classifier invocations; Skipped counts absent cells.
	Calls   int
	Skipped int

	StartedAt   time.Time
	CompletedAt time.Time
}

// Codes returns the vocabulary of key.
func (r *Result) Codes(key string) []string {
	return r.Vocabularies[key]
}

// Assigned returns the codes assigned to interviewID under key and whether
// the cell was classified at all.
func (r *Result) Assigned(interviewID, key string) ([]string, bool) {
	codes, ok := r.Assignments[interviewID][key]
	return codes, ok
}

// FailedCells returns the number of cells whose classifier call failed.
func (r *Result) FailedCells() int {
	return len(r.Failures)
}

// TotalCodes returns the number of distinct codes across all vocabularies.
func (r *Result) TotalCodes() int {
	n := 0
	for _, codes := range r.Vocabularies {
		n += len(codes)
	}
	return n
}
