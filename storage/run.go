package storage

import (
	"time"

	"github.com/c360studio/qualcoder/coding"
)

// RunStatus represents the status of a coding run.
type RunStatus string

const (
	RunStatusPending  RunStatus = "pending"
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Terminal reports whether no further transitions are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusComplete || s == RunStatusFailed
}

// Run is a persisted coding run.
type Run struct {
	ID     string    `json:"id"`
	Input  string    `json:"input"`
	Model  string    `json:"model"`
	Scope  string    `json:"scope"`
	Status RunStatus `json:"status"`
	Error  string    `json:"error,omitempty"`

	Questions  int `json:"questions"`
	Interviews int `json:"interviews"`
	Calls      int `json:"calls"`
	Failures   int `json:"failures"`
	Skipped    int `json:"skipped"`
	TotalCodes int `json:"total_codes"`

	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	StatusChanges []StatusChange `json:"status_changes,omitempty"`

	// Vocabularies and Assignments are ordered like the result they were
	// taken from.
	Vocabularies []KeyCodes       `json:"vocabularies,omitempty"`
	Assignments  []InterviewCodes `json:"assignments,omitempty"`
}

// StatusChange records a status transition.
type StatusChange struct {
	From      RunStatus `json:"from"`
	To        RunStatus `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// KeyCodes is the code list of one vocabulary key.
type KeyCodes struct {
	Key   string   `json:"key"`
	Codes []string `json:"codes"`
}

// InterviewCodes is the assignment of one interview.
type InterviewCodes struct {
	InterviewID string     `json:"interview_id"`
	Codes       []KeyCodes `json:"codes"`
}

// ApplyResult copies counts, vocabularies and assignments from res.
func (r *Run) ApplyResult(res *coding.Result) {
	r.Scope = string(res.Scope)
	r.Questions = len(res.RowKeys)
	r.Interviews = len(res.InterviewIDs)
	r.Calls = res.Calls
	r.Failures = res.FailedCells()
	r.Skipped = res.Skipped
	r.TotalCodes = res.TotalCodes()

	r.Vocabularies = make([]KeyCodes, 0, len(res.Keys))
	for _, key := range res.Keys {
		r.Vocabularies = append(r.Vocabularies, KeyCodes{Key: key, Codes: res.Codes(key)})
	}

	r.Assignments = make([]InterviewCodes, 0, len(res.InterviewIDs))
	for _, id := range res.InterviewIDs {
		ic := InterviewCodes{InterviewID: id, Codes: []KeyCodes{}}
		for _, key := range res.Keys {
			if codes, ok := res.Assigned(id, key); ok {
				ic.Codes = append(ic.Codes, KeyCodes{Key: key, Codes: codes})
			}
		}
		r.Assignments = append(r.Assignments, ic)
	}
}

// CellOutcome is one classifier call of a run.
type CellOutcome struct {
	RunID          string    `json:"run_id"`
	Row            int       `json:"row"`
	Question       string    `json:"question"`
	Key            string    `json:"key"`
	InterviewIndex int       `json:"interview_index"`
	InterviewID    string    `json:"interview_id"`
	Answer         string    `json:"answer"`
	Existing       []string  `json:"existing"`
	Codes          []string  `json:"codes"`
	Error          string    `json:"error,omitempty"`
	DurationMs     int64     `json:"duration_ms"`
	RecordedAt     time.Time `json:"recorded_at"`
}

// Failed reports whether the call produced an error.
func (c *CellOutcome) Failed() bool {
	return c.Error != ""
}
