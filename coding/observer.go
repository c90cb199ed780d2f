package coding

import "time"

// Cell identifies one classifier call.
type Cell struct {
	RunID string

	// Row is the zero-based question row in the table.
	Row      int
	Question string

	// Key is the vocabulary key the row folds into. It equals Question under
	// ScopeQuestionText.
	Key string

	InterviewIndex int
	InterviewID    string
	Answer         string

	// Existing is the vocabulary snapshot passed to the classifier.
	Existing []string
}

// Observer receives progress callbacks from an aggregation run. With
// parallelism above one, callbacks for different vocabulary keys may arrive
// concurrently, so implementations must be safe for concurrent use.
type Observer interface {
	CellSkipped(cell Cell)
	CellStarted(cell Cell)
	CellCompleted(cell Cell, codes []string, elapsed time.Duration)
	CellFailed(cell Cell, err error, elapsed time.Duration)
}

// NopObserver ignores every callback. Embed it to implement a subset.
type NopObserver struct{}

func (NopObserver) CellSkipped(Cell)                            {}
func (NopObserver) CellStarted(Cell)                            {}
func (NopObserver) CellCompleted(Cell, []string, time.Duration) {}
func (NopObserver) CellFailed(Cell, error, time.Duration)       {}

// Observers fans callbacks out to several observers in order.
type Observers []Observer

func (o Observers) CellSkipped(cell Cell) {
	for _, obs := range o {
		obs.CellSkipped(cell)
	}
}

func (o Observers) CellStarted(cell Cell) {
	for _, obs := range o {
		obs.CellStarted(cell)
	}
}

func (o Observers) CellCompleted(cell Cell, codes []string, elapsed time.Duration) {
	for _, obs := range o {
		obs.CellCompleted(cell, codes, elapsed)
	}
}

func (o Observers) CellFailed(cell Cell, err error, elapsed time.Duration) {
	for _, obs := range o {
		obs.CellFailed(cell, err, elapsed)
	}
}
