package storage

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/qualcoder/coding"
)

// recordTimeout bounds one cell write.
const recordTimeout = 5 * time.Second

// Recorder is a coding.Observer that stores one CellOutcome per classifier
// call. Write failures are logged and do not affect the run.
type Recorder struct {
	coding.NopObserver

	store  *Store
	ctx    context.Context
	logger *slog.Logger

	mu   sync.Mutex
	errs []error
}

// NewRecorder creates a recorder. Writes use ctx's values but not its
// cancellation, so cells completed before a cancel are still stored.
func NewRecorder(ctx context.Context, store *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		ctx:    context.WithoutCancel(ctx),
		logger: logger,
	}
}

func (r *Recorder) CellCompleted(cell coding.Cell, codes []string, elapsed time.Duration) {
	r.record(cell, codes, nil, elapsed)
}

func (r *Recorder) CellFailed(cell coding.Cell, err error, elapsed time.Duration) {
	r.record(cell, []string{}, err, elapsed)
}

func (r *Recorder) record(cell coding.Cell, codes []string, cellErr error, elapsed time.Duration) {
	outcome := &CellOutcome{
		RunID:          cell.RunID,
		Row:            cell.Row,
		Question:       cell.Question,
		Key:            cell.Key,
		InterviewIndex: cell.InterviewIndex,
		InterviewID:    cell.InterviewID,
		Answer:         cell.Answer,
		Existing:       cell.Existing,
		Codes:          codes,
		DurationMs:     elapsed.Milliseconds(),
		RecordedAt:     r.store.now(),
	}
	if cellErr != nil {
		outcome.Error = cellErr.Error()
	}

	ctx, cancel := context.WithTimeout(r.ctx, recordTimeout)
	defer cancel()

	if err := r.store.PutCell(ctx, outcome); err != nil {
		r.logger.Warn("Failed to record cell",
			"run_id", cell.RunID,
			"question", cell.Question,
			"interview", cell.InterviewID,
			"error", err)
		r.mu.Lock()
		r.errs = append(r.errs, err)
		r.mu.Unlock()
	}
}

// Err returns the joined write errors, or nil.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}
