package coding

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/qualcoder/interview"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Aggregator folds classifier output over an interview table.
type Aggregator struct {
	classifier  Classifier
	scope       Scope
	callTimeout time.Duration
	parallelism int
	rawCodes    bool
	runID       string
	observer    Observer
	logger      *slog.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithScope sets the vocabulary scope policy.
func WithScope(scope Scope) Option {
	return func(a *Aggregator) {
		a.scope = scope
	}
}

// WithCallTimeout bounds every classifier call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		a.callTimeout = d
	}
}

// WithParallelism sets how many vocabularies are processed at once.
func WithParallelism(n int) Option {
	return func(a *Aggregator) {
		a.parallelism = n
	}
}

// WithRawCodes keeps classifier codes exactly as returned. By default codes
// are whitespace-trimmed and empty codes are dropped.
func WithRawCodes(raw bool) Option {
	return func(a *Aggregator) {
		a.rawCodes = raw
	}
}

// WithRunID sets the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(a *Aggregator) {
		a.runID = id
	}
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(a *Aggregator) {
		a.observer = o
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// NewAggregator creates an aggregator around the given classifier.
func NewAggregator(c Classifier, opts ...Option) *Aggregator {
	a := &Aggregator{
		classifier:  c,
		scope:       ScopeQuestionText,
		parallelism: 1,
		observer:    NopObserver{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.parallelism < 1 {
		a.parallelism = 1
	}
	return a
}

// Aggregate runs the classifier over table with a fresh Aggregator.
func Aggregate(ctx context.Context, table *interview.Table, c Classifier, opts ...Option) (*Result, error) {
	return NewAggregator(c, opts...).Aggregate(ctx, table)
}

// unit is the state owned by one vocabulary key.
type unit struct {
	key      string
	rows     []int
	vocab    *Vocabulary
	assigned []*Vocabulary // per interview column; last classified row wins
	failures []CellFailure
	calls    int
	skipped  int
}

// Aggregate classifies every present cell of table and returns the folded
// vocabularies and assignments. Cell failures are reported in the result, not
// as an error. If ctx is cancelled the partial result is returned together
// with the context error.
func (a *Aggregator) Aggregate(ctx context.Context, table *interview.Table) (*Result, error) {
	if a.classifier == nil {
		return nil, fmt.Errorf("classifier is required")
	}
	if table == nil {
		return nil, fmt.Errorf("interview table is required")
	}

	runID := a.runID
	if runID == "" {
		runID = uuid.New().String()
	}
	started := time.Now()

	keys := rowKeys(table.Questions(), a.scope)
	units, byKey := a.plan(table, keys)

	a.logger.Debug("Starting coding run",
		"run_id", runID,
		"questions", table.NumQuestions(),
		"vocabularies", len(units),
		"interviews", table.NumInterviews(),
		"scope", a.scope,
		"parallelism", a.parallelism)

	var err error
	if a.parallelism == 1 || len(units) == 1 {
		for row := range table.NumQuestions() {
			if err = a.processRow(ctx, runID, table, byKey[keys[row]], row); err != nil {
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.parallelism)
		for _, u := range units {
			g.Go(func() error {
				for _, row := range u.rows {
					if err := a.processRow(gctx, runID, table, u, row); err != nil {
						return err
					}
				}
				return nil
			})
		}
		err = g.Wait()
	}

	res := collect(runID, a.scope, table, keys, units)
	res.StartedAt = started
	res.CompletedAt = time.Now()

	if err != nil {
		a.logger.Warn("Coding run interrupted", "run_id", runID, "calls", res.Calls, "error", err)
		return res, err
	}

	a.logger.Info("Coding run complete",
		"run_id", runID,
		"calls", res.Calls,
		"skipped", res.Skipped,
		"failed", res.FailedCells(),
		"codes", res.TotalCodes(),
		"duration", res.CompletedAt.Sub(started))
	return res, nil
}

// plan groups rows by vocabulary key, preserving first-seen order.
func (a *Aggregator) plan(table *interview.Table, keys []string) ([]*unit, map[string]*unit) {
	var units []*unit
	byKey := make(map[string]*unit)
	for row, key := range keys {
		u, ok := byKey[key]
		if !ok {
			u = &unit{
				key:      key,
				vocab:    NewVocabulary(),
				assigned: make([]*Vocabulary, table.NumInterviews()),
			}
			byKey[key] = u
			units = append(units, u)
		}
		u.rows = append(u.rows, row)
	}
	return units, byKey
}

// processRow classifies the cells of one row, interview by interview.
func (a *Aggregator) processRow(ctx context.Context, runID string, table *interview.Table, u *unit, row int) error {
	ids := table.InterviewIDs()
	question := table.Question(row)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}

		cell := Cell{
			RunID:          runID,
			Row:            row,
			Question:       question,
			Key:            u.key,
			InterviewIndex: i,
			InterviewID:    id,
		}

		answer, ok := table.At(row, i)
		if !ok {
			u.skipped++
			a.observer.CellSkipped(cell)
			continue
		}
		cell.Answer = answer
		cell.Existing = u.vocab.Codes()

		a.observer.CellStarted(cell)
		start := time.Now()
		codes, err := a.classify(ctx, cell)
		elapsed := time.Since(start)
		u.calls++

		if err != nil {
			if ctx.Err() != nil {
				a.observer.CellFailed(cell, ctx.Err(), elapsed)
				return ctx.Err()
			}
			u.failures = append(u.failures, CellFailure{
				Row:            row,
				Question:       question,
				InterviewIndex: i,
				InterviewID:    id,
				Err:            err,
			})
			a.logger.Warn("Classifier call failed, recording no codes",
				"row", row+1,
				"question", question,
				"interview", id,
				"error", err)
			a.observer.CellFailed(cell, err, elapsed)
			codes = nil
		} else {
			codes = a.normalize(codes)
			a.logger.Debug("Classified cell",
				"row", row+1,
				"interview", id,
				"codes", len(codes),
				"elapsed", elapsed)
			a.observer.CellCompleted(cell, codes, elapsed)
		}

		// A later row with the same key replaces the interview's earlier
		// assignment; the vocabulary keeps every code.
		u.assigned[i] = NewVocabulary()
		for _, code := range codes {
			u.assigned[i].Add(code)
			u.vocab.Add(code)
		}
	}
	return nil
}

// classify performs one bounded classifier call. A panicking classifier is
// reported as an error for the cell.
func (a *Aggregator) classify(ctx context.Context, cell Cell) (codes []string, err error) {
	if a.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.callTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			codes, err = nil, fmt.Errorf("classifier panic: %v", r)
		}
	}()

	codes, err = a.classifier.Classify(ctx, cell.Question, cell.Answer, cell.Existing)
	if err == nil && a.callTimeout > 0 && ctx.Err() != nil {
		// Late answers past the deadline still count as timeouts.
		return nil, fmt.Errorf("classifier call exceeded %s: %w", a.callTimeout, ctx.Err())
	}
	return codes, err
}

func (a *Aggregator) normalize(codes []string) []string {
	if a.rawCodes {
		return codes
	}
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func collect(runID string, scope Scope, table *interview.Table, keys []string, units []*unit) *Result {
	ids := table.InterviewIDs()
	res := &Result{
		RunID:        runID,
		Scope:        scope,
		RowKeys:      keys,
		InterviewIDs: ids,
		Vocabularies: make(map[string][]string, len(units)),
		Assignments:  make(map[string]map[string][]string, len(ids)),
	}
	for _, id := range ids {
		res.Assignments[id] = make(map[string][]string)
	}

	for _, u := range units {
		res.Keys = append(res.Keys, u.key)
		res.Vocabularies[u.key] = u.vocab.Codes()
		for i, set := range u.assigned {
			if set != nil {
				res.Assignments[ids[i]][u.key] = set.Codes()
			}
		}
		res.Failures = append(res.Failures, u.failures...)
		res.Calls += u.calls
		res.Skipped += u.skipped
	}

	sort.SliceStable(res.Failures, func(i, j int) bool {
		if res.Failures[i].Row != res.Failures[j].Row {
			return res.Failures[i].Row < res.Failures[j].Row
		}
		return res.Failures[i].InterviewIndex < res.Failures[j].InterviewIndex
	})
	return res
}
