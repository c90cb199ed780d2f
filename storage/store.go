// Package storage persists coding runs, per-cell outcomes and LLM call
// records in NATS JetStream key-value buckets.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/c360studio/qualcoder/llm"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultPrefix prefixes bucket names when none is configured.
const DefaultPrefix = "QUALCODER"

// Bucket name suffixes.
const (
	BucketRuns     = "RUNS"
	BucketCells    = "CELLS"
	BucketLLMCalls = "LLM_CALLS"
)

// BucketName returns the full name of a bucket under prefix.
func BucketName(prefix, suffix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_" + suffix
}

// Config configures bucket creation.
type Config struct {
	// Prefix is prepended to every bucket name.
	Prefix string

	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

// Store provides run storage operations backed by NATS KV.
type Store struct {
	runs  jetstream.KeyValue
	cells jetstream.KeyValue
	calls jetstream.KeyValue
	now   func() time.Time
}

// NewStore opens the run, cell and call buckets, creating missing ones.
func NewStore(ctx context.Context, js jetstream.JetStream, cfg Config) (*Store, error) {
	runs, err := getOrCreateBucket(ctx, js, BucketName(cfg.Prefix, BucketRuns), cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("create runs bucket: %w", err)
	}

	cells, err := getOrCreateBucket(ctx, js, BucketName(cfg.Prefix, BucketCells), cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("create cells bucket: %w", err)
	}

	calls, err := getOrCreateBucket(ctx, js, BucketName(cfg.Prefix, BucketLLMCalls), cfg.TTL)
	if err != nil {
		return nil, fmt.Errorf("create llm calls bucket: %w", err)
	}

	return NewStoreFromBuckets(runs, cells, calls), nil
}

// NewStoreFromBuckets wraps already opened buckets.
func NewStoreFromBuckets(runs, cells, calls jetstream.KeyValue) *Store {
	return &Store{runs: runs, cells: cells, calls: calls, now: time.Now}
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, err
	}
	return js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      name,
		Description: fmt.Sprintf("Qualcoder %s storage", strings.ToLower(name)),
		History:     5, // Keep last 5 revisions
		TTL:         ttl,
	})
}

// CallStore returns an LLM call store on the calls bucket.
func (s *Store) CallStore(opts ...llm.CallStoreOption) (*llm.CallStore, error) {
	return llm.NewCallStore(s.calls, opts...)
}

// CreateRun stores a new pending run. An empty ID is generated.
func (s *Store) CreateRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	r.Status = RunStatusPending
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if _, err := s.runs.Create(ctx, r.ID, data); err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	entry, err := s.runs.Get(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}

	var r Run
	if err := json.Unmarshal(entry.Value(), &r); err != nil {
		return nil, fmt.Errorf("unmarshal run: %w", err)
	}
	return &r, nil
}

// SaveRun overwrites a run.
func (s *Store) SaveRun(ctx context.Context, r *Run) error {
	r.UpdatedAt = s.now()

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if _, err := s.runs.Put(ctx, r.ID, data); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// UpdateRunStatus moves a run to status and records the change. msg is
// kept as the run's error when status is failed.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, status RunStatus, msg string) (*Run, error) {
	r, err := s.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	setStatus(r, status, s.now())
	if status == RunStatusFailed {
		r.Error = msg
	}
	if err := s.SaveRun(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func setStatus(r *Run, status RunStatus, now time.Time) {
	r.StatusChanges = append(r.StatusChanges, StatusChange{
		From:      r.Status,
		To:        status,
		Timestamp: now,
	})
	r.Status = status

	if status == RunStatusRunning && r.StartedAt == nil {
		r.StartedAt = &now
	}
	if status.Terminal() {
		r.CompletedAt = &now
	}
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]*Run, error) {
	keys, err := s.runs.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list run keys: %w", err)
	}

	runs := make([]*Run, 0, len(keys))
	for _, key := range keys {
		r, err := s.GetRun(ctx, key)
		if err != nil {
			continue // Skip entries that fail to load
		}
		runs = append(runs, r)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

// CellKey returns the key of a cell outcome.
func CellKey(runID string, row, interviewIndex int) string {
	return runID + "." + strconv.Itoa(row) + "." + strconv.Itoa(interviewIndex)
}

// PutCell stores a cell outcome, replacing an earlier one for the cell.
func (s *Store) PutCell(ctx context.Context, c *CellOutcome) error {
	if c.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal cell: %w", err)
	}
	if _, err := s.cells.Put(ctx, CellKey(c.RunID, c.Row, c.InterviewIndex), data); err != nil {
		return fmt.Errorf("store cell: %w", err)
	}
	return nil
}

// ListCells returns the cell outcomes of a run in row then interview order.
func (s *Store) ListCells(ctx context.Context, runID string) ([]*CellOutcome, error) {
	keys, err := s.cells.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list cell keys: %w", err)
	}

	prefix := runID + "."
	var cells []*CellOutcome
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := s.cells.Get(ctx, key)
		if err != nil {
			continue
		}
		var c CellOutcome
		if err := json.Unmarshal(entry.Value(), &c); err != nil {
			continue
		}
		cells = append(cells, &c)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Row != cells[j].Row {
			return cells[i].Row < cells[j].Row
		}
		return cells[i].InterviewIndex < cells[j].InterviewIndex
	})
	return cells, nil
}
