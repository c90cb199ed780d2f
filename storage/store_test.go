package storage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/interview"
	"github.com/c360studio/qualcoder/llm"
	"github.com/c360studio/qualcoder/storage/storagetest"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemStore() (*Store, *storagetest.MemKV) {
	cells := storagetest.NewMemKV("CELLS")
	s := NewStoreFromBuckets(storagetest.NewMemKV("RUNS"), cells, storagetest.NewMemKV("LLM_CALLS"))
	return s, cells
}

func TestBucketName(t *testing.T) {
	assert.Equal(t, "QUALCODER_RUNS", BucketName("", BucketRuns))
	assert.Equal(t, "STUDY1_LLM_CALLS", BucketName("STUDY1", BucketLLMCalls))
}

func TestStore_RunLifecycle(t *testing.T) {
	s, _ := newMemStore()
	ctx := context.Background()

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	run := &Run{Input: "interviews.xlsx", Model: "gpt-4o-mini"}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, RunStatusPending, run.Status)

	err := s.CreateRun(ctx, &Run{ID: run.ID})
	assert.Error(t, err, "duplicate run IDs are rejected")

	got, err := s.UpdateRunStatus(ctx, run.ID, RunStatusRunning, "")
	require.NoError(t, err)
	require.NotNil(t, got.StartedAt)
	assert.Nil(t, got.CompletedAt)

	got, err = s.UpdateRunStatus(ctx, run.ID, RunStatusFailed, "input vanished")
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)

	stored, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, stored.Status)
	assert.Equal(t, "input vanished", stored.Error)
	require.Len(t, stored.StatusChanges, 2)
	assert.Equal(t, RunStatusPending, stored.StatusChanges[0].From)
	assert.Equal(t, RunStatusRunning, stored.StatusChanges[0].To)
	assert.Equal(t, RunStatusFailed, stored.StatusChanges[1].To)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.UpdateRunStatus(ctx, "missing", RunStatusRunning, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListRuns(t *testing.T) {
	s, _ := newMemStore()
	ctx := context.Background()

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateRun(ctx, &Run{ID: id}))
	}

	runs, err = s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)
	assert.Equal(t, "a", runs[2].ID)
}

func TestStore_Cells(t *testing.T) {
	s, _ := newMemStore()
	ctx := context.Background()

	for _, c := range []*CellOutcome{
		{RunID: "r1", Row: 10, InterviewIndex: 0},
		{RunID: "r1", Row: 2, InterviewIndex: 1},
		{RunID: "r1", Row: 2, InterviewIndex: 0, Error: "timeout"},
		{RunID: "r2", Row: 0, InterviewIndex: 0},
	} {
		require.NoError(t, s.PutCell(ctx, c))
	}
	assert.Error(t, s.PutCell(ctx, &CellOutcome{}))

	cells, err := s.ListCells(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.Equal(t, [2]int{2, 0}, [2]int{cells[0].Row, cells[0].InterviewIndex})
	assert.True(t, cells[0].Failed())
	assert.Equal(t, [2]int{2, 1}, [2]int{cells[1].Row, cells[1].InterviewIndex})
	assert.Equal(t, 10, cells[2].Row)

	assert.Equal(t, "r1.2.0", CellKey("r1", 2, 0))
}

func TestRun_ApplyResult(t *testing.T) {
	table, err := interview.Load(interview.Grid{
		{"Question", "i1", "i2"},
		{"Q1", "a", ""},
		{"Q2", "b", "c"},
	})
	require.NoError(t, err)

	res, err := coding.Aggregate(context.Background(), table, coding.ClassifierFunc(
		func(_ context.Context, question, answer string, _ []string) ([]string, error) {
			if answer == "c" {
				return nil, errors.New("boom")
			}
			return []string{question + "-" + answer}, nil
		}))
	require.NoError(t, err)

	var run Run
	run.ApplyResult(res)

	assert.Equal(t, 2, run.Questions)
	assert.Equal(t, 2, run.Interviews)
	assert.Equal(t, 3, run.Calls)
	assert.Equal(t, 1, run.Failures)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 2, run.TotalCodes)
	assert.Equal(t, []KeyCodes{
		{Key: "Q1", Codes: []string{"Q1-a"}},
		{Key: "Q2", Codes: []string{"Q2-b"}},
	}, run.Vocabularies)
	assert.Equal(t, []InterviewCodes{
		{InterviewID: "i1", Codes: []KeyCodes{{Key: "Q1", Codes: []string{"Q1-a"}}, {Key: "Q2", Codes: []string{"Q2-b"}}}},
		{InterviewID: "i2", Codes: []KeyCodes{{Key: "Q2", Codes: []string{}}}},
	}, run.Assignments)
}

func TestRecorder(t *testing.T) {
	s, cells := newMemStore()
	ctx, cancel := context.WithCancel(context.Background())

	rec := NewRecorder(ctx, s, nil)
	cell := coding.Cell{RunID: "r1", Row: 0, Question: "Q1", Key: "Q1", InterviewIndex: 1, InterviewID: "i2", Answer: "a"}

	rec.CellCompleted(cell, []string{"X"}, 1500*time.Millisecond)
	cancel()
	cell.InterviewIndex = 2
	rec.CellFailed(cell, errors.New("timeout"), time.Second)
	require.NoError(t, rec.Err())

	stored, err := s.ListCells(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, []string{"X"}, stored[0].Codes)
	assert.Equal(t, int64(1500), stored[0].DurationMs)
	assert.Equal(t, "timeout", stored[1].Error)
	assert.Equal(t, []string{}, stored[1].Codes)

	cells.PutErr = errors.New("bucket gone")
	rec.CellCompleted(cell, nil, 0)
	assert.ErrorContains(t, rec.Err(), "bucket gone")
}

func TestStore_CallStore(t *testing.T) {
	s, _ := newMemStore()
	calls, err := s.CallStore()
	require.NoError(t, err)

	require.NoError(t, calls.Store(context.Background(), &llm.CallRecord{RequestID: "req-1", TraceID: "r1"}))
	records, err := calls.ListByTrace(context.Background(), "r1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

// TestStore_NATS runs against a live server when QUALCODER_TEST_NATS_URL is set.
func TestStore_NATS(t *testing.T) {
	url := os.Getenv("QUALCODER_TEST_NATS_URL")
	if url == "" {
		t.Skip("QUALCODER_TEST_NATS_URL not set")
	}

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	prefix := "QUALCODER_TEST_" + time.Now().Format("150405")
	s, err := NewStore(ctx, js, Config{Prefix: prefix, TTL: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, suffix := range []string{BucketRuns, BucketCells, BucketLLMCalls} {
			_ = js.DeleteKeyValue(context.Background(), BucketName(prefix, suffix))
		}
	})

	run := &Run{Input: "grid.xlsx"}
	require.NoError(t, s.CreateRun(ctx, run))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "grid.xlsx", got.Input)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	// Reopening finds the existing buckets.
	_, err = NewStore(ctx, js, Config{Prefix: prefix})
	require.NoError(t, err)
}
