package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/config"
	"github.com/c360studio/qualcoder/export"
	"github.com/c360studio/qualcoder/metrics"
	"github.com/c360studio/qualcoder/storage"
	"github.com/c360studio/qualcoder/storage/storagetest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points config discovery at empty directories.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeInput(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "interviews.csv")
	data := "Question,Alice,Bob\n" +
		"Why did you join?,cost,boom\n" +
		"What comes next?,growth,\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

var stubClassifier = coding.ClassifierFunc(func(_ context.Context, _, answer string, _ []string) ([]string, error) {
	switch answer {
	case "boom":
		return nil, errors.New("model unavailable")
	case "cost":
		return []string{"Cost"}, nil
	default:
		return []string{" Growth ", ""}, nil
	}
})

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := newLogger(io.Discard, tt.level)
			ctx := context.Background()
			assert.True(t, logger.Enabled(ctx, tt.want))
			assert.False(t, logger.Enabled(ctx, tt.want-1))
		})
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "qualcoder version "+Version+" (build: "+BuildTime+")\n", out)
}

func TestCodeCommand_InputErrors(t *testing.T) {
	isolate(t)

	_, err := execute(t, "code")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INPUT")

	_, err = execute(t, "code", filepath.Join(t.TempDir(), "missing.xlsx"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	_, err = execute(t, "code", writeInput(t, t.TempDir()), "--scope", "sheet")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vocabulary_scope")
}

func TestCodeRun(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg := config.DefaultConfig()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Formats = []string{"json", "csv"}

	store := storage.NewStoreFromBuckets(
		storagetest.NewMemKV("RUNS"), storagetest.NewMemKV("CELLS"), storagetest.NewMemKV("LLM_CALLS"))
	rec := metrics.NewRecorder()

	var out bytes.Buffer
	r := &codeRun{
		cfg:        cfg,
		classifier: stubClassifier,
		store:      store,
		metrics:    rec,
		out:        &out,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:        func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	}

	report, err := r.run(context.Background(), input, "")
	require.NoError(t, err)

	res := report.Result
	assert.Equal(t, 3, res.Calls)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.FailedCells())
	assert.Equal(t, []string{"Cost"}, res.Codes("Why did you join?"))
	assert.Equal(t, []string{"Growth"}, res.Codes("What comes next?"))

	require.Len(t, report.Artifacts, 3)
	for _, a := range report.Artifacts {
		assert.FileExists(t, a.Path)
		assert.True(t, strings.HasPrefix(filepath.Base(a.Path), "20250102_030405_gpt-4o-mini_"), a.Path)
	}

	printed := out.String()
	assert.Contains(t, printed, `Alice: "cost" -> Cost`)
	assert.Contains(t, printed, "Bob: FAILED")
	assert.Contains(t, printed, "Failed cells: 1")
	assert.Contains(t, printed, "model unavailable")

	ctx := context.Background()
	run, err := store.GetRun(ctx, report.RunID)
	require.NoError(t, err)
	assert.Equal(t, storage.RunStatusComplete, run.Status)
	assert.Equal(t, 3, run.Calls)
	assert.Equal(t, 1, run.Failures)
	assert.Equal(t, 2, run.TotalCodes)
	require.Len(t, run.Vocabularies, 2)

	cells, err := store.ListCells(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, cells, 3)
	assert.True(t, cells[1].Failed())

	expected := `
# HELP qualcoder_runs_total Finished coding runs by status.
# TYPE qualcoder_runs_total counter
qualcoder_runs_total{status="complete"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "qualcoder_runs_total"))
}

func TestCodeRun_InvalidFormatBeforeClassifying(t *testing.T) {
	dir := t.TempDir()
	input := writeInput(t, dir)

	cfg := config.DefaultConfig()
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Output.Formats = []string{"json", "pdf"}

	var calls atomic.Int32
	store := storage.NewStoreFromBuckets(
		storagetest.NewMemKV("RUNS"), storagetest.NewMemKV("CELLS"), storagetest.NewMemKV("LLM_CALLS"))
	r := &codeRun{
		cfg: cfg,
		classifier: coding.ClassifierFunc(func(context.Context, string, string, []string) ([]string, error) {
			calls.Add(1)
			return nil, nil
		}),
		store:   store,
		metrics: metrics.NewRecorder(),
		out:     io.Discard,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := r.run(context.Background(), input, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdf")
	assert.Zero(t, calls.Load())

	runs, err := store.ListRuns(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runs, "no run is left behind in running state")
	assert.NoDirExists(t, cfg.Output.Dir)
}

func TestReviewCommand(t *testing.T) {
	dir := t.TempDir()
	aggPath := filepath.Join(dir, "aggregated.json")
	intPath := filepath.Join(dir, "interviews.json")

	keys := []string{"Why did you join?"}
	var agg bytes.Buffer
	require.NoError(t, export.WriteAggregated(&agg, keys, map[string][]string{
		"Why did you join?": {"Cost", "Community"},
	}))
	require.NoError(t, os.WriteFile(aggPath, agg.Bytes(), 0o644))

	var ints bytes.Buffer
	require.NoError(t, export.WriteInterviewCodes(&ints, []string{"Alice", "Bob"}, keys, map[string]map[string][]string{
		"Alice": {"Why did you join?": {"Cost"}},
		"Bob":   {"Why did you join?": {"Cost", "Community"}},
	}))
	require.NoError(t, os.WriteFile(intPath, ints.Bytes(), 0o644))

	out, err := execute(t, "review", "--aggregated", aggPath, "--interviews", intPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Why did you join?")
	assert.Contains(t, out, "Community")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "✅")
	assert.Less(t, strings.Index(out, "Cost"), strings.Index(out, "Community"), "rows are in frequency order")

	_, err = execute(t, "review", "--aggregated", aggPath)
	require.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("qualcoder.yaml", []byte("model:\n  default: local-qwen\n"), 0o644))

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "default: local-qwen")
	assert.Contains(t, out, "vocabulary_scope: question_text")
}

func TestConfigInit(t *testing.T) {
	isolate(t)

	out, err := execute(t, "config", "init")
	require.NoError(t, err)
	path := strings.TrimSpace(strings.TrimPrefix(out, "User config:"))
	assert.FileExists(t, path)
}

func TestProgressPrinter(t *testing.T) {
	var out bytes.Buffer
	p := newProgressPrinter(&out, 2)
	cell := coding.Cell{Row: 0, Question: "Why did you join?", InterviewID: "Alice", Answer: "mostly\nthe cost"}

	p.CellCompleted(cell, []string{"Cost", "Value"}, 1500*time.Millisecond)
	p.CellCompleted(cell, nil, time.Second)
	p.CellFailed(cell, errors.New("timeout"), 2*time.Second)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `[1/2] Why did you join? | Alice: "mostly the cost" -> Cost, Value (1.5s)`, lines[0])
	assert.Contains(t, lines[1], "(no codes)")
	assert.Equal(t, `[1/2] Why did you join? | Alice: FAILED after 2s: timeout`, lines[2])
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "a b", clip("  a\n\tb ", 10))
	assert.Equal(t, "abcd…", clip("abcdefgh", 5))
}

func TestWatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviews.csv")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var changes atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- watchFile(ctx, path, 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)), func() {
			changes.Add(1)
		})
	}()

	// The watcher registers asynchronously; keep writing until it notices.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("v2"), 0o644)
		return changes.Load() > 0
	}, 5*time.Second, 50*time.Millisecond)

	// Writes to other files in the directory are ignored.
	time.Sleep(100 * time.Millisecond)
	before := changes.Load()
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.csv"), []byte("x"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, before, changes.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
