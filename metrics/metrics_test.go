package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/interview"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Observer(t *testing.T) {
	r := NewRecorder()

	cell := coding.Cell{Question: "Q", Existing: []string{"A"}}
	r.CellStarted(cell)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.inFlight))

	r.CellCompleted(cell, []string{"A", "B", "B", "C"}, 2*time.Second)
	r.CellStarted(cell)
	r.CellFailed(cell, errors.New("boom"), time.Second)
	r.CellSkipped(cell)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.calls.WithLabelValues(OutcomeFailure)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.newCodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.inFlight))
	assert.Equal(t, 2, testutil.CollectAndCount(r.calls))
}

func TestRecorder_WithAggregator(t *testing.T) {
	table, err := interview.Load(interview.Grid{
		{"Question", "i1", "i2", "i3"},
		{"Q1", "a", "b", ""},
	})
	require.NoError(t, err)

	r := NewRecorder()
	_, err = coding.Aggregate(context.Background(), table, coding.ClassifierFunc(
		func(_ context.Context, _, answer string, _ []string) ([]string, error) {
			return []string{"shared", answer}, nil
		}), coding.WithObserver(r))
	require.NoError(t, err)
	r.RunFinished("complete")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.calls.WithLabelValues(OutcomeSuccess)))
	// shared, a, b
	assert.Equal(t, 3.0, testutil.ToFloat64(r.newCodes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skipped))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runsTotal.WithLabelValues("complete")))
}

func TestListen(t *testing.T) {
	r := NewRecorder()
	r.CellSkipped(coding.Cell{})

	srv, err := Listen("127.0.0.1:0", r, nil)
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)
	assert.True(t, strings.Contains(text, "qualcoder_cells_skipped_total 1"))
	assert.Contains(t, text, `qualcoder_classifier_calls_total{outcome="failure"} 0`)
	assert.Contains(t, text, "go_goroutines")
}
