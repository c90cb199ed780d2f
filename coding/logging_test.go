package coding_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/interview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_InfoLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	table := mustLoad(t, interview.Grid{{"", "A"}, {"Q", "a"}})
	classify := coding.ClassifierFunc(func(context.Context, string, string, []string) ([]string, error) {
		return []string{"x"}, nil
	})

	_, err := coding.Aggregate(context.Background(), table, classify, coding.WithLogger(logger))
	require.NoError(t, err)

	// The caller announces the run; the aggregator only reports completion.
	out := buf.String()
	assert.NotContains(t, out, "Starting coding run")
	assert.Equal(t, 1, strings.Count(out, "Coding run complete"))
}
