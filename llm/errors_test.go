package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusForbidden, false},
		{http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := classifyHTTPError(tt.status, http.Header{}, []byte("body"))
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, !tt.transient, IsFatal(err))

			var statusErr *StatusError
			assert.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
		})
	}
}

func TestClassifyHTTPError_TruncatesBody(t *testing.T) {
	err := classifyHTTPError(http.StatusBadRequest, http.Header{}, []byte(strings.Repeat("x", 500)))
	assert.Less(t, len(err.Error()), 260)
	assert.True(t, strings.HasSuffix(err.Error(), "..."))
}

func TestClassifyHTTPError_RetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	err := classifyHTTPError(http.StatusTooManyRequests, h, nil)
	assert.Equal(t, 7*time.Second, retryAfter(err))
	assert.Equal(t, 7*time.Second, retryAfter(fmt.Errorf("wrapped: %w", err)))
	assert.Zero(t, retryAfter(errors.New("plain")))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"0", 0},
		{"-3", 0},
		{"30", 30 * time.Second},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value, now))
		})
	}
}

func TestErrorClass(t *testing.T) {
	base := errors.New("boom")
	assert.True(t, IsTransient(NewTransientError(base)))
	assert.True(t, IsFatal(fmt.Errorf("ctx: %w", NewFatalError(base))))
	assert.False(t, IsTransient(base))
	assert.False(t, IsFatal(base))
	assert.ErrorIs(t, NewFatalError(base), base)
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "fatal", ClassFatal.String())
}
