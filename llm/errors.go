package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// maxErrorBody bounds the provider body kept in a StatusError.
const maxErrorBody = 200

// ErrorClass decides whether the client retries a failed attempt.
type ErrorClass int

const (
	// ClassTransient failures (rate limits, 5xx, network) are retried and
	// then fall through to the next model.
	ClassTransient ErrorClass = iota + 1

	// ClassFatal failures (bad request, credentials, unknown provider)
	// stop the call.
	ClassFatal
)

func (c ErrorClass) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// CallError is a failed attempt tagged with its retry class.
type CallError struct {
	Class ErrorClass
	Err   error
}

func (e *CallError) Error() string {
	return e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// NewTransientError marks err as retryable.
func NewTransientError(err error) error {
	return &CallError{Class: ClassTransient, Err: err}
}

// NewFatalError marks err as not retryable.
func NewFatalError(err error) error {
	return &CallError{Class: ClassFatal, Err: err}
}

// IsTransient reports whether err is a retryable call failure.
func IsTransient(err error) bool {
	return classOf(err) == ClassTransient
}

// IsFatal reports whether err is a call failure that must not be retried.
func IsFatal(err error) bool {
	return classOf(err) == ClassFatal
}

func classOf(err error) ErrorClass {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return 0
}

// StatusError is a non-200 answer from a provider API.
type StatusError struct {
	StatusCode int
	Body       string

	// RetryAfter is the delay the provider asked for, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("LLM API error (status %d): %s", e.StatusCode, e.Body)
}

// classifyHTTPError turns a non-200 response into a classified error. Rate
// limits, request timeouts and server errors are transient.
func classifyHTTPError(statusCode int, header http.Header, body []byte) error {
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	err := &StatusError{
		StatusCode: statusCode,
		Body:       text,
		RetryAfter: parseRetryAfter(header.Get("Retry-After"), time.Now()),
	}

	if statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= http.StatusInternalServerError {
		return NewTransientError(err)
	}
	return NewFatalError(err)
}

// parseRetryAfter reads a Retry-After value in seconds or as an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// retryAfter returns the provider-requested delay carried by err.
func retryAfter(err error) time.Duration {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}
