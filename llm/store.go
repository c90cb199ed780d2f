package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// CallRecord is one Complete call as kept in the call bucket.
type CallRecord struct {
	RequestID string `json:"request_id"`

	// TraceID is the coding run; SpanID the cell within it.
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	Capability string `json:"capability,omitempty"`

	// Model and Provider name the model that answered, or the last one
	// tried when every model failed.
	Model         string `json:"model"`
	Provider      string `json:"provider"`
	ContextBudget int    `json:"context_budget,omitempty"`

	Messages     []Message `json:"messages"`
	Response     string    `json:"response,omitempty"`
	FinishReason string    `json:"finish_reason,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	// Attempts lists every model of the chain that was tried, in order.
	Attempts []EndpointAttempt `json:"attempts,omitempty"`

	// Retries counts tries beyond the first, summed over models.
	Retries int `json:"retries"`

	// FallbacksUsed lists the models that failed.
	FallbacksUsed []string `json:"fallbacks_used,omitempty"`

	Error string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

func (r *CallRecord) addAttempt(name, provider string, tries int, err error) {
	a := EndpointAttempt{Model: name, Provider: provider, Tries: tries}
	if err != nil {
		a.Error = err.Error()
		r.FallbacksUsed = append(r.FallbacksUsed, name)
	}
	r.Attempts = append(r.Attempts, a)
	r.Retries += tries - 1
}

func (r *CallRecord) succeeded(resp *Response) {
	r.Model = resp.Model
	r.Response = resp.Content
	r.FinishReason = resp.FinishReason
	r.PromptTokens = resp.Usage.PromptTokens
	r.CompletionTokens = resp.Usage.CompletionTokens
	r.TotalTokens = resp.Usage.TotalTokens
}

// ErrCallNotFound is returned when no record exists for a request ID.
var ErrCallNotFound = errors.New("llm call not found")

// CallStore keeps call records in a JetStream key-value bucket, one key per
// request ID.
type CallStore struct {
	kv     jetstream.KeyValue
	logger *slog.Logger
}

// CallStoreOption configures a CallStore.
type CallStoreOption func(*CallStore)

// WithStoreLogger sets the store's logger.
func WithStoreLogger(logger *slog.Logger) CallStoreOption {
	return func(s *CallStore) {
		s.logger = logger
	}
}

// NewCallStore creates a call store on an existing bucket.
func NewCallStore(kv jetstream.KeyValue, opts ...CallStoreOption) (*CallStore, error) {
	if kv == nil {
		return nil, errors.New("call store needs a key-value bucket")
	}
	s := &CallStore{kv: kv, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Store writes a call record.
func (s *CallStore) Store(ctx context.Context, record *CallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if record.RequestID == "" {
		return errors.New("call record has no request_id")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode call %s: %w", record.RequestID, err)
	}
	if _, err := s.kv.Put(ctx, record.RequestID, data); err != nil {
		return fmt.Errorf("put call %s: %w", record.RequestID, err)
	}
	s.logger.Debug("LLM call recorded", "request_id", record.RequestID, "trace_id", record.TraceID, "model", record.Model)
	return nil
}

// Get returns the record for a request ID.
func (s *CallStore) Get(ctx context.Context, requestID string) (*CallRecord, error) {
	entry, err := s.kv.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, fmt.Errorf("get call %s: %w", requestID, err)
	}

	record := &CallRecord{}
	if err := json.Unmarshal(entry.Value(), record); err != nil {
		return nil, fmt.Errorf("decode call %s: %w", requestID, err)
	}
	return record, nil
}

// ListByTrace returns every record of a trace, oldest first.
func (s *CallStore) ListByTrace(ctx context.Context, traceID string) ([]*CallRecord, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list calls: %w", err)
	}

	var records []*CallRecord
	for _, key := range keys {
		record, err := s.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Debug("Unreadable call record", "key", key, "error", err)
		case record.TraceID == traceID:
			records = append(records, record)
		}
	}
	SortByStartTime(records)
	return records, nil
}

// SortByStartTime orders records by StartedAt, oldest first.
func SortByStartTime(records []*CallRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
}

// TraceContext ties calls to the run and cell that made them.
type TraceContext struct {
	TraceID string
	SpanID  string
}

type traceContextKey struct{}

// WithTraceContext returns ctx carrying tc.
func WithTraceContext(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTraceContext returns the trace carried by ctx, or the zero value.
func GetTraceContext(ctx context.Context) TraceContext {
	if tc, ok := ctx.Value(traceContextKey{}).(TraceContext); ok {
		return tc
	}
	return TraceContext{}
}
