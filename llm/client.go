// Package llm talks to chat completion APIs. A Client resolves a request to
// a chain of models through a model.Registry, retries transient failures
// with backoff and moves down the chain when a model keeps failing.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/c360studio/qualcoder/model"
	"github.com/google/uuid"
)

const (
	// maxResponseBytes bounds a provider response body.
	maxResponseBytes = 10 << 20

	defaultHTTPTimeout = 3 * time.Minute

	// recordTimeout bounds writing a call record to the store.
	recordTimeout = 5 * time.Second
)

// Completer sends chat completion requests.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Client is a Completer over the endpoints of a model registry.
type Client struct {
	registry *model.Registry
	http     *http.Client
	retry    RetryConfig
	logger   *slog.Logger

	// calls is nil when call recording is off.
	calls *CallStore
}

var _ Completer = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.http = c
	}
}

// WithRetryConfig sets per-model retry behavior.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithCallStore records every call with its attempts and token usage.
func WithCallStore(store *CallStore) ClientOption {
	return func(client *Client) {
		client.calls = store
	}
}

// NewClient creates a client over registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry: registry,
		http:     &http.Client{Timeout: defaultHTTPTimeout},
		retry:    DefaultRetryConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.MaxAttempts < 1 {
		c.retry.MaxAttempts = 1
	}
	return c
}

// models returns the chain for req with open circuits removed.
func (c *Client) models(req Request) []string {
	if req.Model != "" {
		return c.registry.FilterAvailable(c.registry.ChainForModel(req.Model))
	}
	capability := model.ParseCapability(req.Capability)
	if capability == "" {
		capability = model.CapabilityFast
	}
	return c.registry.AvailableChain(capability)
}

// Complete sends req down the model chain until one model answers. A fatal
// error or a done context ends the chain early.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	chain := c.models(req)
	if len(chain) == 0 {
		return nil, fmt.Errorf("no models available for %s", req.target())
	}

	trace := GetTraceContext(ctx)
	rec := &CallRecord{
		RequestID:  uuid.New().String(),
		TraceID:    trace.TraceID,
		SpanID:     trace.SpanID,
		Capability: req.Capability,
		Messages:   req.Messages,
		StartedAt:  time.Now(),
	}

	var lastErr error
	for _, name := range chain {
		ep := c.registry.EndpointFor(name)
		rec.Model, rec.Provider, rec.ContextBudget = ep.Model, ep.Provider, ep.MaxTokens

		resp, tries, err := c.attempt(ctx, name, ep, req)
		rec.addAttempt(name, ep.Provider, tries, err)
		if err == nil {
			resp.RequestID = rec.RequestID
			rec.succeeded(resp)
			c.record(ctx, rec)
			return resp, nil
		}
		lastErr = err

		if IsFatal(err) || ctx.Err() != nil {
			break
		}
		c.logger.Warn("Model failed, falling back",
			"model", name,
			"provider", ep.Provider,
			"tries", tries,
			"error", err)
	}

	err := fmt.Errorf("%s: %w", req.target(), lastErr)
	if !IsFatal(lastErr) && ctx.Err() == nil {
		err = fmt.Errorf("all models failed for %s: %w", req.target(), lastErr)
	}
	rec.Error = err.Error()
	c.record(ctx, rec)
	return nil, err
}

// attempt sends req to one endpoint, retrying transient failures. It
// returns the number of tries made.
func (c *Client) attempt(ctx context.Context, name string, ep *model.EndpointConfig, req Request) (*Response, int, error) {
	var err error
	for try := 1; try <= c.retry.MaxAttempts; try++ {
		var resp *Response
		resp, err = c.send(ctx, ep, req)
		if err == nil {
			c.registry.MarkEndpointSuccess(name)
			return resp, try, nil
		}
		// Fatal errors say nothing about endpoint health.
		if IsFatal(err) {
			return nil, try, err
		}
		if ctx.Err() != nil {
			return nil, try, ctx.Err()
		}
		if try == c.retry.MaxAttempts {
			break
		}

		wait := c.retry.Backoff(try)
		if ra := retryAfter(err); ra > wait {
			wait = ra
			if c.retry.MaxBackoff > 0 && wait > c.retry.MaxBackoff {
				wait = c.retry.MaxBackoff
			}
		}
		c.logger.Debug("Retrying model",
			"model", name,
			"try", try,
			"max_tries", c.retry.MaxAttempts,
			"wait", wait,
			"error", err)
		if err := sleep(ctx, wait); err != nil {
			return nil, try, err
		}
	}

	c.registry.MarkEndpointFailure(name)
	return nil, c.retry.MaxAttempts, err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// send makes one HTTP round trip.
func (c *Client) send(ctx context.Context, ep *model.EndpointConfig, req Request) (*Response, error) {
	provider, ok := LookupProvider(ep.Provider)
	if !ok {
		return nil, NewFatalError(fmt.Errorf("unknown provider %q", ep.Provider))
	}

	body, err := provider.BuildRequestBody(ep.Model, req.Messages, req.Temperature, req.MaxTokens, req.ResponseFormat)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("encode request: %w", err))
	}
	url := provider.BuildURL(ep.URL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("new request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq)

	c.logger.Debug("LLM request", "provider", ep.Provider, "model", ep.Model, "url", url, "messages", len(req.Messages))

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("post %s: %w", url, err))
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response: %w", err))
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, httpResp.Header, data)
	}

	resp, err := provider.ParseResponse(data, ep.Model)
	if err != nil {
		return nil, NewTransientError(err)
	}
	return resp, nil
}

// record stores rec when a call store is configured. Store failures are
// logged and never fail the call.
func (c *Client) record(ctx context.Context, rec *CallRecord) {
	if c.calls == nil {
		return
	}
	rec.CompletedAt = time.Now()
	rec.DurationMs = rec.CompletedAt.Sub(rec.StartedAt).Milliseconds()

	// Calls cut short by cancellation are still recorded.
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := c.calls.Store(storeCtx, rec); err != nil {
		c.logger.Warn("LLM call not recorded", "request_id", rec.RequestID, "trace_id", rec.TraceID, "error", err)
	}
}
