// Package testutil provides an in-memory llm.Completer for tests.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/qualcoder/llm"
)

// MockLLMClient is an llm.Completer that records every request and answers
// from a script. It is safe for concurrent use.
//
//	mock := &MockLLMClient{Responses: []*llm.Response{
//	    {Content: `{"thematic_codes": ["Access"]}`},
//	}}
type MockLLMClient struct {
	// Handler computes the answer when set. Responses and Err are then
	// ignored.
	Handler func(ctx context.Context, req llm.Request) (*llm.Response, error)

	// Err fails every call.
	Err error

	// Responses answer successive calls; the last one repeats. With none,
	// calls get an empty response.
	Responses []*llm.Response

	mu       sync.Mutex
	requests []llm.Request
}

// Replies scripts one response per content string.
func Replies(contents ...string) *MockLLMClient {
	m := &MockLLMClient{}
	for _, c := range contents {
		m.Responses = append(m.Responses, &llm.Response{Content: c, Model: "test-model"})
	}
	return m
}

// Complete implements llm.Completer.
func (m *MockLLMClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	n := len(m.requests)
	m.mu.Unlock()

	switch {
	case m.Handler != nil:
		return m.Handler(ctx, req)
	case m.Err != nil:
		return nil, m.Err
	case len(m.Responses) == 0:
		return &llm.Response{Model: "test-model"}, nil
	}
	return m.Responses[min(n, len(m.Responses))-1], nil
}

// Requests returns a copy of the requests received so far.
func (m *MockLLMClient) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.requests...)
}

// Calls returns the number of Complete calls.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
