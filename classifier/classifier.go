// Package classifier implements coding.Classifier on top of a chat
// completion model.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/llm"
)

// SchemaName names the structured output schema sent to providers.
const SchemaName = "code_schema"

// LLMClassifier asks a language model for the thematic codes of an answer.
type LLMClassifier struct {
	client      llm.Completer
	model       string
	temperature *float64
	maxTokens   int
	logger      *slog.Logger
}

var _ coding.Classifier = (*LLMClassifier)(nil)

// Option configures an LLMClassifier.
type Option func(*LLMClassifier)

// WithModel pins a model identifier. Without it the registry's coding
// chain is used.
func WithModel(name string) Option {
	return func(c *LLMClassifier) {
		c.model = name
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(c *LLMClassifier) {
		c.temperature = &t
	}
}

// WithMaxTokens limits the response length.
func WithMaxTokens(n int) Option {
	return func(c *LLMClassifier) {
		c.maxTokens = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *LLMClassifier) {
		c.logger = logger
	}
}

// New creates a classifier that sends requests through client.
func New(client llm.Completer, opts ...Option) *LLMClassifier {
	c := &LLMClassifier{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// codesResponse is the object the model is asked to return.
type codesResponse struct {
	ThematicCodes []string `json:"thematic_codes"`
}

// Classify implements coding.Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, question, answer string, existing []string) ([]string, error) {
	req := llm.Request{
		Capability: "coding",
		Model:      c.model,
		Messages: []llm.Message{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: UserPrompt(question, answer, existing)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		ResponseFormat: &llm.ResponseFormat{
			Name:   SchemaName,
			Schema: CodeSchema(),
			Strict: true,
		},
	}

	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	codes, err := ParseCodes(resp.Content)
	if err != nil {
		c.logger.Warn("Unreadable classifier response",
			"question", question,
			"model", resp.Model,
			"content", truncate(resp.Content, 200),
			"error", err)
		return nil, err
	}
	return codes, nil
}

// ParseCodes reads the code list out of a model response. It accepts the
// requested {"thematic_codes": [...]} object, optionally fenced or wrapped
// in prose, and falls back to a bare JSON array of strings. An object
// without the field yields an empty list.
func ParseCodes(content string) ([]string, error) {
	if raw := llm.ExtractJSON(content); raw != "" {
		var parsed codesResponse
		if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
			return nil, fmt.Errorf("%w: %v", coding.ErrMalformedCodes, err)
		}
		if parsed.ThematicCodes == nil {
			return []string{}, nil
		}
		return parsed.ThematicCodes, nil
	}

	if raw := llm.ExtractJSONArray(content); raw != "" {
		var codes []string
		if err := json.Unmarshal([]byte(raw), &codes); err != nil {
			return nil, fmt.Errorf("%w: %v", coding.ErrMalformedCodes, err)
		}
		return codes, nil
	}

	return nil, fmt.Errorf("%w: no JSON in response", coding.ErrMalformedCodes)
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
