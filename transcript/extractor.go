package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/c360studio/qualcoder/llm"
)

// DefaultMaxChars bounds the transcript text sent in one request.
const DefaultMaxChars = 60000

// notFoundMarkers are answers that mean the transcript does not answer
// the question.
var notFoundMarkers = map[string]bool{
	"":                      true,
	"n/a":                   true,
	"none":                  true,
	"not found":             true,
	"not answered":          true,
	"uncertain / not found": true,
}

const extractorSystemPrompt = `You extract interview answers from transcripts.

For each numbered question, find what the interviewee said in answer to it and return that answer in the interviewee's own words, lightly condensed. Do not answer from general knowledge. If the transcript does not answer a question, return an empty string for it.

Respond with JSON only:

{"answers": {"1": "answer to question 1", "2": ""}}`

// Extractor answers questionnaire questions from a transcript.
type Extractor struct {
	client   llm.Completer
	model    string
	maxChars int
	logger   *slog.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorModel pins a model identifier. Without it the registry's
// extraction chain is used.
func WithExtractorModel(name string) ExtractorOption {
	return func(e *Extractor) {
		e.model = name
	}
}

// WithMaxChars bounds the transcript text sent to the model.
func WithMaxChars(n int) ExtractorOption {
	return func(e *Extractor) {
		e.maxChars = n
	}
}

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// NewExtractor creates an extractor that sends requests through client.
func NewExtractor(client llm.Completer, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		client:   client,
		maxChars: DefaultMaxChars,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns one answer per question, aligned with questions.
// Unanswered questions yield "".
func (e *Extractor) Extract(ctx context.Context, questions []string, doc *Document) ([]string, error) {
	answers := make([]string, len(questions))
	if len(questions) == 0 {
		return answers, nil
	}

	text := doc.Text
	if e.maxChars > 0 && len(text) > e.maxChars {
		e.logger.Warn("Transcript truncated",
			"transcript", doc.Name,
			"chars", len(text),
			"max_chars", e.maxChars)
		text = text[:e.maxChars]
	}

	temperature := 0.0
	resp, err := e.client.Complete(ctx, llm.Request{
		Capability: "extraction",
		Model:      e.model,
		Messages: []llm.Message{
			{Role: "system", Content: extractorSystemPrompt},
			{Role: "user", Content: extractorUserPrompt(questions, text)},
		},
		Temperature: &temperature,
		ResponseFormat: &llm.ResponseFormat{
			Name:   "answers_schema",
			Schema: answersSchema(len(questions)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("extract answers from %s: %w", doc.Name, err)
	}

	raw := llm.ExtractJSON(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("extract answers from %s: no JSON in response", doc.Name)
	}
	var parsed struct {
		Answers map[string]string `json:"answers"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("extract answers from %s: %w", doc.Name, err)
	}

	found := 0
	for i := range questions {
		answer := strings.TrimSpace(parsed.Answers[strconv.Itoa(i+1)])
		if notFoundMarkers[strings.ToLower(answer)] {
			continue
		}
		answers[i] = answer
		found++
	}

	e.logger.Info("Extracted answers",
		"transcript", doc.Name,
		"questions", len(questions),
		"answered", found)
	return answers, nil
}

func extractorUserPrompt(questions []string, text string) string {
	var sb strings.Builder
	sb.WriteString("## Questions\n\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	sb.WriteString("\n## Transcript\n\n")
	sb.WriteString(text)
	sb.WriteString("\n")
	return sb.String()
}

func answersSchema(n int) map[string]any {
	props := make(map[string]any, n)
	required := make([]string, n)
	for i := 0; i < n; i++ {
		key := strconv.Itoa(i + 1)
		props[key] = map[string]any{"type": "string"}
		required[i] = key
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answers": map[string]any{
				"type":                 "object",
				"properties":           props,
				"required":             required,
				"additionalProperties": false,
			},
		},
		"required":             []string{"answers"},
		"additionalProperties": false,
	}
}
