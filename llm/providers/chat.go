package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/c360studio/qualcoder/llm"
)

// chatCompletions implements the OpenAI chat completions wire format shared
// by OpenAI, OpenRouter, Ollama and vLLM.
type chatCompletions struct{}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    *float64      `json:"temperature,omitempty"`
	MaxTokens      *int          `json:"max_tokens,omitempty"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type       string          `json:"type"`
	JSONSchema *chatJSONSchema `json:"json_schema,omitempty"`
}

type chatJSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage llm.TokenUsage `json:"usage"`
}

// BuildRequestBody encodes a chat completions request. A format without a
// schema asks for any JSON object.
func (chatCompletions) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int, format *llm.ResponseFormat) ([]byte, error) {
	req := chatRequest{
		Model:       model,
		Messages:    make([]chatMessage, 0, len(messages)),
		Temperature: temperature,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, chatMessage(m))
	}
	if maxTokens > 0 {
		req.MaxTokens = &maxTokens
	}
	switch {
	case format == nil:
	case format.Schema == nil:
		req.ResponseFormat = &chatFormat{Type: "json_object"}
	default:
		req.ResponseFormat = &chatFormat{
			Type:       "json_schema",
			JSONSchema: &chatJSONSchema{Name: format.Name, Schema: format.Schema, Strict: format.Strict},
		}
	}
	return json.Marshal(req)
}

// ParseResponse reads the first choice. A refusal with no content is an
// error.
func (chatCompletions) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion has no choices")
	}

	choice := resp.Choices[0]
	if choice.Message.Content == "" && choice.Message.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", choice.Message.Refusal)
	}
	if resp.Model == "" {
		resp.Model = model
	}
	return &llm.Response{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		Usage:        resp.Usage,
		FinishReason: choice.FinishReason,
	}, nil
}

// chatCompletionsURL appends the chat completions path to a base URL
// unless it is already there.
func chatCompletionsURL(baseURL string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}
