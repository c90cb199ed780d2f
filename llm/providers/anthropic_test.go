package providers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/c360studio/qualcoder/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicProvider_BuildURL(t *testing.T) {
	p := &AnthropicProvider{}

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "https://api.anthropic.com/v1/messages"},
		{"custom base URL", "https://custom.api.com", "https://custom.api.com/v1/messages"},
		{"trailing slash handled", "https://api.anthropic.com/", "https://api.anthropic.com/v1/messages"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestAnthropicProvider_SetHeaders(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	req, err := http.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	require.NoError(t, err)

	(&AnthropicProvider{}).SetHeaders(req)
	assert.Equal(t, "sk-ant-test", req.Header.Get("x-api-key"))
	assert.Equal(t, anthropicVersion, req.Header.Get("anthropic-version"))
}

func TestAnthropicProvider_BuildRequestBody(t *testing.T) {
	p := &AnthropicProvider{}

	messages := []llm.Message{
		{Role: "system", Content: "You are an expert in qualitative data coding."},
		{Role: "user", Content: "Question: Why?"},
	}

	temp := 0.0
	body, err := p.BuildRequestBody("claude-3-5-haiku", messages, &temp, 0, nil)
	require.NoError(t, err)

	var req anthropicRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, "claude-3-5-haiku", req.Model)
	assert.Equal(t, 4096, req.MaxTokens)
	assert.Equal(t, "You are an expert in qualitative data coding.", req.System)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Contains(t, string(body), `"temperature":0`)
}

func TestAnthropicProvider_BuildRequestBody_SchemaInSystemPrompt(t *testing.T) {
	p := &AnthropicProvider{}
	format := &llm.ResponseFormat{
		Name: "code_schema",
		Schema: map[string]any{
			"type":       "object",
			"properties": map[string]any{"thematic_codes": map[string]any{"type": "array"}},
		},
	}

	body, err := p.BuildRequestBody("claude-sonnet", []llm.Message{
		{Role: "system", Content: "Be precise."},
		{Role: "user", Content: "Hello"},
	}, nil, 1024, format)
	require.NoError(t, err)

	var req anthropicRequest
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Contains(t, req.System, "Be precise.")
	assert.Contains(t, req.System, "thematic_codes")
	assert.NotContains(t, string(body), "response_format")
	assert.NotContains(t, string(body), `"temperature"`)
}

func TestAnthropicProvider_BuildRequestBody_MergesTurns(t *testing.T) {
	body, err := (&AnthropicProvider{}).BuildRequestBody("claude", []llm.Message{
		{Role: "user", Content: "Context"},
		{Role: "user", Content: "Question"},
		{Role: "assistant", Content: "Answer"},
	}, nil, 0, nil)
	require.NoError(t, err)

	var req anthropicRequest
	require.NoError(t, json.Unmarshal(body, &req))
	require.Len(t, req.Messages, 2)
	assert.Equal(t, anthropicMessage{Role: "user", Content: "Context\n\nQuestion"}, req.Messages[0])
	assert.Equal(t, "assistant", req.Messages[1].Role)
	assert.Empty(t, req.System)
}

func TestAnthropicProvider_ParseResponse(t *testing.T) {
	p := &AnthropicProvider{}

	responseBody := []byte(`{
		"id": "msg_123",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "{\"thematic_codes\": "},
			{"type": "text", "text": "[\"Access\"]}"}
		],
		"model": "claude-3-5-haiku-20241022",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 15, "output_tokens": 8}
	}`)

	resp, err := p.ParseResponse(responseBody, "claude-haiku")
	require.NoError(t, err)

	assert.Equal(t, `{"thematic_codes": ["Access"]}`, resp.Content)
	assert.Equal(t, "claude-3-5-haiku-20241022", resp.Model)
	assert.Equal(t, "end_turn", resp.FinishReason)
	assert.Equal(t, llm.TokenUsage{PromptTokens: 15, CompletionTokens: 8, TotalTokens: 23}, resp.Usage)
}

func TestAnthropicProvider_ParseResponse_Invalid(t *testing.T) {
	_, err := (&AnthropicProvider{}).ParseResponse([]byte("not json"), "claude")
	assert.Error(t, err)
}
