package providers

import (
	"encoding/json"
	"testing"

	"github.com/c360studio/qualcoder/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaProvider_BuildURL(t *testing.T) {
	p := &OllamaProvider{}
	t.Setenv("OLLAMA_HOST", "")

	tests := []struct {
		name    string
		baseURL string
		want    string
	}{
		{"empty uses default", "", "http://localhost:11434/v1/chat/completions"},
		{"custom base", "http://gpu:8000/v1", "http://gpu:8000/v1/chat/completions"},
		{"already complete", "http://gpu:8000/v1/chat/completions", "http://gpu:8000/v1/chat/completions"},
		{"trailing slash", "http://gpu:8000/v1/", "http://gpu:8000/v1/chat/completions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOllamaProvider_BuildURL_FromEnv(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "http://ollama.internal:11434/v1")
	assert.Equal(t, "http://ollama.internal:11434/v1/chat/completions", (&OllamaProvider{}).BuildURL(""))
}

func TestOllamaHostURL(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"", ""},
		{"127.0.0.1:11434", "http://127.0.0.1:11434/v1"},
		{"http://gpu:11434", "http://gpu:11434/v1"},
		{"https://gpu.example.org/", "https://gpu.example.org/v1"},
		{"http://gpu:8000/openai/v1", "http://gpu:8000/openai/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.want, ollamaHostURL(tt.host))
		})
	}

	t.Setenv("OLLAMA_HOST", "0.0.0.0:11434")
	assert.Equal(t, "http://0.0.0.0:11434/v1/chat/completions", (&OllamaProvider{}).BuildURL(""))
}

func TestOllamaProvider_BuildRequestBody(t *testing.T) {
	p := &OllamaProvider{}
	messages := []llm.Message{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "hi"},
	}

	t.Run("plain", func(t *testing.T) {
		body, err := p.BuildRequestBody("llama3.2", messages, nil, 0, nil)
		require.NoError(t, err)

		var req chatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.Len(t, req.Messages, 2)
		assert.Nil(t, req.MaxTokens)
		assert.Nil(t, req.ResponseFormat)
		assert.NotContains(t, string(body), "temperature")
	})

	t.Run("json schema", func(t *testing.T) {
		temp := 0.0
		format := &llm.ResponseFormat{
			Name:   "code_schema",
			Schema: map[string]any{"type": "object"},
			Strict: true,
		}
		body, err := p.BuildRequestBody("llama3.2", messages, &temp, 256, format)
		require.NoError(t, err)

		var req chatRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_schema", req.ResponseFormat.Type)
		assert.Equal(t, "code_schema", req.ResponseFormat.JSONSchema.Name)
		assert.True(t, req.ResponseFormat.JSONSchema.Strict)
		assert.Equal(t, 256, *req.MaxTokens)
		assert.Contains(t, string(body), `"temperature":0`)
	})

	t.Run("json object without schema", func(t *testing.T) {
		body, err := p.BuildRequestBody("llama3.2", messages, nil, 0, &llm.ResponseFormat{})
		require.NoError(t, err)
		assert.Contains(t, string(body), `"response_format":{"type":"json_object"}`)
	})
}

func TestOllamaProvider_ParseResponse(t *testing.T) {
	p := &OllamaProvider{}

	tests := []struct {
		name    string
		body    string
		want    string
		model   string
		wantErr bool
	}{
		{
			name:  "success",
			body:  `{"model":"llama3.2","choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`,
			want:  "ok",
			model: "llama3.2",
		},
		{
			name:  "model falls back to request",
			body:  `{"choices":[{"message":{"content":"ok"}}]}`,
			want:  "ok",
			model: "requested",
		},
		{
			name:    "no choices",
			body:    `{"choices":[]}`,
			wantErr: true,
		},
		{
			name:    "refusal",
			body:    `{"choices":[{"message":{"content":"","refusal":"cannot help"}}]}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			body:    `{`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := p.ParseResponse([]byte(tt.body), "requested")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)
			assert.Equal(t, tt.model, resp.Model)
		})
	}
}
