package providers

import (
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/c360studio/qualcoder/llm"
)

const defaultOllamaURL = "http://localhost:11434/v1"

// OllamaProvider serves local models through Ollama's OpenAI-compatible
// API. vLLM and other compatible servers work the same way.
type OllamaProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OllamaProvider{})
}

// Name returns "ollama".
func (o *OllamaProvider) Name() string {
	return "ollama"
}

// BuildURL returns the chat completions URL of baseURL, of OLLAMA_HOST, or
// of the local default.
func (o *OllamaProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = ollamaHostURL(os.Getenv("OLLAMA_HOST"))
	}
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	return chatCompletionsURL(baseURL)
}

// ollamaHostURL turns an OLLAMA_HOST value, which Ollama itself accepts as
// a bare host:port, into an API base URL.
func ollamaHostURL(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	u, err := url.Parse(host)
	if err != nil {
		return host
	}
	if strings.Trim(u.Path, "/") == "" {
		u.Path = "/v1"
	}
	return u.String()
}

// SetHeaders sends OPENAI_API_KEY when set, for gateways that need one.
func (o *OllamaProvider) SetHeaders(req *http.Request) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}
