package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/qualcoder/llm"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIProvider talks to OpenAI, or to OpenRouter through OPENAI_BASE_URL.
type OpenAIProvider struct {
	chatCompletions
}

func init() {
	llm.RegisterProvider(&OpenAIProvider{})
}

// Name returns "openai".
func (o *OpenAIProvider) Name() string {
	return "openai"
}

// BuildURL returns the chat completions URL of baseURL, of
// OPENAI_BASE_URL, or of the public API.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultOpenAIURL
	}
	return chatCompletionsURL(baseURL)
}

// SetHeaders adds the bearer key and the optional OpenRouter attribution
// headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	for header, env := range map[string]string{
		"HTTP-Referer": "OPENROUTER_SITE_URL",
		"X-Title":      "OPENROUTER_SITE_NAME",
	} {
		if v := os.Getenv(env); v != "" {
			req.Header.Set(header, v)
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
}
