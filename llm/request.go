package llm

import (
	"errors"
	"fmt"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"` // system, user or assistant
	Content string `json:"content"`
}

// Request is one chat completion.
type Request struct {
	// Capability picks the model chain from the registry ("coding",
	// "extraction"). Unknown capabilities use the fast chain.
	Capability string

	// Model names a model explicitly and overrides Capability. The chain is
	// the model followed by the registry's default fallbacks.
	Model string

	Messages []Message

	// Temperature is nil for the endpoint default.
	Temperature *float64

	// MaxTokens is 0 for the endpoint default.
	MaxTokens int

	// ResponseFormat asks for JSON matching a schema.
	ResponseFormat *ResponseFormat
}

func (r Request) validate() error {
	if len(r.Messages) == 0 {
		return errors.New("at least one message is required")
	}
	if r.Model == "" && r.Capability == "" {
		return errors.New("capability or model is required")
	}
	return nil
}

// target names what a request asked for, for error messages.
func (r Request) target() string {
	if r.Model != "" {
		return "model " + r.Model
	}
	return "capability " + r.Capability
}

// TokenUsage is the token accounting reported by a provider.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a successful completion.
type Response struct {
	// RequestID identifies the call in the call store.
	RequestID string

	Content string

	// Model is the model that answered, which may be a fallback.
	Model string

	Usage        TokenUsage
	FinishReason string
}

// EndpointAttempt summarizes the tries made against one model of the chain.
type EndpointAttempt struct {
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Tries    int    `json:"tries"`
	Error    string `json:"error,omitempty"`
}

func (a EndpointAttempt) String() string {
	if a.Error == "" {
		return fmt.Sprintf("%s/%s ok after %d tries", a.Provider, a.Model, a.Tries)
	}
	return fmt.Sprintf("%s/%s failed after %d tries: %s", a.Provider, a.Model, a.Tries, a.Error)
}
