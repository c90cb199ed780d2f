package model

import "strings"

// Provider names understood by the llm package.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// InferProvider guesses the provider serving a bare model identifier.
// Claude models go to Anthropic, GPT and o-series models to OpenAI, and
// anything else to a local OpenAI-compatible server.
func InferProvider(modelName string) string {
	name := strings.ToLower(modelName)
	switch {
	case strings.HasPrefix(name, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(name, "gpt-"),
		strings.HasPrefix(name, "chatgpt-"),
		strings.HasPrefix(name, "o1"),
		strings.HasPrefix(name, "o3"),
		strings.HasPrefix(name, "o4"):
		return ProviderOpenAI
	default:
		return ProviderOllama
	}
}

// InferEndpoint builds an endpoint for a model identifier that has no
// configured endpoint.
func InferEndpoint(modelName string) *EndpointConfig {
	return &EndpointConfig{
		Provider: InferProvider(modelName),
		Model:    modelName,
	}
}
