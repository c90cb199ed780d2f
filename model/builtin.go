package model

// DefaultModel codes answers when the configuration names no model.
const DefaultModel = "gpt-4o-mini"

const defaultOllamaURL = "http://localhost:11434/v1"

// builtinEndpoints are available without any configuration. Keys are the
// names used in chains; Model is what the provider receives.
func builtinEndpoints() map[string]*EndpointConfig {
	return map[string]*EndpointConfig{
		"gpt-4o-mini":   {Provider: ProviderOpenAI, Model: "gpt-4o-mini", MaxTokens: 128000},
		"gpt-4o":        {Provider: ProviderOpenAI, Model: "gpt-4o", MaxTokens: 128000},
		"claude-sonnet": {Provider: ProviderAnthropic, Model: "claude-sonnet-4-20250514", MaxTokens: 200000},
		"claude-haiku":  {Provider: ProviderAnthropic, Model: "claude-3-5-haiku-20241022", MaxTokens: 200000},
		"llama3.2":      {Provider: ProviderOllama, URL: defaultOllamaURL, Model: "llama3.2", MaxTokens: 128000},
	}
}

// builtinCapabilities prefers a hosted model per capability and falls back
// to another vendor, then to a local model.
func builtinCapabilities() map[Capability]*CapabilityConfig {
	return map[Capability]*CapabilityConfig{
		CapabilityCoding: {
			Description: "Thematic coding of interview answers",
			Preferred:   []string{"gpt-4o-mini"},
			Fallback:    []string{"claude-haiku", "llama3.2"},
		},
		CapabilityExtraction: {
			Description: "Answering questionnaire questions from transcripts",
			Preferred:   []string{"gpt-4o"},
			Fallback:    []string{"claude-sonnet", "llama3.2"},
		},
		CapabilityFast: {
			Description: "Short untyped requests",
			Preferred:   []string{"gpt-4o-mini"},
			Fallback:    []string{"llama3.2"},
		},
	}
}
