package model

import (
	"sort"
	"sync"
)

// CapabilityConfig routes one capability.
type CapabilityConfig struct {
	Description string `json:"description" yaml:"description"`

	// Preferred models are tried first, in order.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback models are tried once every preferred model has failed.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// EndpointConfig describes where a named model is served.
type EndpointConfig struct {
	// Provider is anthropic, openai or ollama.
	Provider string `json:"provider" yaml:"provider"`

	// URL overrides the provider's base URL.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the context window, informational only.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// DefaultsConfig applies when a request names no capability route.
type DefaultsConfig struct {
	Model string `json:"model" yaml:"model"`

	// Fallback follows an explicitly requested model.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Registry resolves capabilities and model names to endpoint chains. It is
// safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	defaults     DefaultsConfig

	breakers *breakerSet
}

// NewRegistry creates a registry with exactly the given routes and
// endpoints. Models without an endpoint are inferred on use.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	r := &Registry{
		capabilities: make(map[Capability]*CapabilityConfig, len(caps)),
		endpoints:    make(map[string]*EndpointConfig, len(endpoints)),
		defaults:     DefaultsConfig{Model: DefaultModel},
		breakers:     newBreakerSet(DefaultHealthConfig()),
	}
	for c, cfg := range caps {
		r.capabilities[c] = cfg
	}
	for name, ep := range endpoints {
		r.endpoints[name] = ep
	}
	return r
}

// NewDefaultRegistry creates a registry with the built-in routes and
// endpoints.
func NewDefaultRegistry() *Registry {
	return NewRegistry(builtinCapabilities(), builtinEndpoints())
}

// Chain returns the models for a capability in the order they are tried.
// An unrouted capability gets the default model alone.
func (r *Registry) Chain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok || len(cfg.Preferred)+len(cfg.Fallback) == 0 {
		return []string{r.defaults.Model}
	}
	return uniqueChain(cfg.Preferred, cfg.Fallback)
}

// ChainForModel returns the chain for an explicitly requested model: the
// model followed by the default fallbacks.
func (r *Registry) ChainForModel(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return uniqueChain([]string{name}, r.defaults.Fallback)
}

// uniqueChain concatenates parts, keeping the first occurrence of each
// model and dropping empty names.
func uniqueChain(parts ...[]string) []string {
	var chain []string
	seen := make(map[string]bool)
	for _, part := range parts {
		for _, name := range part {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			chain = append(chain, name)
		}
	}
	return chain
}

// Endpoint returns the configured endpoint for name.
func (r *Registry) Endpoint(name string) (*EndpointConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.endpoints[name]
	return ep, ok
}

// EndpointFor returns the configured endpoint for name, or one inferred
// from the name. Inferred endpoints are not stored.
func (r *Registry) EndpointFor(name string) *EndpointConfig {
	if ep, ok := r.Endpoint(name); ok {
		return ep
	}
	return InferEndpoint(name)
}

// EndpointNames returns the configured endpoint names, sorted.
func (r *Registry) EndpointNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
