package model

import (
	"fmt"
	"sort"
)

// RegistryConfig overrides the built-in routing. It is the "model" section
// of the qualcoder configuration file, flattened by the config package.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Endpoints    map[string]*EndpointConfig   `json:"endpoints,omitempty" yaml:"endpoints,omitempty"`
	Defaults     *DefaultsConfig              `json:"defaults,omitempty" yaml:"defaults,omitempty"`
}

// Validate rejects capability routes for unknown capabilities and
// endpoints without a known provider.
func (cfg *RegistryConfig) Validate() error {
	for _, name := range sortedKeys(cfg.Capabilities) {
		if !Capability(name).IsValid() {
			return fmt.Errorf("unknown capability %q", name)
		}
	}
	for _, name := range sortedKeys(cfg.Endpoints) {
		ep := cfg.Endpoints[name]
		if ep == nil || ep.Provider == "" {
			return fmt.Errorf("endpoints.%s.provider is required", name)
		}
		switch ep.Provider {
		case ProviderAnthropic, ProviderOpenAI, ProviderOllama:
		default:
			return fmt.Errorf("endpoints.%s.provider: unknown provider %q", name, ep.Provider)
		}
	}
	return nil
}

// NewRegistryFromConfig builds the default registry and applies cfg on top.
func NewRegistryFromConfig(cfg *RegistryConfig) *Registry {
	r := NewDefaultRegistry()
	if cfg != nil {
		r.Apply(cfg)
	}
	return r
}

// Apply overlays cfg: named capabilities and endpoints are replaced, and
// non-empty defaults override the current ones.
func (r *Registry) Apply(cfg *RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name, c := range cfg.Capabilities {
		r.capabilities[Capability(name)] = c
	}
	for name, ep := range cfg.Endpoints {
		r.endpoints[name] = ep
	}
	if d := cfg.Defaults; d != nil {
		if d.Model != "" {
			r.defaults.Model = d.Model
		}
		if d.Fallback != nil {
			r.defaults.Fallback = append([]string(nil), d.Fallback...)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
