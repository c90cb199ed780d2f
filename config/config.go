// Package config holds the qualcoder configuration file format, its
// defaults and validation, and the layered Loader.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/c360studio/qualcoder/coding"
	"github.com/c360studio/qualcoder/export"
	"github.com/c360studio/qualcoder/model"
	"gopkg.in/yaml.v3"
)

// Config is the effective configuration of one qualcoder invocation.
type Config struct {
	Model   ModelConfig   `yaml:"model"`
	Coding  CodingConfig  `yaml:"coding"`
	Output  OutputConfig  `yaml:"output"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ModelConfig selects and tunes the classifier model.
type ModelConfig struct {
	// Default is the model identifier used for coding (e.g., "gpt-4o-mini")
	Default string `yaml:"default"`
	// Temperature controls randomness (0.0-1.0, default: 0)
	Temperature float64 `yaml:"temperature"`
	// MaxTokens limits response length (0 = endpoint default)
	MaxTokens int `yaml:"max_tokens,omitempty"`
	// CallTimeout bounds one classifier call (0 = no bound)
	CallTimeout time.Duration `yaml:"call_timeout"`
	// Endpoints adds or replaces named model endpoints
	Endpoints map[string]*model.EndpointConfig `yaml:"endpoints,omitempty"`
	// Capabilities overrides the preferred models per capability
	Capabilities map[string]*model.CapabilityConfig `yaml:"capabilities,omitempty"`
	// Fallback lists models tried after Default fails
	Fallback []string `yaml:"fallback,omitempty"`
}

// CodingConfig tunes the aggregation fold.
type CodingConfig struct {
	// VocabularyScope is "question_text" (default) or "row"
	VocabularyScope string `yaml:"vocabulary_scope"`
	// ParallelQuestions is the number of vocabulary keys coded concurrently
	ParallelQuestions int `yaml:"parallel_questions"`
	// TrimCodes trims returned codes and drops empty ones (default: true)
	TrimCodes *bool `yaml:"trim_codes,omitempty"`
}

// OutputConfig controls which artifacts are written and where.
type OutputConfig struct {
	// Dir is the directory artifacts are written to
	Dir string `yaml:"dir"`
	// Formats lists the export formats (json, csv, xlsx)
	Formats []string `yaml:"formats"`
	// Timestamp prefixes artifact names with the run time (default: true)
	Timestamp *bool `yaml:"timestamp,omitempty"`
	// MergeQuestion shows each question label once per block (default: true)
	MergeQuestion *bool `yaml:"merge_question,omitempty"`
}

// NATSConfig enables run persistence in JetStream key-value buckets.
type NATSConfig struct {
	// URL is the NATS server URL (empty = persistence disabled)
	URL string `yaml:"url"`
	// BucketPrefix prefixes the KV bucket names
	BucketPrefix string `yaml:"bucket_prefix"`
	// TTL expires stored entries (0 = keep forever)
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// MetricsConfig enables the Prometheus listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration used when no file sets a value.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Default:     model.DefaultModel,
			Temperature: 0,
			CallTimeout: 2 * time.Minute,
		},
		Coding: CodingConfig{
			VocabularyScope:   string(coding.ScopeQuestionText),
			ParallelQuestions: 1,
			TrimCodes:         boolPtr(true),
		},
		Output: OutputConfig{
			Dir:           filepath.Join("data", "outputs"),
			Formats:       []string{string(export.FormatJSON), string(export.FormatXLSX)},
			Timestamp:     boolPtr(true),
			MergeQuestion: boolPtr(true),
		},
		NATS: NATSConfig{
			BucketPrefix: "QUALCODER",
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

// boolOr returns *b, or def when b is nil.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// TrimCodes reports whether returned codes are trimmed.
func (c *Config) TrimCodes() bool {
	return boolOr(c.Coding.TrimCodes, true)
}

// Timestamped reports whether artifact names carry the run time.
func (c *Config) Timestamped() bool {
	return boolOr(c.Output.Timestamp, true)
}

// MergeQuestion reports whether repeated question labels are blanked.
func (c *Config) MergeQuestion() bool {
	return boolOr(c.Output.MergeQuestion, true)
}

// Validate reports the first invalid setting, naming its YAML path.
func (c *Config) Validate() error {
	if c.Model.Default == "" {
		return fmt.Errorf("model.default is required")
	}
	if c.Model.Temperature < 0 || c.Model.Temperature > 1 {
		return fmt.Errorf("model.temperature must be between 0 and 1")
	}
	if c.Model.CallTimeout < 0 {
		return fmt.Errorf("model.call_timeout must not be negative")
	}
	if err := c.RegistryConfig().Validate(); err != nil {
		return fmt.Errorf("model.%w", err)
	}
	if _, err := coding.ParseScope(c.Coding.VocabularyScope); err != nil {
		return fmt.Errorf("coding.vocabulary_scope: %w", err)
	}
	if c.Coding.ParallelQuestions < 1 {
		return fmt.Errorf("coding.parallel_questions must be at least 1")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if _, err := export.ParseFormats(c.Output.Formats); err != nil {
		return fmt.Errorf("output.formats: %w", err)
	}
	return nil
}

// Scope returns the parsed vocabulary scope.
func (c *Config) Scope() coding.Scope {
	scope, err := coding.ParseScope(c.Coding.VocabularyScope)
	if err != nil {
		return coding.ScopeQuestionText
	}
	return scope
}

// RegistryConfig returns the model registry overrides of this config.
func (c *Config) RegistryConfig() *model.RegistryConfig {
	rc := &model.RegistryConfig{
		Capabilities: c.Model.Capabilities,
		Endpoints:    c.Model.Endpoints,
	}
	if c.Model.Default != "" || len(c.Model.Fallback) > 0 {
		rc.Defaults = &model.DefaultsConfig{
			Model:    c.Model.Default,
			Fallback: c.Model.Fallback,
		}
	}
	return rc
}

// Registry builds the model registry: built-in endpoints plus this
// config's overrides.
func (c *Config) Registry() *model.Registry {
	return model.NewRegistryFromConfig(c.RegistryConfig())
}

// LoadFromFile reads path over the defaults. The result is not validated.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseFile reads path without defaults, so Merge sees only the values the
// file sets.
func parseFile(path string) (*Config, error) {
	cfg := &Config{}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeFile(path string, into *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// SaveToFile writes c as YAML, creating the parent directory.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Merge overlays the values other sets. Zero values and nil pointers in
// other leave c unchanged; endpoint and capability maps merge per key.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	m, om := &c.Model, &other.Model
	setNonZero(&m.Default, om.Default)
	setNonZero(&m.Temperature, om.Temperature)
	setNonZero(&m.MaxTokens, om.MaxTokens)
	setNonZero(&m.CallTimeout, om.CallTimeout)
	m.Endpoints = mergeMap(m.Endpoints, om.Endpoints)
	m.Capabilities = mergeMap(m.Capabilities, om.Capabilities)
	setSlice(&m.Fallback, om.Fallback)

	setNonZero(&c.Coding.VocabularyScope, other.Coding.VocabularyScope)
	setNonZero(&c.Coding.ParallelQuestions, other.Coding.ParallelQuestions)
	setPtr(&c.Coding.TrimCodes, other.Coding.TrimCodes)

	setNonZero(&c.Output.Dir, other.Output.Dir)
	setSlice(&c.Output.Formats, other.Output.Formats)
	setPtr(&c.Output.Timestamp, other.Output.Timestamp)
	setPtr(&c.Output.MergeQuestion, other.Output.MergeQuestion)

	setNonZero(&c.NATS.URL, other.NATS.URL)
	setNonZero(&c.NATS.BucketPrefix, other.NATS.BucketPrefix)
	setNonZero(&c.NATS.TTL, other.NATS.TTL)

	setNonZero(&c.Metrics.Addr, other.Metrics.Addr)
}

func setNonZero[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setPtr[T any](dst **T, v *T) {
	if v != nil {
		*dst = v
	}
}

func setSlice[T any](dst *[]T, v []T) {
	if len(v) > 0 {
		*dst = v
	}
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
