package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

const (
	// ProjectConfigFile is looked up in the working directory and its parents.
	ProjectConfigFile = "qualcoder.yaml"
	// UserConfigDir is relative to the home directory.
	UserConfigDir = ".config/qualcoder"
	// UserConfigFile lives in UserConfigDir.
	UserConfigFile = "config.yaml"
)

// Environment variables applied after every file layer.
const (
	EnvModel       = "QUALCODER_MODEL"
	EnvNATSURL     = "QUALCODER_NATS_URL"
	EnvMetricsAddr = "QUALCODER_METRICS_ADDR"
	EnvCallTimeout = "QUALCODER_CALL_TIMEOUT"
)

// layer is one configuration file. Optional layers that do not exist are
// skipped; a missing required layer is an error.
type layer struct {
	name     string
	path     string
	required bool
}

// Loader resolves the effective configuration from defaults, the user
// file, the nearest project file, an explicit file and the environment,
// in that order of increasing precedence.
type Loader struct {
	logger *slog.Logger
	getenv func(string) string
}

// NewLoader creates a loader. A nil logger uses slog.Default().
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, getenv: os.Getenv}
}

func (l *Loader) layers(explicit string) []layer {
	var layers []layer
	if path := l.userConfigPath(); path != "" {
		layers = append(layers, layer{name: "user", path: path})
	}
	if path := findUp(ProjectConfigFile); path != "" {
		layers = append(layers, layer{name: "project", path: path})
	}
	if explicit != "" {
		layers = append(layers, layer{name: "explicit", path: explicit, required: true})
	}
	return layers
}

// Load returns the validated effective configuration. explicit may be
// empty.
func (l *Loader) Load(explicit string) (*Config, error) {
	cfg := DefaultConfig()

	for _, ly := range l.layers(explicit) {
		over, err := parseFile(ly.path)
		switch {
		case err == nil:
			l.logger.Debug("Loaded config layer", "layer", ly.name, "path", ly.path)
			cfg.Merge(over)
		case ly.required:
			return nil, err
		case errors.Is(err, fs.ErrNotExist):
		default:
			l.logger.Warn("Ignoring unreadable config layer", "layer", ly.name, "path", ly.path, "error", err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) applyEnv(cfg *Config) error {
	if v := l.getenv(EnvModel); v != "" {
		cfg.Model.Default = v
	}
	if v := l.getenv(EnvNATSURL); v != "" {
		cfg.NATS.URL = v
	}
	if v := l.getenv(EnvMetricsAddr); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := l.getenv(EnvCallTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCallTimeout, err)
		}
		cfg.Model.CallTimeout = d
	}
	return nil
}

// EnsureUserConfig writes the default configuration to the user config
// path unless a file is already there, and returns the path.
func (l *Loader) EnsureUserConfig() (string, error) {
	path := l.userConfigPath()
	if path == "" {
		return "", errors.New("no home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("Created default user config", "path", path)
	return path, nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findUp returns the first name found walking from the working directory
// to the filesystem root, or "".
func findUp(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
