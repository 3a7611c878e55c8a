package interpreter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const defaultObserver = "slog"

// Config holds the immutable startup configuration of a session.
type Config struct {
	// DefaultImports are primed at Start under silent mode so their own
	// output never reaches the caller.
	DefaultImports []string `json:"default_imports,omitempty" yaml:"default_imports,omitempty"`

	// Jars are archive locations hot-swapped in immediately after Start.
	Jars []string `json:"jars,omitempty" yaml:"jars,omitempty"`

	// Observer names a registered observer ("slog", "noop", or a custom
	// registration) used unless WithObserver overrides it.
	Observer string `json:"observer,omitempty" yaml:"observer,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Observer: defaultObserver,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if len(source.DefaultImports) > 0 {
		c.DefaultImports = source.DefaultImports
	}
	if len(source.Jars) > 0 {
		c.Jars = source.Jars
	}
	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a config file, merges it with defaults, and returns the
// resulting Config. The format is chosen by extension: .yaml/.yml parse as
// YAML, anything else as JSON.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	switch filepath.Ext(filename) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
