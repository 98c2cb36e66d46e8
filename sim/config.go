package sim

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/inference-sim/popsim/sim/population"
	"github.com/inference-sim/popsim/sim/trace"
)

// Config holds the kernel settings, loadable from a YAML or TOML file.
type Config struct {
	Seed     int64                 `yaml:"seed" toml:"seed"`
	Horizon  float64               `yaml:"horizon" toml:"horizon"` // 0 = run until no plans remain
	LogLevel string                `yaml:"log_level" toml:"log_level"`
	Index    population.Thresholds `yaml:"index" toml:"index"`
	Trace    trace.TraceLevel      `yaml:"trace" toml:"trace"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Seed:     42,
		LogLevel: "warn",
		Index:    population.DefaultThresholds(),
		Trace:    trace.TraceLevelNone,
	}
}

// LoadConfig reads a config file, choosing the decoder by extension
// (.yaml/.yml or .toml). Fields missing from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config extension %q (want .yaml, .yml or .toml)", ext)
	}
	return &cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	if c.Horizon < 0 || math.IsNaN(c.Horizon) || math.IsInf(c.Horizon, 0) {
		return fmt.Errorf("horizon must be a finite non-negative number, got %v", c.Horizon)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return fmt.Errorf("invalid log_level: %w", err)
		}
	}
	if err := c.Index.Validate(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if !trace.IsValidTraceLevel(string(c.Trace)) {
		return fmt.Errorf("unknown trace level %q", c.Trace)
	}
	return nil
}
