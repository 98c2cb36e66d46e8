package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/popsim/sim/population"
	"github.com/inference-sim/popsim/sim/trace"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_YAML(t *testing.T) {
	path := writeFile(t, "run.yaml", `
seed: 7
horizon: 365
log_level: debug
index:
  dense_divisor: 100
  sparse_divisor: 400
trace: plans
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Config{
		Seed:     7,
		Horizon:  365,
		LogLevel: "debug",
		Index:    population.Thresholds{DenseDivisor: 100, SparseDivisor: 400},
		Trace:    trace.TraceLevelPlans,
	}, *cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_TOMLKeepsDefaults(t *testing.T) {
	path := writeFile(t, "run.toml", `
seed = 11
trace = "full"
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, int64(11), cfg.Seed)
	assert.Equal(t, trace.TraceLevelFull, cfg.Trace)
	assert.Equal(t, population.DefaultThresholds(), cfg.Index)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "run.json", `{}`))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.yaml", "seed: [1, 2"))
	assert.Error(t, err)

	_, err = LoadConfig(writeFile(t, "bad.toml", "seed = "))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"negative horizon", func(c *Config) { c.Horizon = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"zero dense divisor", func(c *Config) { c.Index.DenseDivisor = 0 }},
		{"divisors inverted", func(c *Config) { c.Index = population.Thresholds{DenseDivisor: 200, SparseDivisor: 150} }},
		{"unknown trace level", func(c *Config) { c.Trace = "verbose" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}
