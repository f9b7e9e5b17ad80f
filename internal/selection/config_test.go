package selection

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, StrategyIncremental, cfg.Strategy)
	assert.Equal(t, 1, cfg.MinimumOrder)
	assert.Zero(t, cfg.MaximumOrder)
	assert.Equal(t, 1, cfg.TrialsNumber)
	assert.Equal(t, ReductionMinimum, cfg.Reduction)
	assert.Equal(t, 1000, cfg.MaximumIterations)
	assert.Equal(t, 10000*time.Second, cfg.MaximumTime)
	assert.True(t, cfg.Reserve.MinimalParameters)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Strategy, cfg.Strategy)
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordersel.yaml")
	body := `
strategy: golden_section
minimum_order: 2
maximum_order: 12
trials_number: 4
reduction: mean
maximum_time: 30s
reserve:
  parameters: false
  selection_error_history: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, StrategyGoldenSection, cfg.Strategy)
	assert.Equal(t, 2, cfg.MinimumOrder)
	assert.Equal(t, 12, cfg.MaximumOrder)
	assert.Equal(t, 4, cfg.TrialsNumber)
	assert.Equal(t, ReductionMean, cfg.Reduction)
	assert.Equal(t, 30*time.Second, cfg.MaximumTime)
	assert.False(t, cfg.Reserve.Parameters)
	assert.Equal(t, 1000, cfg.MaximumIterations, "unset keys keep defaults")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ordersel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("minimum_order: 2\nmaximum_order: 5\n"), 0o644))

	t.Setenv("ORDERSEL_MAXIMUM_ORDER", "9")
	t.Setenv("ORDERSEL_REDUCTION", "Maximum")
	t.Setenv("ORDERSEL_MAXIMUM_TIME", "1m")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MinimumOrder)
	assert.Equal(t, 9, cfg.MaximumOrder)
	assert.Equal(t, ReductionMaximum, cfg.Reduction)
	assert.Equal(t, time.Minute, cfg.MaximumTime)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("ORDERSEL_MINIMUM_ORDER", "5")
	t.Setenv("ORDERSEL_MAXIMUM_ORDER", "3")

	_, err := LoadConfig("")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero minimum", func(c *Config) { c.MinimumOrder = 0 }, ErrInvalidArgument},
		{"inverted bounds", func(c *Config) { c.MinimumOrder, c.MaximumOrder = 5, 3 }, ErrConfiguration},
		{"equal bounds", func(c *Config) { c.MinimumOrder, c.MaximumOrder = 4, 4 }, ErrConfiguration},
		{"zero trials", func(c *Config) { c.TrialsNumber = 0 }, ErrInvalidArgument},
		{"negative goal", func(c *Config) { c.SelectionErrorGoal = -1 }, ErrInvalidArgument},
		{"unknown reduction", func(c *Config) { c.Reduction = "median" }, ErrUnknownReductionPolicy},
		{"unknown strategy", func(c *Config) { c.Strategy = "grid" }, ErrUnknownStrategy},
		{"cooling rate", func(c *Config) {
			c.Strategy = StrategySimulatedAnnealing
			c.Annealing.CoolingRate = 1
		}, ErrInvalidArgument},
		{"cold start", func(c *Config) {
			c.Strategy = StrategySimulatedAnnealing
			c.Annealing.InitialTemperature = c.Annealing.MinimumTemperature
		}, ErrConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestConfig_ResolveBounds(t *testing.T) {
	cfg := DefaultConfig()
	minOrder, maxOrder := cfg.ResolveBounds(3, 2)
	assert.Equal(t, 1, minOrder)
	assert.Equal(t, 10, maxOrder)

	cfg.MinimumOrder = 20
	_, maxOrder = cfg.ResolveBounds(3, 2)
	assert.Equal(t, 21, maxOrder)

	cfg.MaximumOrder = 40
	_, maxOrder = cfg.ResolveBounds(3, 2)
	assert.Equal(t, 40, maxOrder)
}

func TestParseReductionPolicy(t *testing.T) {
	for in, want := range map[string]ReductionPolicy{
		"minimum": ReductionMinimum, "Maximum": ReductionMaximum, "Mean": ReductionMean,
	} {
		got, err := ParseReductionPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseReductionPolicy("avg")
	assert.ErrorIs(t, err, ErrUnknownReductionPolicy)
}
