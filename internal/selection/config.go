package selection

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// #region strategy-name

// StrategyName identifies a search policy.
type StrategyName string

const (
	StrategyIncremental        StrategyName = "incremental"
	StrategyGoldenSection      StrategyName = "golden_section"
	StrategySimulatedAnnealing StrategyName = "simulated_annealing"
)

// Strategies lists the built-in policies.
var Strategies = []StrategyName{
	StrategyIncremental,
	StrategyGoldenSection,
	StrategySimulatedAnnealing,
}

// #endregion

// #region config-types

// Config holds every order-selection setting. Load with LoadConfig or
// start from DefaultConfig.
type Config struct {
	Strategy StrategyName `json:"strategy" yaml:"strategy"`

	MinimumOrder int `json:"minimum_order" yaml:"minimum_order"`
	// MaximumOrder 0 means 2*(inputs+outputs), resolved at check time.
	MaximumOrder int             `json:"maximum_order" yaml:"maximum_order"`
	TrialsNumber int             `json:"trials_number" yaml:"trials_number"`
	Reduction    ReductionPolicy `json:"reduction" yaml:"reduction"`

	SelectionErrorGoal float64       `json:"selection_error_goal" yaml:"selection_error_goal"`
	MaximumIterations  int           `json:"maximum_iterations" yaml:"maximum_iterations"`
	MaximumTime        time.Duration `json:"maximum_time" yaml:"maximum_time"`
	// Tolerance is the golden-section bracket width, in order units, at
	// which the search converges.
	Tolerance float64 `json:"tolerance" yaml:"tolerance"`

	// Displacement is the uniform perturbation applied before the first
	// trial of a newly sized network.
	Displacement float64      `json:"displacement" yaml:"displacement"`
	Display      bool         `json:"display" yaml:"display"`
	Reserve      ReserveFlags `json:"reserve" yaml:"reserve"`

	Incremental IncrementalConfig `json:"incremental" yaml:"incremental"`
	Annealing   AnnealingConfig   `json:"annealing" yaml:"annealing"`
}

// IncrementalConfig tunes the stepwise policy.
type IncrementalConfig struct {
	Step                     int `json:"step" yaml:"step"`
	MaximumSelectionFailures int `json:"maximum_selection_failures" yaml:"maximum_selection_failures"`
}

// AnnealingConfig tunes the simulated-annealing policy.
type AnnealingConfig struct {
	InitialTemperature float64 `json:"initial_temperature" yaml:"initial_temperature"`
	CoolingRate        float64 `json:"cooling_rate" yaml:"cooling_rate"`
	MinimumTemperature float64 `json:"minimum_temperature" yaml:"minimum_temperature"`
	// Seed 0 seeds from the clock.
	Seed uint64 `json:"seed" yaml:"seed"`
}

// #endregion

// #region defaults

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Strategy:           StrategyIncremental,
		MinimumOrder:       1,
		MaximumOrder:       0,
		TrialsNumber:       1,
		Reduction:          ReductionMinimum,
		SelectionErrorGoal: 0,
		MaximumIterations:  1000,
		MaximumTime:        10000 * time.Second,
		Tolerance:          1.0e-3,
		Displacement:       0.5,
		Display:            true,
		Reserve: ReserveFlags{
			Parameters:            true,
			TrainingErrorHistory:  true,
			SelectionErrorHistory: true,
			MinimalParameters:     true,
		},
		Incremental: IncrementalConfig{
			Step:                     1,
			MaximumSelectionFailures: 10,
		},
		Annealing: AnnealingConfig{
			InitialTemperature: 1.0,
			CoolingRate:        0.5,
			MinimumTemperature: 1.0e-3,
		},
	}
}

// #endregion

// #region load

// LoadConfig loads configuration with priority env > file > defaults.
// A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadConfigFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	loadConfigFromEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return fmt.Errorf("parse config (tried YAML and JSON): YAML error: %v, JSON error: %w", err, jsonErr)
		}
	}
	return nil
}

func loadConfigFromEnv(cfg *Config) {
	if v := os.Getenv("ORDERSEL_STRATEGY"); v != "" {
		cfg.Strategy = StrategyName(v)
	}
	if v := os.Getenv("ORDERSEL_MINIMUM_ORDER"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MinimumOrder = i
		}
	}
	if v := os.Getenv("ORDERSEL_MAXIMUM_ORDER"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaximumOrder = i
		}
	}
	if v := os.Getenv("ORDERSEL_TRIALS_NUMBER"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.TrialsNumber = i
		}
	}
	if v := os.Getenv("ORDERSEL_REDUCTION"); v != "" {
		if p, err := ParseReductionPolicy(v); err == nil {
			cfg.Reduction = p
		} else {
			cfg.Reduction = ReductionPolicy(v) // surfaces in Validate
		}
	}
	if v := os.Getenv("ORDERSEL_SELECTION_ERROR_GOAL"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SelectionErrorGoal = f
		}
	}
	if v := os.Getenv("ORDERSEL_MAXIMUM_ITERATIONS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.MaximumIterations = i
		}
	}
	if v := os.Getenv("ORDERSEL_MAXIMUM_TIME"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.MaximumTime = d
		}
	}
	if v := os.Getenv("ORDERSEL_TOLERANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Tolerance = f
		}
	}
	if v := os.Getenv("ORDERSEL_DISPLAY"); v != "" {
		cfg.Display = v == "true" || v == "1"
	}
	if v := os.Getenv("ORDERSEL_ANNEALING_SEED"); v != "" {
		if u, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Annealing.Seed = u
		}
	}
}

// #endregion

// #region validate

// Validate checks ranges. Non-positive bounds are ErrInvalidArgument;
// inconsistent combinations are ErrConfiguration.
func (c Config) Validate() error {
	if c.MinimumOrder < 1 {
		return fmt.Errorf("%w: minimum_order (%d) must be greater than 0", ErrInvalidArgument, c.MinimumOrder)
	}
	if c.MaximumOrder < 0 {
		return fmt.Errorf("%w: maximum_order (%d) must not be negative", ErrInvalidArgument, c.MaximumOrder)
	}
	if c.MaximumOrder != 0 && c.MaximumOrder <= c.MinimumOrder {
		return fmt.Errorf("%w: maximum_order (%d) must be greater than minimum_order (%d)",
			ErrConfiguration, c.MaximumOrder, c.MinimumOrder)
	}
	if c.TrialsNumber < 1 {
		return fmt.Errorf("%w: trials_number (%d) must be greater than 0", ErrInvalidArgument, c.TrialsNumber)
	}
	if c.MaximumIterations < 1 {
		return fmt.Errorf("%w: maximum_iterations (%d) must be greater than 0", ErrInvalidArgument, c.MaximumIterations)
	}
	if c.MaximumTime <= 0 {
		return fmt.Errorf("%w: maximum_time (%s) must be greater than 0", ErrInvalidArgument, c.MaximumTime)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance (%g) must not be negative", ErrInvalidArgument, c.Tolerance)
	}
	if c.SelectionErrorGoal < 0 {
		return fmt.Errorf("%w: selection_error_goal (%g) must not be negative", ErrInvalidArgument, c.SelectionErrorGoal)
	}
	if c.Displacement < 0 {
		return fmt.Errorf("%w: displacement (%g) must not be negative", ErrInvalidArgument, c.Displacement)
	}
	if err := c.Reduction.Validate(); err != nil {
		return err
	}

	switch c.Strategy {
	case StrategyIncremental:
		if c.Incremental.Step < 1 {
			return fmt.Errorf("%w: incremental.step (%d) must be greater than 0", ErrInvalidArgument, c.Incremental.Step)
		}
		if c.Incremental.MaximumSelectionFailures < 1 {
			return fmt.Errorf("%w: incremental.maximum_selection_failures (%d) must be greater than 0",
				ErrInvalidArgument, c.Incremental.MaximumSelectionFailures)
		}
	case StrategyGoldenSection:
	case StrategySimulatedAnnealing:
		a := c.Annealing
		if a.CoolingRate <= 0 || a.CoolingRate >= 1 {
			return fmt.Errorf("%w: annealing.cooling_rate (%g) must be in (0, 1)", ErrInvalidArgument, a.CoolingRate)
		}
		if a.MinimumTemperature <= 0 {
			return fmt.Errorf("%w: annealing.minimum_temperature (%g) must be greater than 0", ErrInvalidArgument, a.MinimumTemperature)
		}
		if a.InitialTemperature <= a.MinimumTemperature {
			return fmt.Errorf("%w: annealing.initial_temperature (%g) must exceed minimum_temperature (%g)",
				ErrConfiguration, a.InitialTemperature, a.MinimumTemperature)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, string(c.Strategy))
	}
	return nil
}

// ResolveBounds returns the effective order range for a network with the
// given input and output widths.
func (c Config) ResolveBounds(inputs, outputs int) (minOrder, maxOrder int) {
	minOrder = c.MinimumOrder
	maxOrder = c.MaximumOrder
	if maxOrder == 0 {
		maxOrder = 2 * (inputs + outputs)
		if maxOrder <= minOrder {
			maxOrder = minOrder + 1
		}
	}
	return minOrder, maxOrder
}

// #endregion
