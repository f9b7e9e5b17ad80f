package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/order-selection/internal/eval"
	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Inputs          int                     `json:"inputs"`
	Outputs         int                     `json:"outputs"`
	Config          selection.Config        `json:"config"`
	Eval            FixtureEvalConfig       `json:"eval_config"`
	Evaluations     []FixtureEvaluation     `json:"evaluations"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results,omitempty"`
}

// FixtureEvaluation is one recorded order.
type FixtureEvaluation struct {
	Order          int       `json:"order"`
	TrainingError  float64   `json:"training_error"`
	SelectionError float64   `json:"selection_error"`
	Parameters     []float64 `json:"parameters,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per strategy. An
// empty StoppingCondition is not checked.
type FixtureExpectedResult struct {
	Strategy          selection.StrategyName      `json:"strategy"`
	OptimalOrder      int                         `json:"optimal_order"`
	StoppingCondition selection.StoppingCondition `json:"stopping_condition,omitempty"`
}

// FixtureEvalConfig mirrors eval.EvalConfig with JSON tags.
type FixtureEvalConfig struct {
	MaxSelectionError float64 `json:"max_selection_error"`
	RequireOptimum    bool    `json:"require_optimum"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file. Config fields absent
// from the file keep their defaults.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: DefaultReplayConfig().Selection}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// FixtureFromRecords captures a finished run's history as a fixture.
func FixtureFromRecords(description string, records []selection.EvaluationRecord, cfg selection.Config, inputs, outputs int) *Fixture {
	f := &Fixture{
		Description: description,
		Inputs:      inputs,
		Outputs:     outputs,
		Config:      cfg,
		Eval:        FixtureEvalConfig{RequireOptimum: true},
	}
	for _, rec := range records {
		f.Evaluations = append(f.Evaluations, FixtureEvaluation{
			Order:          rec.Order,
			TrainingError:  rec.TrainingError,
			SelectionError: rec.SelectionError,
			Parameters:     rec.Parameters,
		})
	}
	return f
}

// Sweep converts the recorded evaluations.
func (f *Fixture) Sweep() Sweep {
	s := make(Sweep, len(f.Evaluations))
	for _, e := range f.Evaluations {
		s[e.Order] = selection.TrialOutcome{
			TrainingError:  e.TrainingError,
			SelectionError: e.SelectionError,
			Parameters:     e.Parameters,
		}
	}
	return s
}

// ToReplayConfig converts the fixture settings to a ReplayConfig.
func (f *Fixture) ToReplayConfig() ReplayConfig {
	return ReplayConfig{
		Selection: f.Config,
		Eval: eval.EvalConfig{
			MaxSelectionError: f.Eval.MaxSelectionError,
			RequireOptimum:    f.Eval.RequireOptimum,
		},
		Inputs:  f.Inputs,
		Outputs: f.Outputs,
	}
}

// #endregion fixture-loader
