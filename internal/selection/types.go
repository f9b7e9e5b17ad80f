package selection

// #region imports
import (
	"context"
	"fmt"
	"time"
)

// #endregion

// #region reduction-policy

// ReductionPolicy collapses repeated trials at one order into one outcome.
type ReductionPolicy string

const (
	ReductionMinimum ReductionPolicy = "minimum"
	ReductionMaximum ReductionPolicy = "maximum"
	ReductionMean    ReductionPolicy = "mean"
)

// ParseReductionPolicy accepts the lower-case names and the
// capitalized spellings ("Minimum", "Maximum", "Mean").
func ParseReductionPolicy(s string) (ReductionPolicy, error) {
	switch s {
	case "minimum", "Minimum":
		return ReductionMinimum, nil
	case "maximum", "Maximum":
		return ReductionMaximum, nil
	case "mean", "Mean":
		return ReductionMean, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownReductionPolicy, s)
	}
}

// Validate reports whether p is one of the known policies.
func (p ReductionPolicy) Validate() error {
	switch p {
	case ReductionMinimum, ReductionMaximum, ReductionMean:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownReductionPolicy, string(p))
	}
}

// #endregion

// #region training-method

// TrainingMethod names the main algorithm that produced a TrainingResult.
type TrainingMethod string

const (
	MethodGradientDescent    TrainingMethod = "gradient_descent"
	MethodConjugateGradient  TrainingMethod = "conjugate_gradient"
	MethodQuasiNewton        TrainingMethod = "quasi_newton"
	MethodLevenbergMarquardt TrainingMethod = "levenberg_marquardt"
	MethodNoMain             TrainingMethod = "no_main"
	MethodUserMain           TrainingMethod = "user_main"
)

// TrainingMethods lists every method finalErrors must handle.
var TrainingMethods = []TrainingMethod{
	MethodGradientDescent,
	MethodConjugateGradient,
	MethodQuasiNewton,
	MethodLevenbergMarquardt,
	MethodNoMain,
	MethodUserMain,
}

// #endregion

// #region stopping-condition

// StoppingCondition is the terminal reason a search ended.
type StoppingCondition string

const (
	StopMaximumTime              StoppingCondition = "MaximumTime"
	StopSelectionErrorGoal       StoppingCondition = "SelectionErrorGoal"
	StopMaximumIterations        StoppingCondition = "MaximumIterations"
	StopMaximumSelectionFailures StoppingCondition = "MaximumSelectionFailures"
	StopMinimumTemperature       StoppingCondition = "MinimumTemperature"
	StopConverged                StoppingCondition = "Converged"
	StopAlgorithmFinished        StoppingCondition = "AlgorithmFinished"
)

func (c StoppingCondition) String() string {
	return string(c)
}

// #endregion

// #region records

// TrainingResult is what a Trainer reports after one blocking train call.
type TrainingResult struct {
	Method              TrainingMethod
	FinalTrainingError  float64
	FinalSelectionError float64
}

// TrialOutcome is the reduced result of a trial batch at one order.
type TrialOutcome struct {
	TrainingError  float64
	SelectionError float64
	Parameters     []float64
}

// EvaluationRecord is one measured order. The history holds at most one
// record per order.
type EvaluationRecord struct {
	Position       int // insertion index in the history
	Order          int
	TrainingError  float64
	SelectionError float64
	Parameters     []float64
	EvaluatedAt    time.Time
}

// Outcome returns the record's metrics as a TrialOutcome.
func (r EvaluationRecord) Outcome() TrialOutcome {
	return TrialOutcome{
		TrainingError:  r.TrainingError,
		SelectionError: r.SelectionError,
		Parameters:     r.Parameters,
	}
}

// StoppingState is the loop bookkeeping consulted by policies.
type StoppingState struct {
	Iterations         int
	SelectionFailures  int
	Elapsed            time.Duration
	Temperature        float64
	BestSelectionError float64
	BestOrder          int
}

// ReserveFlags selects which history columns the results keep.
type ReserveFlags struct {
	Parameters            bool `json:"parameters" yaml:"parameters"`
	TrainingErrorHistory  bool `json:"training_error_history" yaml:"training_error_history"`
	SelectionErrorHistory bool `json:"selection_error_history" yaml:"selection_error_history"`
	MinimalParameters     bool `json:"minimal_parameters" yaml:"minimal_parameters"`
}

// #endregion

// #region collaborators

// Trainer fits parameters for the network's current architecture. Train
// blocks until training finishes.
type Trainer interface {
	Train(ctx context.Context) (TrainingResult, error)
	// Scorer returns the error functional the trainer optimizes, or nil.
	Scorer() Scorer
}

// Scorer is the error functional seen by check().
type Scorer interface {
	InputsCount() int
	OutputsCount() int
}

// DataSource describes the instances the scorer evaluates.
type DataSource interface {
	InputVariablesCount() int
	TargetVariablesCount() int
	SelectionInstancesCount() int
}

// ArchitectureMutator is the live candidate network.
type ArchitectureMutator interface {
	LayersCount() int
	IsEmpty() bool
	InputsCount() int
	OutputsCount() int
	// HiddenUnits is the width of the last hidden layer.
	HiddenUnits() int
	GrowHiddenUnits(count int) error
	ShrinkHiddenUnits(count int) error
	PerturbParameters(magnitude float64)
	RandomizeParametersNormal()
	FlattenParameters() []float64
	SetParameters(params []float64) error
}

// Observer receives progress from the loop. Implementations must not
// block for long; they run on the search goroutine.
type Observer interface {
	OnStart(runID string, strategy StrategyName, minOrder, maxOrder int)
	OnTrial(order, trial int, trainingError, selectionError float64)
	OnEvaluation(iteration int, rec EvaluationRecord, cached bool)
	OnStop(state StoppingState, condition StoppingCondition)
}

// #endregion
