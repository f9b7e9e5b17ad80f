package selection

// #region imports
import (
	"fmt"
	"strings"
	"time"
)

// #endregion

// #region results

// ModelSelectionResults is the outcome of one Run.
type ModelSelectionResults struct {
	RunID    string
	Strategy StrategyName

	MinimumOrder int
	MaximumOrder int

	// History is the full evaluation log, pruned per Reserve: columns not
	// reserved read as zero or nil.
	History []EvaluationRecord
	Reserve ReserveFlags

	StoppingCondition StoppingCondition

	// OptimalOrder is 0 when nothing was evaluated.
	OptimalOrder        int
	FinalTrainingError  float64
	FinalSelectionError float64
	MinimalParameters   []float64

	Iterations int
	Elapsed    time.Duration
	Details    StrategyResults
}

// HasOptimum reports whether the run selected an order.
func (r ModelSelectionResults) HasOptimum() bool {
	return r.OptimalOrder > 0
}

// Orders returns the evaluated orders in insertion order.
func (r ModelSelectionResults) Orders() []int {
	out := make([]int, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.Order
	}
	return out
}

// TrainingErrors returns the training-error column, or nil when it was
// not reserved.
func (r ModelSelectionResults) TrainingErrors() []float64 {
	if !r.Reserve.TrainingErrorHistory {
		return nil
	}
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.TrainingError
	}
	return out
}

// SelectionErrors returns the selection-error column, or nil when it was
// not reserved.
func (r ModelSelectionResults) SelectionErrors() []float64 {
	if !r.Reserve.SelectionErrorHistory {
		return nil
	}
	out := make([]float64, len(r.History))
	for i, rec := range r.History {
		out[i] = rec.SelectionError
	}
	return out
}

// #endregion

// #region pruning

func pruneHistory(records []EvaluationRecord, flags ReserveFlags) []EvaluationRecord {
	out := make([]EvaluationRecord, len(records))
	for i, rec := range records {
		if !flags.TrainingErrorHistory {
			rec.TrainingError = 0
		}
		if !flags.SelectionErrorHistory {
			rec.SelectionError = 0
		}
		if !flags.Parameters {
			rec.Parameters = nil
		}
		out[i] = rec
	}
	return out
}

// #endregion

// #region string

// String renders a human-readable summary.
func (r ModelSelectionResults) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order selection run %s (%s)\n", r.RunID, r.Strategy)
	fmt.Fprintf(&b, "Order range: [%d, %d]\n", r.MinimumOrder, r.MaximumOrder)
	fmt.Fprintf(&b, "Stopping condition: %s after %d iterations in %s\n",
		r.StoppingCondition, r.Iterations, r.Elapsed.Round(time.Millisecond))
	if r.HasOptimum() {
		fmt.Fprintf(&b, "Optimal order: %d\n", r.OptimalOrder)
		fmt.Fprintf(&b, "Final training error: %g\n", r.FinalTrainingError)
		fmt.Fprintf(&b, "Final selection error: %g\n", r.FinalSelectionError)
		if r.Reserve.MinimalParameters && r.MinimalParameters != nil {
			fmt.Fprintf(&b, "Minimal parameters (%d): %v\n", len(r.MinimalParameters), r.MinimalParameters)
		}
	} else {
		b.WriteString("Optimal order: none\n")
	}

	if len(r.History) > 0 {
		b.WriteString("History:\n")
		for _, rec := range r.History {
			fmt.Fprintf(&b, "  order %3d", rec.Order)
			if r.Reserve.TrainingErrorHistory {
				fmt.Fprintf(&b, "  training %-12g", rec.TrainingError)
			}
			if r.Reserve.SelectionErrorHistory {
				fmt.Fprintf(&b, "  selection %-12g", rec.SelectionError)
			}
			b.WriteString("\n")
		}
	}

	switch d := r.Details.(type) {
	case *IncrementalResults:
		fmt.Fprintf(&b, "Incremental: step %d, failures %d/%d, last order %d\n",
			d.Step, d.SelectionFailures, d.MaximumSelectionFailures, d.LastOrder)
	case *GoldenSectionResults:
		fmt.Fprintf(&b, "Golden section: bracket [%d, %d] after %d narrowings\n",
			d.Lower, d.Upper, d.Narrowings)
	case *AnnealingResults:
		fmt.Fprintf(&b, "Annealing: temperature %g -> %g (rate %g), accepted %d, rejected %d\n",
			d.InitialTemperature, d.FinalTemperature, d.CoolingRate, d.Accepted, d.Rejected)
	}
	return b.String()
}

// #endregion
