package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region eval-harness
// EvalHarness validates a finished order-selection run.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks the results of one run. Records outside the run's bounds
// can come from a seeded history, so they are reported but do not fail.
func (h *EvalHarness) Run(res selection.ModelSelectionResults) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass, blocking bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass && blocking {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. An optimum exists
	check("has_optimum", boolValue(res.HasOptimum()), res.HasOptimum(), h.config.RequireOptimum,
		"no order was evaluated")

	// 2. The optimum is an evaluated order inside the bounds
	optRec, member := findOrder(res.History, res.OptimalOrder)
	if res.HasOptimum() {
		check("optimum_in_history", boolValue(member), member, true,
			fmt.Sprintf("optimal order %d is not in the history", res.OptimalOrder))
		inBounds := res.OptimalOrder >= res.MinimumOrder && res.OptimalOrder <= res.MaximumOrder
		check("optimum_in_bounds", float64(res.OptimalOrder), inBounds, true,
			fmt.Sprintf("optimal order %d outside [%d, %d]", res.OptimalOrder, res.MinimumOrder, res.MaximumOrder))
	}

	// 3. The optimum has the lowest selection error in range
	if res.HasOptimum() && member && res.Reserve.SelectionErrorHistory {
		lowest := math.Inf(1)
		for _, rec := range res.History {
			if inRange(rec.Order, res) && rec.SelectionError < lowest {
				lowest = rec.SelectionError
			}
		}
		check("optimum_is_minimal", optRec.SelectionError-lowest, optRec.SelectionError <= lowest, true,
			fmt.Sprintf("order %d selection error %g above minimum %g", res.OptimalOrder, optRec.SelectionError, lowest))
	}

	// 4. Errors are finite and non-negative
	bad := 0
	for _, rec := range res.History {
		if !validError(rec.TrainingError) || !validError(rec.SelectionError) {
			bad++
		}
	}
	check("invalid_errors", float64(bad), bad == 0, true,
		fmt.Sprintf("%d records with negative or non-finite errors", bad))

	// 5. One record per order
	seen := make(map[int]bool, len(res.History))
	dups := 0
	for _, rec := range res.History {
		if seen[rec.Order] {
			dups++
		}
		seen[rec.Order] = true
	}
	check("duplicate_orders", float64(dups), dups == 0, true,
		fmt.Sprintf("%d duplicate orders", dups))

	// 6. Positions follow insertion order
	outOfPlace := 0
	for i, rec := range res.History {
		if rec.Position != i {
			outOfPlace++
		}
	}
	check("position_gaps", float64(outOfPlace), outOfPlace == 0, true,
		fmt.Sprintf("%d records out of position", outOfPlace))

	// 7. Records outside the bounds: informational only
	outside := 0
	for _, rec := range res.History {
		if !inRange(rec.Order, res) {
			outside++
		}
	}
	check("records_out_of_bounds", float64(outside), outside == 0, false, "")

	// 8. Selection error ceiling
	if h.config.MaxSelectionError > 0 && res.HasOptimum() {
		pass := res.FinalSelectionError <= h.config.MaxSelectionError
		check("final_selection_error", res.FinalSelectionError, pass, true,
			fmt.Sprintf("final selection error %.4g exceeds %.4g", res.FinalSelectionError, h.config.MaxSelectionError))
	}

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func findOrder(history []selection.EvaluationRecord, order int) (selection.EvaluationRecord, bool) {
	for _, rec := range history {
		if rec.Order == order {
			return rec, true
		}
	}
	return selection.EvaluationRecord{}, false
}

func inRange(order int, res selection.ModelSelectionResults) bool {
	return order >= res.MinimumOrder && order <= res.MaximumOrder
}

func validError(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
