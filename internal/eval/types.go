package eval

// #region eval-config
// EvalConfig holds thresholds for post-run validation.
type EvalConfig struct {
	// MaxSelectionError fails the run when the optimum's selection error
	// exceeds it. 0 disables the check.
	MaxSelectionError float64
	// RequireOptimum fails runs that evaluated nothing.
	RequireOptimum bool
}

// DefaultEvalConfig returns the defaults used by the controller CLI.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxSelectionError: 0,
		RequireOptimum:    true,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-run validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
