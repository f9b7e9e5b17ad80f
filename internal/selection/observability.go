package selection

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ordersel.selection"

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// trainerInvocations counts blocking Train calls.
	// Labels: method (training method reported by the trainer)
	trainerInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersel",
		Name:      "trainer_invocations_total",
		Help:      "Total trainer invocations by training method",
	}, []string{"method"})

	// evaluations counts order evaluations by where the value came from.
	// Labels: source (cached, partial, trained)
	evaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersel",
		Name:      "evaluations_total",
		Help:      "Total order evaluations by source",
	}, []string{"source"})

	// trialDuration measures one Train call.
	trialDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ordersel",
		Name:      "trial_duration_seconds",
		Help:      "Duration of a single training trial in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})

	// runs counts finished searches.
	// Labels: strategy, stopping_condition
	runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordersel",
		Name:      "runs_total",
		Help:      "Total order selection runs by stopping condition",
	}, []string{"strategy", "stopping_condition"})
)

func recordTrainerInvocation(method TrainingMethod, seconds float64) {
	trainerInvocations.WithLabelValues(string(method)).Inc()
	trialDuration.Observe(seconds)
}

func recordEvaluation(source string) {
	evaluations.WithLabelValues(source).Inc()
}

func recordRun(strategy StrategyName, condition StoppingCondition) {
	runs.WithLabelValues(string(strategy), string(condition)).Inc()
}
