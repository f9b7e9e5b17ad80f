package selection

// #region imports
import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// #endregion

// #region aggregator-struct

// TrialAggregator measures one order: it sizes the network, runs the
// trainer trials times and reduces the outcomes. Every distinct order is
// recorded in the history exactly once.
type TrialAggregator struct {
	history      *History
	trainer      Trainer
	network      ArchitectureMutator
	displacement float64
	display      bool
	observer     Observer
	logger       *slog.Logger
	now          func() time.Time
}

// AggregatorOptions carries the optional aggregator settings.
type AggregatorOptions struct {
	Displacement float64 // uniform perturbation before the first trial
	Display      bool    // log per-trial progress at Info
	Observer     Observer
	Logger       *slog.Logger
	Now          func() time.Time
}

// NewTrialAggregator wires an aggregator over the given history.
func NewTrialAggregator(history *History, trainer Trainer, network ArchitectureMutator, opts AggregatorOptions) *TrialAggregator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TrialAggregator{
		history:      history,
		trainer:      trainer,
		network:      network,
		displacement: opts.Displacement,
		display:      opts.Display,
		observer:     opts.Observer,
		logger:       logger.With(slog.String("component", "aggregator")),
		now:          now,
	}
}

// #endregion

// #region evaluate

// Evaluate returns the reduced (training error, selection error,
// parameters) for order. A complete cache hit returns the recorded values
// without touching the network or the trainer. A partial hit reuses the
// known metric and measures the other one fresh.
//
// Cancellation of ctx is honored between trials only; a trial in
// progress always runs to completion.
func (a *TrialAggregator) Evaluate(ctx context.Context, order, trials int, policy ReductionPolicy) (TrialOutcome, error) {
	outcome, _, err := a.evaluate(ctx, order, trials, policy)
	return outcome, err
}

func (a *TrialAggregator) evaluate(ctx context.Context, order, trials int, policy ReductionPolicy) (TrialOutcome, bool, error) {
	if order < 1 {
		return TrialOutcome{}, false, fmt.Errorf("%w: order (%d) must be greater than 0", ErrInvalidArgument, order)
	}
	if trials < 1 {
		return TrialOutcome{}, false, fmt.Errorf("%w: trials_number (%d) must be greater than 0", ErrInvalidArgument, trials)
	}
	if err := policy.Validate(); err != nil {
		return TrialOutcome{}, false, err
	}

	cached, hit := a.history.Lookup(order)
	if hit && cached.Complete() {
		recordEvaluation("cached")
		return cached.Record.Outcome(), true, nil
	}

	ctx, span := tracer().Start(ctx, "ordersel.evaluate",
		trace.WithAttributes(
			attribute.Int("ordersel.order", order),
			attribute.Int("ordersel.trials", trials),
			attribute.String("ordersel.reduction", string(policy)),
			attribute.Bool("ordersel.partial_hit", hit),
		),
	)
	defer span.End()

	outcome, err := a.runTrials(ctx, order, trials, policy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TrialOutcome{}, false, err
	}

	var rec EvaluationRecord
	if hit {
		if cached.TrainingKnown {
			outcome.TrainingError = cached.Record.TrainingError
		}
		if cached.SelectionKnown {
			outcome.SelectionError = cached.Record.SelectionError
		}
		rec, err = a.history.Fill(order, outcome)
		recordEvaluation("partial")
	} else {
		rec, err = a.history.Record(order, outcome, a.now().UTC())
		recordEvaluation("trained")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return TrialOutcome{}, false, err
	}

	span.SetAttributes(
		attribute.Float64("ordersel.training_error", rec.TrainingError),
		attribute.Float64("ordersel.selection_error", rec.SelectionError),
	)
	span.SetStatus(codes.Ok, "")
	return rec.Outcome(), false, nil
}

// #endregion

// #region trials

func (a *TrialAggregator) runTrials(ctx context.Context, order, trials int, policy ReductionPolicy) (TrialOutcome, error) {
	if err := ctx.Err(); err != nil {
		return TrialOutcome{}, fmt.Errorf("evaluate order %d: %w", order, err)
	}
	if err := a.resize(order); err != nil {
		return TrialOutcome{}, fmt.Errorf("resize to order %d: %w", order, err)
	}
	a.network.PerturbParameters(a.displacement)

	training, selection, err := a.trial(ctx)
	if err != nil {
		return TrialOutcome{}, fmt.Errorf("order %d trial 1: %w", order, err)
	}
	n := float64(trials)
	agg := TrialOutcome{
		TrainingError:  training,
		SelectionError: selection,
		Parameters:     a.network.FlattenParameters(),
	}
	if policy == ReductionMean {
		agg.TrainingError = training / n
		agg.SelectionError = selection / n
	}
	a.progress(order, 1, agg)

	for i := 2; i <= trials; i++ {
		if err := ctx.Err(); err != nil {
			return TrialOutcome{}, fmt.Errorf("evaluate order %d before trial %d: %w", order, i, err)
		}

		a.network.RandomizeParametersNormal()
		training, selection, err := a.trial(ctx)
		if err != nil {
			return TrialOutcome{}, fmt.Errorf("order %d trial %d: %w", order, i, err)
		}

		switch policy {
		case ReductionMinimum:
			if training < agg.TrainingError {
				agg.TrainingError = training
				agg.Parameters = a.network.FlattenParameters()
			}
			if selection < agg.SelectionError {
				agg.SelectionError = selection
				agg.Parameters = a.network.FlattenParameters()
			}
		case ReductionMaximum:
			if training > agg.TrainingError {
				agg.TrainingError = training
				agg.Parameters = a.network.FlattenParameters()
			}
			if selection > agg.SelectionError {
				agg.SelectionError = selection
				agg.Parameters = a.network.FlattenParameters()
			}
		case ReductionMean:
			agg.TrainingError += training / n
			agg.SelectionError += selection / n
			agg.Parameters = a.network.FlattenParameters()
		default:
			return TrialOutcome{}, fmt.Errorf("%w: %q", ErrUnknownReductionPolicy, string(policy))
		}
		a.progress(order, i, agg)
	}
	return agg, nil
}

// trial runs one blocking Train call. The trainer gets a context that
// keeps ctx's values but cannot be cancelled.
func (a *TrialAggregator) trial(ctx context.Context) (float64, float64, error) {
	start := time.Now()
	res, err := a.trainer.Train(context.WithoutCancel(ctx))
	if err != nil {
		return 0, 0, fmt.Errorf("train: %w", err)
	}
	recordTrainerInvocation(res.Method, time.Since(start).Seconds())
	return finalErrors(res)
}

func (a *TrialAggregator) resize(order int) error {
	current := a.network.HiddenUnits()
	switch {
	case order > current:
		return a.network.GrowHiddenUnits(order - current)
	case order < current:
		return a.network.ShrinkHiddenUnits(current - order)
	}
	return nil
}

func (a *TrialAggregator) progress(order, trial int, agg TrialOutcome) {
	if a.observer != nil {
		a.observer.OnTrial(order, trial, agg.TrainingError, agg.SelectionError)
	}
	if a.display {
		a.logger.Info("trial finished",
			slog.Int("order", order),
			slog.Int("trial", trial),
			slog.Float64("training_error", agg.TrainingError),
			slog.Float64("selection_error", agg.SelectionError),
		)
	}
}

// #endregion

// #region final-errors

// finalErrors extracts the final error pair for the method the trainer
// reports. Methods without a main algorithm yield (0, 0).
func finalErrors(res TrainingResult) (float64, float64, error) {
	switch res.Method {
	case MethodNoMain, MethodUserMain:
		return 0, 0, nil
	case MethodGradientDescent, MethodConjugateGradient, MethodQuasiNewton, MethodLevenbergMarquardt:
		return res.FinalTrainingError, res.FinalSelectionError, nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownTrainingMethod, string(res.Method))
	}
}

// #endregion
