package replay

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/danielpatrickdp/order-selection/internal/eval"
	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region types

// ReplayConfig bundles the search and eval configs for a replay run.
type ReplayConfig struct {
	Selection selection.Config
	Eval      eval.EvalConfig
	Inputs    int
	Outputs   int
	// Logger receives the controller's logs; nil discards them.
	Logger *slog.Logger
}

// DefaultReplayConfig returns defaults for a one-input, one-output network.
// A zero MaximumOrder means the sweep's bounds are used.
func DefaultReplayConfig() ReplayConfig {
	cfg := selection.DefaultConfig()
	cfg.MaximumOrder = 0
	cfg.Display = false
	return ReplayConfig{
		Selection: cfg,
		Eval:      eval.DefaultEvalConfig(),
		Inputs:    1,
		Outputs:   1,
	}
}

// ReplayResult captures the outcome of replaying one strategy over a sweep.
type ReplayResult struct {
	Strategy     selection.StrategyName
	Results      selection.ModelSelectionResults
	TrainerCalls int
	EvalResult   eval.EvalResult
	// FoundBest reports whether the search picked the sweep's best order.
	FoundBest bool
}

// ReplaySummary provides aggregate stats from a comparison.
type ReplaySummary struct {
	Runs         int
	EvalFailures int
	BestOrder    int
	// Cheapest is the strategy that found BestOrder with the fewest
	// trainer calls, empty if none did.
	Cheapest      selection.StrategyName
	CheapestCalls int
}

// #endregion types

// #region replay

// Replay runs the configured strategy against sweep without training.
func Replay(ctx context.Context, sweep Sweep, config ReplayConfig) (ReplayResult, error) {
	if len(sweep) == 0 {
		return ReplayResult{}, fmt.Errorf("replay: %w", ErrUnrecordedOrder)
	}
	cfg := config.Selection
	if cfg.MaximumOrder == 0 {
		cfg.MinimumOrder, cfg.MaximumOrder = sweep.Bounds()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	trainer := NewRecordedTrainer(sweep, max(config.Inputs, 1), max(config.Outputs, 1))
	ctrl := selection.NewController(cfg, selection.WithLogger(logger))
	res, err := ctrl.Run(ctx, selection.Dependencies{
		Trainer: trainer,
		Network: trainer.Network(),
		Data:    trainer.Data(),
	})
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", cfg.Strategy, err)
	}

	best, _ := sweepBestInRange(sweep, cfg.MinimumOrder, cfg.MaximumOrder)
	return ReplayResult{
		Strategy:     cfg.Strategy,
		Results:      res,
		TrainerCalls: trainer.Calls(),
		EvalResult:   eval.NewEvalHarness(config.Eval).Run(res),
		FoundBest:    res.HasOptimum() && res.OptimalOrder == best,
	}, nil
}

// Compare replays every strategy (all known strategies when none are
// given) against the same sweep.
func Compare(ctx context.Context, sweep Sweep, config ReplayConfig, strategies ...selection.StrategyName) ([]ReplayResult, error) {
	if len(strategies) == 0 {
		strategies = selection.Strategies
	}
	results := make([]ReplayResult, 0, len(strategies))
	for _, s := range strategies {
		c := config
		c.Selection.Strategy = s
		r, err := Replay(ctx, sweep, c)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, sweep Sweep) ReplaySummary {
	s := ReplaySummary{Runs: len(results)}
	s.BestOrder, _ = sweep.Best()
	for _, r := range results {
		if !r.EvalResult.Passed {
			s.EvalFailures++
		}
		if r.FoundBest && (s.Cheapest == "" || r.TrainerCalls < s.CheapestCalls) {
			s.Cheapest = r.Strategy
			s.CheapestCalls = r.TrainerCalls
		}
	}
	return s
}

func sweepBestInRange(sweep Sweep, lo, hi int) (int, bool) {
	inRange := make(Sweep)
	for o, out := range sweep {
		if o >= lo && o <= hi {
			inRange[o] = out
		}
	}
	return inRange.Best()
}

// #endregion replay
