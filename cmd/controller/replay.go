package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/order-selection/internal/replay"
	"github.com/danielpatrickdp/order-selection/internal/selection"
	"github.com/danielpatrickdp/order-selection/internal/store"
)

type replayOptions struct {
	fixturePath string
	dbPath      string
	runID       string
	strategy    string
}

var replayOpts replayOptions

// #region replay
func runReplay(cmd *cobra.Command, _ []string) error {
	fixture, err := loadReplaySource()
	if err != nil {
		return err
	}

	config := fixture.ToReplayConfig()
	config.Selection.Display = false
	config.Logger = newLogger()
	sweep := fixture.Sweep()

	var strategies []selection.StrategyName
	if replayOpts.strategy != "" {
		strategies = []selection.StrategyName{selection.StrategyName(replayOpts.strategy)}
	}
	results, err := replay.Compare(cmd.Context(), sweep, config, strategies...)
	if err != nil {
		return err
	}

	lo, hi := sweep.Bounds()
	fmt.Printf("Replaying %d recorded orders [%d, %d]: %s\n", len(sweep), lo, hi, fixture.Description)
	fmt.Printf("%-20s  %7s  %6s  %14s  %-24s  %s\n", "Strategy", "Optimum", "Calls", "Selection", "Stopped", "Eval")
	fmt.Printf("%-20s+-%7s+-%6s+-%14s+-%-24s+-%s\n",
		"--------------------", "-------", "------", "--------------", "------------------------", "------")
	for _, r := range results {
		status := "pass"
		if !r.EvalResult.Passed {
			status = "FAIL"
		}
		fmt.Printf("%-20s  %7d  %6d  %14.6g  %-24s  %s\n",
			r.Strategy, r.Results.OptimalOrder, r.TrainerCalls, r.Results.FinalSelectionError,
			r.Results.StoppingCondition, status)
	}

	s := replay.Summarize(results, sweep)
	fmt.Printf("\nBest recorded order: %d\n", s.BestOrder)
	if s.Cheapest != "" {
		fmt.Printf("Cheapest strategy to find it: %s (%d trainer calls)\n", s.Cheapest, s.CheapestCalls)
	}
	if s.EvalFailures > 0 {
		return fmt.Errorf("%d of %d replays failed eval", s.EvalFailures, s.Runs)
	}
	return nil
}

// #endregion replay

// #region source
func loadReplaySource() (*replay.Fixture, error) {
	switch {
	case replayOpts.fixturePath != "":
		return replay.LoadFixture(replayOpts.fixturePath)
	case replayOpts.dbPath != "":
		return fixtureFromStore(replayOpts.dbPath, replayOpts.runID)
	default:
		return nil, errors.New("replay needs --fixture or --db")
	}
}

// fixtureFromStore builds a fixture from a stored run, or the active run
// when runID is empty.
func fixtureFromStore(dbPath, runID string) (*replay.Fixture, error) {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	var rec store.RunRecord
	if runID == "" {
		rec, err = st.Active()
	} else {
		rec, err = st.GetRun(runID)
	}
	if err != nil {
		return nil, err
	}

	cfg := selection.DefaultConfig()
	if rec.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
			return nil, fmt.Errorf("parse stored config: %w", err)
		}
	}
	// Replay over the recorded bounds.
	cfg.MaximumOrder = 0

	history, err := st.LoadSweep(rec.RunID)
	if err != nil {
		return nil, err
	}
	return replay.FixtureFromRecords("run "+rec.RunID, history, cfg, 1, 1), nil
}

// #endregion source
