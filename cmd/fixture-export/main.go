package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/order-selection/internal/replay"
	"github.com/danielpatrickdp/order-selection/internal/selection"
	"github.com/danielpatrickdp/order-selection/internal/store"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to order_selection.db")
	runID := flag.String("run", "", "run to export; default is the active run")
	outPath := flag.String("out", "", "output fixture JSON path")
	inputs := flag.Int("inputs", 1, "input variables of the recorded network")
	outputs := flag.Int("outputs", 1, "target variables of the recorded network")
	withParams := flag.Bool("parameters", false, "include parameter vectors")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/db --out path/to/fixture.json [--run id] [--inputs N] [--outputs N] [--parameters]")
		os.Exit(2)
	}

	if err := run(*dbPath, *runID, *outPath, *inputs, *outputs, *withParams); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath, runID, outPath string, inputs, outputs int, withParams bool) error {
	st, err := store.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer st.Close()

	var rec store.RunRecord
	if runID == "" {
		rec, err = st.Active()
	} else {
		rec, err = st.GetRun(runID)
	}
	if err != nil {
		return err
	}

	history, err := st.LoadSweep(rec.RunID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("run %s has no evaluations", rec.RunID)
	}
	if !withParams {
		for i := range history {
			history[i].Parameters = nil
		}
	}

	cfg := selection.DefaultConfig()
	if rec.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(rec.ConfigJSON), &cfg); err != nil {
			return fmt.Errorf("parse stored config: %w", err)
		}
	}
	cfg.Display = false

	f := replay.FixtureFromRecords(
		fmt.Sprintf("exported from run %s (%s over [%d, %d])", rec.RunID, rec.Strategy, rec.MinimumOrder, rec.MaximumOrder),
		history, cfg, inputs, outputs,
	)
	// The recorded run is the expectation for its own strategy.
	f.ExpectedResults = []replay.FixtureExpectedResult{{
		Strategy:          selection.StrategyName(rec.Strategy),
		OptimalOrder:      rec.OptimalOrder,
		StoppingCondition: selection.StoppingCondition(rec.StoppingCondition),
	}}

	if err := replay.SaveFixture(outPath, f); err != nil {
		return err
	}
	fmt.Printf("Exported %d evaluations from run %s to %s\n", len(history), rec.RunID, outPath)
	return nil
}

// #endregion extract
