package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/order-selection/internal/codec"
	"github.com/danielpatrickdp/order-selection/internal/eval"
	"github.com/danielpatrickdp/order-selection/internal/logging"
	"github.com/danielpatrickdp/order-selection/internal/network"
	"github.com/danielpatrickdp/order-selection/internal/scoring"
	"github.com/danielpatrickdp/order-selection/internal/selection"
	"github.com/danielpatrickdp/order-selection/internal/store"
	"github.com/danielpatrickdp/order-selection/internal/training"
)

type runOptions struct {
	dataPath          string
	targets           int
	configPath        string
	dbPath            string
	codecAddr         string
	strategy          string
	resume            bool
	trainRatio        float64
	selectionRatio    float64
	splitSeed         uint64
	networkSeed       uint64
	epochs            int
	learningRate      float64
	maxSelectionError float64
}

var runOpts runOptions

// #region run
func runSelection(cmd *cobra.Command, _ []string) error {
	logger := newLogger()
	serveMetrics()

	cfg, err := selection.LoadConfig(runOpts.configPath)
	if err != nil {
		return err
	}
	if runOpts.strategy != "" {
		cfg.Strategy = selection.StrategyName(runOpts.strategy)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	data, err := scoring.LoadCSVFile(runOpts.dataPath, runOpts.targets)
	if err != nil {
		return err
	}
	if err := data.Split(runOpts.trainRatio, runOpts.selectionRatio, runOpts.splitSeed); err != nil {
		return err
	}

	net, err := network.NewPerceptron(
		[]int{data.InputVariablesCount(), cfg.MinimumOrder, data.TargetVariablesCount()},
		runOpts.networkSeed,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	trainer, loss, closeTrainer, err := buildTrainer(ctx, net, data, logger)
	if err != nil {
		return err
	}
	defer closeTrainer()

	st, err := store.NewStore(runOpts.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	recorder := logging.NewRecorder(st.DB(), logger)
	ctrl := selection.NewController(cfg,
		selection.WithObserver(recorder),
		selection.WithLogger(logger),
	)

	parentID := ""
	if runOpts.resume {
		if parentID, err = seedFromActive(st, ctrl); err != nil {
			return err
		}
	}

	fmt.Printf("Order selection: %s over %s (%d training / %d selection instances)\n",
		cfg.Strategy, runOpts.dataPath, data.TrainingInstancesCount(), data.SelectionInstancesCount())

	res, err := ctrl.Run(ctx, selection.Dependencies{Trainer: trainer, Network: net, Data: data})
	if err != nil {
		return fmt.Errorf("order selection: %w", err)
	}
	fmt.Print(res.String())

	if loss != nil && data.TestingInstancesCount() > 0 {
		if testErr, err := loss.Error(ctx, scoring.UseTesting); err == nil {
			fmt.Printf("Testing error at optimum: %g\n", testErr)
		} else {
			logger.Warn("testing error", "error", err)
		}
	}

	ev := eval.NewEvalHarness(eval.EvalConfig{
		MaxSelectionError: runOpts.maxSelectionError,
		RequireOptimum:    true,
	}).Run(res)
	fmt.Printf("Eval: %s\n", ev.Reason)

	runID, err := st.SaveRun(res, cfg, parentID)
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if err := recorder.Err(); err != nil {
		logger.Warn("search log incomplete", "run_id", runID, "error", err)
	}
	fmt.Printf("Saved run %s to %s\n", runID, runOpts.dbPath)

	if !ev.Passed {
		return errors.New(ev.Reason)
	}
	return nil
}

// #endregion run

// #region helpers
// buildTrainer returns a remote trainer when --codec-addr is set, otherwise
// local gradient descent. loss is nil for remote training.
func buildTrainer(ctx context.Context, net *network.Perceptron, data *scoring.DataSet, logger *slog.Logger) (selection.Trainer, *scoring.NormalizedSquaredError, func(), error) {
	if runOpts.codecAddr != "" {
		client, err := codec.NewTrainerClient(runOpts.codecAddr, net)
		if err != nil {
			return nil, nil, nil, err
		}
		if _, err := client.Describe(ctx); err != nil {
			client.Close()
			return nil, nil, nil, fmt.Errorf("describe remote trainer at %s: %w", runOpts.codecAddr, err)
		}
		return client, nil, func() { client.Close() }, nil
	}

	loss := scoring.NewNormalizedSquaredError(net, data)
	tc := training.DefaultConfig()
	tc.MaximumEpochs = runOpts.epochs
	tc.LearningRate = runOpts.learningRate
	gd, err := training.NewGradientDescent(loss, tc, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return gd, loss, func() {}, nil
}

func seedFromActive(st *store.Store, ctrl *selection.Controller) (string, error) {
	active, err := st.Active()
	if errors.Is(err, store.ErrRunNotFound) {
		fmt.Println("No active run found, starting with an empty history.")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("active run: %w", err)
	}
	entries, err := st.LoadSeedEntries(active.RunID)
	if err != nil {
		return "", err
	}
	if err := ctrl.SeedEntries(entries); err != nil {
		return "", fmt.Errorf("seed history: %w", err)
	}
	fmt.Printf("Seeded %d evaluations from run %s\n", len(entries), active.RunID)
	return active.RunID, nil
}

// #endregion helpers
