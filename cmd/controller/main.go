package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// #region commands
var (
	rootCmd = &cobra.Command{
		Use:   "controller",
		Short: "Select the hidden-layer width of a perceptron",
		Long: `controller runs an order-selection search over the hidden width of a
multilayer perceptron and stores every run so later runs can reuse it.`,
		SilenceUsage: true,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Train candidate widths on a CSV data set and pick the best",
		RunE:  runSelection,
	}
	replayCmd = &cobra.Command{
		Use:   "replay",
		Short: "Replay strategies against a recorded sweep without training",
		RunE:  runReplay,
	}

	logLevel    string
	metricsAddr string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("ORDERSEL_LOG_LEVEL", "info"), "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", envOr("ORDERSEL_METRICS_ADDR", ""), "serve Prometheus metrics on this address")

	f := runCmd.Flags()
	f.StringVar(&runOpts.dataPath, "data", "", "CSV data set (required)")
	f.IntVar(&runOpts.targets, "targets", 1, "number of trailing target columns")
	f.StringVar(&runOpts.configPath, "config", envOr("ORDERSEL_CONFIG", ""), "YAML or JSON config file")
	f.StringVar(&runOpts.dbPath, "db", envOr("ORDERSEL_DB", "order_selection.db"), "SQLite run store")
	f.StringVar(&runOpts.codecAddr, "codec-addr", envOr("ORDERSEL_CODEC_ADDR", ""), "remote trainer address; empty trains locally")
	f.StringVar(&runOpts.strategy, "strategy", "", "override the configured strategy")
	f.BoolVar(&runOpts.resume, "resume", false, "seed the history from the active run")
	f.Float64Var(&runOpts.trainRatio, "train-ratio", 0.6, "share of instances used for training")
	f.Float64Var(&runOpts.selectionRatio, "selection-ratio", 0.2, "share of instances used for selection")
	f.Uint64Var(&runOpts.splitSeed, "split-seed", 1, "seed for the instance split")
	f.Uint64Var(&runOpts.networkSeed, "network-seed", 0, "seed for initial weights; 0 picks one")
	f.IntVar(&runOpts.epochs, "epochs", 500, "gradient descent epochs per trial")
	f.Float64Var(&runOpts.learningRate, "learning-rate", 0.05, "gradient descent learning rate")
	f.Float64Var(&runOpts.maxSelectionError, "max-selection-error", 0, "fail the eval above this selection error; 0 disables")
	_ = runCmd.MarkFlagRequired("data")

	rf := replayCmd.Flags()
	rf.StringVar(&replayOpts.fixturePath, "fixture", "", "replay fixture JSON")
	rf.StringVar(&replayOpts.dbPath, "db", envOr("ORDERSEL_DB", ""), "SQLite run store")
	rf.StringVar(&replayOpts.runID, "run", "", "stored run to replay; default is the active run")
	rf.StringVar(&replayOpts.strategy, "strategy", "", "replay one strategy; default compares all")

	rootCmd.AddCommand(runCmd, replayCmd)
}

// #endregion commands

// #region main
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// #endregion main

// #region helpers
func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func serveMetrics() {
	if metricsAddr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server: %v", err)
		}
	}()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
