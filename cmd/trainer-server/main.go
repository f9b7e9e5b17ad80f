package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"

	"github.com/danielpatrickdp/order-selection/internal/codec"
	"github.com/danielpatrickdp/order-selection/internal/network"
	"github.com/danielpatrickdp/order-selection/internal/scoring"
	"github.com/danielpatrickdp/order-selection/internal/training"
)

// #region main
func main() {
	addr := flag.String("addr", envOr("ORDERSEL_TRAINER_ADDR", ":50052"), "listen address")
	dataPath := flag.String("data", "", "CSV data set (required)")
	targets := flag.Int("targets", 1, "number of trailing target columns")
	trainRatio := flag.Float64("train-ratio", 0.6, "share of instances used for training")
	selectionRatio := flag.Float64("selection-ratio", 0.2, "share of instances used for selection")
	splitSeed := flag.Uint64("split-seed", 1, "seed for the instance split")
	epochs := flag.Int("epochs", 500, "gradient descent epochs per request")
	learningRate := flag.Float64("learning-rate", 0.05, "gradient descent learning rate")
	flag.Parse()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: trainer-server --data file.csv [--targets N] [--addr :50052]")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	data, err := scoring.LoadCSVFile(*dataPath, *targets)
	if err != nil {
		log.Fatalf("load data: %v", err)
	}
	if err := data.Split(*trainRatio, *selectionRatio, *splitSeed); err != nil {
		log.Fatalf("split data: %v", err)
	}

	// The width is replaced by every request.
	mlp, err := network.NewPerceptron([]int{data.InputVariablesCount(), 1, data.TargetVariablesCount()}, 0)
	if err != nil {
		log.Fatalf("network: %v", err)
	}
	cfg := training.DefaultConfig()
	cfg.MaximumEpochs = *epochs
	cfg.LearningRate = *learningRate
	gd, err := training.NewGradientDescent(scoring.NewNormalizedSquaredError(mlp, data), cfg, logger)
	if err != nil {
		log.Fatalf("trainer: %v", err)
	}

	lis, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("listen %s: %v", *addr, err)
	}
	srv := codec.NewGRPCServer(codec.NewTrainerServer(gd, mlp, logger))

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		srv.GracefulStop()
	}()

	fmt.Printf("Trainer service ready on %s (%d training / %d selection instances)\n",
		lis.Addr(), data.TrainingInstancesCount(), data.SelectionInstancesCount())
	if err := srv.Serve(lis); err != nil {
		log.Fatalf("serve: %v", err)
	}
}
// #endregion main

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
