package training

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/order-selection/internal/network"
	"github.com/danielpatrickdp/order-selection/internal/scoring"
	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region config

// Config holds the gradient descent hyperparameters.
type Config struct {
	LearningRate float64
	// MaximumEpochs bounds full-batch steps.
	MaximumEpochs int
	// TrainingErrorGoal stops once the training error is at or below it.
	TrainingErrorGoal float64
	// MaximumSelectionFailures stops after that many consecutive epochs
	// without a selection improvement. 0 disables early stopping.
	MaximumSelectionFailures int
	// MaximumStepNorm clamps the L2 norm of each step (0 = disabled).
	MaximumStepNorm float64
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		LearningRate:             0.05,
		MaximumEpochs:            500,
		TrainingErrorGoal:        0,
		MaximumSelectionFailures: 25,
		MaximumStepNorm:          1.0,
	}
}

// #endregion

// #region trainer

// GradientDescent is a full-batch gradient descent Trainer over a
// normalized squared error.
type GradientDescent struct {
	net    *network.Perceptron
	loss   *scoring.NormalizedSquaredError
	cfg    Config
	logger *slog.Logger

	lastEpochs int
}

// NewGradientDescent trains loss.Network() against loss.
func NewGradientDescent(loss *scoring.NormalizedSquaredError, cfg Config, logger *slog.Logger) (*GradientDescent, error) {
	if cfg.LearningRate <= 0 || cfg.MaximumEpochs < 1 {
		return nil, fmt.Errorf("%w: learning rate %g and epochs %d must be positive",
			selection.ErrInvalidArgument, cfg.LearningRate, cfg.MaximumEpochs)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GradientDescent{
		net:    loss.Network(),
		loss:   loss,
		cfg:    cfg,
		logger: logger.With("component", "gradient_descent"),
	}, nil
}

// Scorer returns the error functional being minimized.
func (g *GradientDescent) Scorer() selection.Scorer { return g.loss }

// Epochs reports how many steps the last Train call took.
func (g *GradientDescent) Epochs() int { return g.lastEpochs }

// Train runs until the epoch limit, the training goal, or selection early
// stop. With selection instances present the parameters with the lowest
// selection error are restored before returning.
func (g *GradientDescent) Train(ctx context.Context) (selection.TrainingResult, error) {
	data := g.loss.Data()
	trackSelection := data.SelectionInstancesCount() > 0

	bestSel := math.Inf(1)
	var bestParams []float64
	failures := 0
	var trainErr float64

	epoch := 0
	for ; epoch < g.cfg.MaximumEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return selection.TrainingResult{}, err
		}
		e, grad, err := g.loss.Gradient(ctx)
		if err != nil {
			return selection.TrainingResult{}, err
		}
		trainErr = e

		if trackSelection {
			sel, err := g.loss.SelectionError(ctx)
			if err != nil {
				return selection.TrainingResult{}, err
			}
			if sel < bestSel {
				bestSel = sel
				bestParams = g.net.FlattenParameters()
				failures = 0
			} else {
				failures++
			}
			if g.cfg.MaximumSelectionFailures > 0 && failures >= g.cfg.MaximumSelectionFailures {
				break
			}
		}
		if trainErr <= g.cfg.TrainingErrorGoal {
			break
		}

		floats.Scale(-g.cfg.LearningRate, grad)
		if g.cfg.MaximumStepNorm > 0 {
			if n := floats.Norm(grad, 2); n > g.cfg.MaximumStepNorm {
				floats.Scale(g.cfg.MaximumStepNorm/n, grad)
			}
		}
		params := g.net.FlattenParameters()
		floats.Add(params, grad)
		if err := g.net.SetParameters(params); err != nil {
			return selection.TrainingResult{}, err
		}
	}
	g.lastEpochs = epoch

	res := selection.TrainingResult{Method: selection.MethodGradientDescent}
	if bestParams != nil {
		if err := g.net.SetParameters(bestParams); err != nil {
			return selection.TrainingResult{}, err
		}
	}
	var err error
	if res.FinalTrainingError, err = g.loss.TrainingError(ctx); err != nil {
		return selection.TrainingResult{}, err
	}
	if trackSelection {
		if res.FinalSelectionError, err = g.loss.SelectionError(ctx); err != nil {
			return selection.TrainingResult{}, err
		}
	}

	g.logger.Debug("training finished",
		"hidden_units", g.net.HiddenUnits(),
		"epochs", epoch,
		"training_error", res.FinalTrainingError,
		"selection_error", res.FinalSelectionError,
	)
	return res, nil
}

// #endregion
