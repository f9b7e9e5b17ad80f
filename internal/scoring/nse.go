package scoring

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/danielpatrickdp/order-selection/internal/network"
)

// normalizationFloor is the smallest usable normalization coefficient.
const normalizationFloor = 1.0e-99

// DegenerateTargetsError means the targets of a use are constant, so the
// normalized error is undefined.
type DegenerateTargetsError struct {
	Use         Use
	Coefficient float64
}

func (e *DegenerateTargetsError) Error() string {
	return fmt.Sprintf("normalized squared error: %s normalization coefficient %g is zero; "+
		"unuse constant target variables or choose another error functional", e.Use, e.Coefficient)
}

// #region nse

// NormalizedSquaredError is sum((y-t)^2) / sum((t-mean)^2) over one use of
// the data set. Instances are scored in parallel chunks.
type NormalizedSquaredError struct {
	network *network.Perceptron
	data    *DataSet
	workers int
}

// NewNormalizedSquaredError scores net on data using GOMAXPROCS workers.
func NewNormalizedSquaredError(net *network.Perceptron, data *DataSet) *NormalizedSquaredError {
	return &NormalizedSquaredError{network: net, data: data, workers: runtime.GOMAXPROCS(0)}
}

// SetWorkers bounds the goroutines used per evaluation; n < 1 means 1.
func (e *NormalizedSquaredError) SetWorkers(n int) {
	e.workers = max(1, n)
}

func (e *NormalizedSquaredError) InputsCount() int  { return e.network.InputsCount() }
func (e *NormalizedSquaredError) OutputsCount() int { return e.network.OutputsCount() }

// Network returns the scored network.
func (e *NormalizedSquaredError) Network() *network.Perceptron { return e.network }

// Data returns the scored data set.
func (e *NormalizedSquaredError) Data() *DataSet { return e.data }

// TrainingError scores the training instances.
func (e *NormalizedSquaredError) TrainingError(ctx context.Context) (float64, error) {
	return e.Error(ctx, UseTraining)
}

// SelectionError scores the selection instances.
func (e *NormalizedSquaredError) SelectionError(ctx context.Context) (float64, error) {
	return e.Error(ctx, UseSelection)
}

// Error scores the instances assigned to u.
func (e *NormalizedSquaredError) Error(ctx context.Context, u Use) (float64, error) {
	sse, coef, _, err := e.reduce(ctx, u, false)
	if err != nil {
		return 0, err
	}
	return sse / coef, nil
}

// Gradient returns the training error and its gradient with respect to
// the network parameters, laid out like FlattenParameters.
func (e *NormalizedSquaredError) Gradient(ctx context.Context) (float64, []float64, error) {
	sse, coef, grad, err := e.reduce(ctx, UseTraining, true)
	if err != nil {
		return 0, nil, err
	}
	floats.Scale(1/coef, grad)
	return sse / coef, grad, nil
}

// #endregion

// #region reduce

type partial struct {
	sse  float64
	coef float64
	grad []float64
}

func (e *NormalizedSquaredError) reduce(ctx context.Context, u Use, withGrad bool) (float64, float64, []float64, error) {
	idx := e.data.Indices(u)
	mean, err := e.data.TargetMean(u)
	if err != nil {
		return 0, 0, nil, err
	}
	nParams := e.network.ParametersCount()

	chunks := chunk(idx, e.workers)
	parts := make([]partial, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for ci, part := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := partial{}
			if withGrad {
				p.grad = make([]float64, nParams)
			}
			delta := make([]float64, e.data.TargetVariablesCount())
			for _, i := range part {
				target := e.data.Target(i)
				var outputs []float64
				if withGrad {
					trace := e.network.ForwardTrace(e.data.Input(i))
					outputs = trace.Outputs()
					floats.SubTo(delta, outputs, target)
					floats.Scale(2, delta)
					e.network.Backward(trace, delta, p.grad)
				} else {
					outputs = e.network.Forward(e.data.Input(i))
				}
				d := floats.Distance(outputs, target, 2)
				p.sse += d * d
				m := floats.Distance(target, mean, 2)
				p.coef += m * m
			}
			parts[ci] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, nil, fmt.Errorf("score %s instances: %w", u, err)
	}

	var sse, coef float64
	var grad []float64
	if withGrad {
		grad = make([]float64, nParams)
	}
	for _, p := range parts {
		sse += p.sse
		coef += p.coef
		if withGrad {
			floats.Add(grad, p.grad)
		}
	}
	if coef < normalizationFloor {
		return 0, 0, nil, &DegenerateTargetsError{Use: u, Coefficient: coef}
	}
	return sse, coef, grad, nil
}

// chunk splits idx into at most n contiguous parts.
func chunk(idx []int, n int) [][]int {
	if n < 1 {
		n = 1
	}
	size := (len(idx) + n - 1) / n
	if size == 0 {
		return nil
	}
	var out [][]int
	for start := 0; start < len(idx); start += size {
		out = append(out, idx[start:min(start+size, len(idx))])
	}
	return out
}

// #endregion
