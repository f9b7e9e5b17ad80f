package network

// #region imports
import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #endregion

// ErrArchitecture is returned for invalid layer sizes or resize requests.
var ErrArchitecture = errors.New("invalid architecture")

// #region activation

// Activation is a layer's transfer function.
type Activation int

const (
	Tanh Activation = iota
	Linear
)

func (a Activation) apply(z float64) float64 {
	if a == Tanh {
		return math.Tanh(z)
	}
	return z
}

// derivative in terms of the activation output y.
func (a Activation) derivative(y float64) float64 {
	if a == Tanh {
		return 1 - y*y
	}
	return 1
}

// #endregion

// #region perceptron-struct

// Layer is one fully connected layer: weights is units x inputs.
type Layer struct {
	weights    *mat.Dense
	biases     *mat.VecDense
	activation Activation
}

func (l *Layer) units() int {
	r, _ := l.weights.Dims()
	return r
}

func (l *Layer) inputs() int {
	_, c := l.weights.Dims()
	return c
}

// Perceptron is a multilayer perceptron with tanh hidden layers and a
// linear output layer. Resizing touches only the last hidden layer.
//
// A Perceptron is not safe for concurrent mutation; concurrent Forward
// calls are fine while no parameters change.
type Perceptron struct {
	layers []*Layer
	src    rand.Source
}

// NewPerceptron builds a network with architecture [inputs, hidden..., outputs].
// seed 0 picks an arbitrary seed.
func NewPerceptron(architecture []int, seed uint64) (*Perceptron, error) {
	if len(architecture) < 2 {
		return nil, fmt.Errorf("%w: need at least inputs and outputs, got %v", ErrArchitecture, architecture)
	}
	for i, n := range architecture {
		if n < 1 {
			return nil, fmt.Errorf("%w: layer %d has %d units", ErrArchitecture, i, n)
		}
	}
	if seed == 0 {
		seed = rand.Uint64()
	}

	p := &Perceptron{src: rand.NewPCG(seed, seed>>1|1)}
	for i := 1; i < len(architecture); i++ {
		act := Tanh
		if i == len(architecture)-1 {
			act = Linear
		}
		p.layers = append(p.layers, &Layer{
			weights:    mat.NewDense(architecture[i], architecture[i-1], nil),
			biases:     mat.NewVecDense(architecture[i], nil),
			activation: act,
		})
	}
	p.RandomizeParametersNormal()
	return p, nil
}

// #endregion

// #region shape

// LayersCount counts the perceptron layers (hidden plus output).
func (p *Perceptron) LayersCount() int { return len(p.layers) }

func (p *Perceptron) IsEmpty() bool { return len(p.layers) == 0 }

func (p *Perceptron) InputsCount() int {
	if p.IsEmpty() {
		return 0
	}
	return p.layers[0].inputs()
}

func (p *Perceptron) OutputsCount() int {
	if p.IsEmpty() {
		return 0
	}
	return p.layers[len(p.layers)-1].units()
}

// HiddenUnits is the width of the last hidden layer, 0 without one.
func (p *Perceptron) HiddenUnits() int {
	if len(p.layers) < 2 {
		return 0
	}
	return p.layers[len(p.layers)-2].units()
}

// Architecture returns [inputs, hidden..., outputs].
func (p *Perceptron) Architecture() []int {
	if p.IsEmpty() {
		return nil
	}
	out := []int{p.InputsCount()}
	for _, l := range p.layers {
		out = append(out, l.units())
	}
	return out
}

// ParametersCount is the length of FlattenParameters.
func (p *Perceptron) ParametersCount() int {
	n := 0
	for _, l := range p.layers {
		n += l.units() * (l.inputs() + 1)
	}
	return n
}

// #endregion

// #region resize

// GrowHiddenUnits appends count zero-initialized units to the last hidden
// layer and the matching input columns to the next layer.
func (p *Perceptron) GrowHiddenUnits(count int) error {
	if count < 1 {
		return fmt.Errorf("%w: grow count %d must be positive", ErrArchitecture, count)
	}
	if len(p.layers) < 2 {
		return fmt.Errorf("%w: no hidden layer to grow", ErrArchitecture)
	}
	hidden := p.layers[len(p.layers)-2]
	next := p.layers[len(p.layers)-1]

	units, ins := hidden.units(), hidden.inputs()
	w := mat.NewDense(units+count, ins, nil)
	w.Slice(0, units, 0, ins).(*mat.Dense).Copy(hidden.weights)
	b := mat.NewVecDense(units+count, nil)
	b.SliceVec(0, units).(*mat.VecDense).CopyVec(hidden.biases)
	hidden.weights, hidden.biases = w, b

	outs := next.units()
	nw := mat.NewDense(outs, units+count, nil)
	nw.Slice(0, outs, 0, units).(*mat.Dense).Copy(next.weights)
	next.weights = nw
	return nil
}

// ShrinkHiddenUnits removes unit 0 of the last hidden layer count times.
func (p *Perceptron) ShrinkHiddenUnits(count int) error {
	if count < 1 {
		return fmt.Errorf("%w: shrink count %d must be positive", ErrArchitecture, count)
	}
	if len(p.layers) < 2 {
		return fmt.Errorf("%w: no hidden layer to shrink", ErrArchitecture)
	}
	hidden := p.layers[len(p.layers)-2]
	next := p.layers[len(p.layers)-1]

	units, ins, outs := hidden.units(), hidden.inputs(), next.units()
	if count >= units {
		return fmt.Errorf("%w: cannot remove %d of %d hidden units", ErrArchitecture, count, units)
	}
	keep := units - count

	w := mat.NewDense(keep, ins, nil)
	w.Copy(hidden.weights.Slice(count, units, 0, ins))
	b := mat.NewVecDense(keep, nil)
	b.CopyVec(hidden.biases.SliceVec(count, units))
	hidden.weights, hidden.biases = w, b

	nw := mat.NewDense(outs, keep, nil)
	nw.Copy(next.weights.Slice(0, outs, count, units))
	next.weights = nw
	return nil
}

// #endregion

// #region initialization

// PerturbParameters adds uniform noise in [-magnitude, magnitude] to every
// parameter.
func (p *Perceptron) PerturbParameters(magnitude float64) {
	if magnitude <= 0 {
		return
	}
	u := distuv.Uniform{Min: -magnitude, Max: magnitude, Src: p.src}
	p.apply(func(v float64) float64 { return v + u.Rand() })
}

// RandomizeParametersNormal draws every parameter from N(0, 1).
func (p *Perceptron) RandomizeParametersNormal() {
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: p.src}
	p.apply(func(float64) float64 { return n.Rand() })
}

func (p *Perceptron) apply(fn func(float64) float64) {
	for _, l := range p.layers {
		for i := 0; i < l.units(); i++ {
			l.biases.SetVec(i, fn(l.biases.AtVec(i)))
			for j := 0; j < l.inputs(); j++ {
				l.weights.Set(i, j, fn(l.weights.At(i, j)))
			}
		}
	}
}

// #endregion

// #region parameters

// FlattenParameters returns every layer's biases followed by its weights
// in row-major order, layer by layer.
func (p *Perceptron) FlattenParameters() []float64 {
	out := make([]float64, 0, p.ParametersCount())
	for _, l := range p.layers {
		out = append(out, l.biases.RawVector().Data[:l.units()]...)
		for i := 0; i < l.units(); i++ {
			out = append(out, l.weights.RawRowView(i)...)
		}
	}
	return out
}

// SetParameters installs a vector laid out like FlattenParameters.
func (p *Perceptron) SetParameters(params []float64) error {
	if len(params) != p.ParametersCount() {
		return fmt.Errorf("%w: got %d parameters, network has %d", ErrArchitecture, len(params), p.ParametersCount())
	}
	off := 0
	for _, l := range p.layers {
		units, ins := l.units(), l.inputs()
		for i := 0; i < units; i++ {
			l.biases.SetVec(i, params[off+i])
		}
		off += units
		for i := 0; i < units; i++ {
			for j := 0; j < ins; j++ {
				l.weights.Set(i, j, params[off+i*ins+j])
			}
		}
		off += units * ins
	}
	return nil
}

// #endregion

// #region forward

// Forward returns the network outputs for one input row.
func (p *Perceptron) Forward(x []float64) []float64 {
	t := p.ForwardTrace(x)
	return t.Outputs()
}

// Trace is the per-layer activations of one forward pass.
type Trace struct {
	activations [][]float64 // activations[0] is the input
}

// Outputs returns the final layer activations.
func (t Trace) Outputs() []float64 {
	return t.activations[len(t.activations)-1]
}

// ForwardTrace runs a forward pass keeping every activation for Backward.
func (p *Perceptron) ForwardTrace(x []float64) Trace {
	acts := make([][]float64, 0, len(p.layers)+1)
	a := mat.NewVecDense(len(x), append([]float64(nil), x...))
	acts = append(acts, a.RawVector().Data)
	for _, l := range p.layers {
		z := mat.NewVecDense(l.units(), nil)
		z.MulVec(l.weights, a)
		z.AddVec(z, l.biases)
		for i := 0; i < z.Len(); i++ {
			z.SetVec(i, l.activation.apply(z.AtVec(i)))
		}
		acts = append(acts, z.RawVector().Data)
		a = z
	}
	return Trace{activations: acts}
}

// Backward accumulates into grad (laid out like FlattenParameters) the
// gradient for a trace, given dE/d(output).
func (p *Perceptron) Backward(t Trace, outputDelta []float64, grad []float64) {
	offsets := make([]int, len(p.layers))
	off := 0
	for i, l := range p.layers {
		offsets[i] = off
		off += l.units() * (l.inputs() + 1)
	}

	delta := make([]float64, len(outputDelta))
	last := p.layers[len(p.layers)-1]
	y := t.activations[len(p.layers)]
	for i := range delta {
		delta[i] = outputDelta[i] * last.activation.derivative(y[i])
	}

	for li := len(p.layers) - 1; li >= 0; li-- {
		l := p.layers[li]
		in := t.activations[li]
		units, ins := l.units(), l.inputs()
		base := offsets[li]
		for i := 0; i < units; i++ {
			grad[base+i] += delta[i]
			row := base + units + i*ins
			for j := 0; j < ins; j++ {
				grad[row+j] += delta[i] * in[j]
			}
		}
		if li == 0 {
			break
		}

		prev := p.layers[li-1]
		d := mat.NewVecDense(units, delta)
		back := mat.NewVecDense(ins, nil)
		back.MulVec(l.weights.T(), d)
		next := make([]float64, ins)
		for j := range next {
			next[j] = back.AtVec(j) * prev.activation.derivative(in[j])
		}
		delta = next
	}
}

// #endregion
