package replay

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// ErrUnrecordedOrder is returned when a replayed search asks for an order
// the sweep never measured.
var ErrUnrecordedOrder = errors.New("order not recorded")

// #region sweep

// Sweep is a recorded table of order -> outcome.
type Sweep map[int]selection.TrialOutcome

// SweepFromRecords builds a sweep from evaluation records. Later records
// for the same order win.
func SweepFromRecords(records []selection.EvaluationRecord) Sweep {
	s := make(Sweep, len(records))
	for _, rec := range records {
		s[rec.Order] = rec.Outcome()
	}
	return s
}

// Orders returns the recorded orders, ascending.
func (s Sweep) Orders() []int {
	out := make([]int, 0, len(s))
	for o := range s {
		out = append(out, o)
	}
	slices.Sort(out)
	return out
}

// Bounds returns the smallest and largest recorded order.
func (s Sweep) Bounds() (int, int) {
	orders := s.Orders()
	if len(orders) == 0 {
		return 0, 0
	}
	return orders[0], orders[len(orders)-1]
}

// Best returns the order with the lowest selection error, ties to the
// smaller order.
func (s Sweep) Best() (int, bool) {
	best, found := 0, false
	for _, o := range s.Orders() {
		if !found || s[o].SelectionError < s[best].SelectionError {
			best, found = o, true
		}
	}
	return best, found
}

// #endregion sweep

// #region virtual-network

// VirtualNetwork is an ArchitectureMutator that only tracks its hidden
// width and the last installed parameter vector.
type VirtualNetwork struct {
	inputs  int
	outputs int
	units   int
	params  []float64
}

// NewVirtualNetwork returns a network with one hidden layer of units.
func NewVirtualNetwork(inputs, outputs, units int) *VirtualNetwork {
	return &VirtualNetwork{inputs: inputs, outputs: outputs, units: units}
}

func (n *VirtualNetwork) LayersCount() int  { return 2 }
func (n *VirtualNetwork) IsEmpty() bool     { return false }
func (n *VirtualNetwork) InputsCount() int  { return n.inputs }
func (n *VirtualNetwork) OutputsCount() int { return n.outputs }
func (n *VirtualNetwork) HiddenUnits() int  { return n.units }

func (n *VirtualNetwork) GrowHiddenUnits(count int) error {
	if count < 1 {
		return fmt.Errorf("grow count %d must be positive", count)
	}
	n.units += count
	n.params = nil
	return nil
}

func (n *VirtualNetwork) ShrinkHiddenUnits(count int) error {
	if count < 1 || count >= n.units {
		return fmt.Errorf("cannot remove %d of %d hidden units", count, n.units)
	}
	n.units -= count
	n.params = nil
	return nil
}

func (n *VirtualNetwork) PerturbParameters(float64) {}
func (n *VirtualNetwork) RandomizeParametersNormal() {}

func (n *VirtualNetwork) FlattenParameters() []float64 {
	return slices.Clone(n.params)
}

// SetParameters accepts any length; recorded vectors are opaque here.
func (n *VirtualNetwork) SetParameters(params []float64) error {
	n.params = slices.Clone(params)
	return nil
}

// #endregion virtual-network

// #region recorded-trainer

// RecordedTrainer answers Train with the sweep's outcome for the network's
// current hidden width.
type RecordedTrainer struct {
	sweep   Sweep
	network *VirtualNetwork

	mu    sync.Mutex
	calls map[int]int
}

// NewRecordedTrainer replays sweep through a virtual network of the given
// shape, starting at the sweep's smallest order.
func NewRecordedTrainer(sweep Sweep, inputs, outputs int) *RecordedTrainer {
	lo, _ := sweep.Bounds()
	return &RecordedTrainer{
		sweep:   sweep,
		network: NewVirtualNetwork(inputs, outputs, max(lo, 1)),
		calls:   make(map[int]int),
	}
}

// Network is the virtual network the controller should resize.
func (t *RecordedTrainer) Network() *VirtualNetwork { return t.network }

// Data describes a data set with matching shape and one selection instance.
func (t *RecordedTrainer) Data() selection.DataSource {
	return recordedData{inputs: t.network.inputs, targets: t.network.outputs}
}

// Train implements selection.Trainer.
func (t *RecordedTrainer) Train(context.Context) (selection.TrainingResult, error) {
	order := t.network.HiddenUnits()
	outcome, ok := t.sweep[order]
	if !ok {
		return selection.TrainingResult{}, fmt.Errorf("%w: %d", ErrUnrecordedOrder, order)
	}
	t.mu.Lock()
	t.calls[order]++
	t.mu.Unlock()

	if err := t.network.SetParameters(outcome.Parameters); err != nil {
		return selection.TrainingResult{}, err
	}
	return selection.TrainingResult{
		Method:              selection.MethodGradientDescent,
		FinalTrainingError:  outcome.TrainingError,
		FinalSelectionError: outcome.SelectionError,
	}, nil
}

// Scorer implements selection.Trainer.
func (t *RecordedTrainer) Scorer() selection.Scorer { return t.network }

// Calls returns the total number of Train calls.
func (t *RecordedTrainer) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, c := range t.calls {
		n += c
	}
	return n
}

// CallsAt returns the Train calls made at order.
func (t *RecordedTrainer) CallsAt(order int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[order]
}

type recordedData struct {
	inputs  int
	targets int
}

func (d recordedData) InputVariablesCount() int     { return d.inputs }
func (d recordedData) TargetVariablesCount() int    { return d.targets }
func (d recordedData) SelectionInstancesCount() int { return 1 }

// #endregion recorded-trainer
