package selection

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"
)

// #region fake-network

type fakeNetwork struct {
	inputs, outputs int
	hidden          int
	layers          int
	empty           bool
	params          []float64

	perturbs   int
	randomizes int
	generation float64
}

func newFakeNetwork(inputs, outputs, hidden int) *fakeNetwork {
	n := &fakeNetwork{inputs: inputs, outputs: outputs, hidden: hidden, layers: 2}
	n.params = make([]float64, n.parameterCount())
	return n
}

func (n *fakeNetwork) parameterCount() int {
	return (n.inputs+1)*n.hidden + (n.hidden+1)*n.outputs
}

func (n *fakeNetwork) LayersCount() int  { return n.layers }
func (n *fakeNetwork) IsEmpty() bool     { return n.empty }
func (n *fakeNetwork) InputsCount() int  { return n.inputs }
func (n *fakeNetwork) OutputsCount() int { return n.outputs }
func (n *fakeNetwork) HiddenUnits() int  { return n.hidden }

func (n *fakeNetwork) GrowHiddenUnits(count int) error {
	if count < 1 {
		return errors.New("grow count must be positive")
	}
	n.hidden += count
	n.params = make([]float64, n.parameterCount())
	return nil
}

func (n *fakeNetwork) ShrinkHiddenUnits(count int) error {
	if count < 1 || n.hidden-count < 1 {
		return errors.New("invalid shrink")
	}
	n.hidden -= count
	n.params = make([]float64, n.parameterCount())
	return nil
}

func (n *fakeNetwork) PerturbParameters(float64) {
	n.perturbs++
	n.fill()
}

func (n *fakeNetwork) RandomizeParametersNormal() {
	n.randomizes++
	n.fill()
}

// fill stamps a distinct value per initialization so tests can tell
// which trial's parameters were kept.
func (n *fakeNetwork) fill() {
	n.generation++
	for i := range n.params {
		n.params[i] = n.generation
	}
}

func (n *fakeNetwork) FlattenParameters() []float64 {
	return cloneFloats(n.params)
}

func (n *fakeNetwork) SetParameters(p []float64) error {
	if len(p) != n.parameterCount() {
		return errors.New("parameter count mismatch")
	}
	n.params = cloneFloats(p)
	return nil
}

// #endregion

// #region fake-trainer

type fakeScorer struct{ inputs, outputs int }

func (s fakeScorer) InputsCount() int  { return s.inputs }
func (s fakeScorer) OutputsCount() int { return s.outputs }

// errorFunc returns (training, selection) for the network's current order
// on the call-th Train invocation at that order (1-based).
type errorFunc func(order, call int) (float64, float64)

type fakeTrainer struct {
	mu      sync.Mutex
	network *fakeNetwork
	method  TrainingMethod
	errs    errorFunc
	scorer  Scorer
	onTrain func(ctx context.Context)

	calls    int
	perOrder map[int]int
}

func newFakeTrainer(network *fakeNetwork, errs errorFunc) *fakeTrainer {
	return &fakeTrainer{
		network:  network,
		method:   MethodQuasiNewton,
		errs:     errs,
		scorer:   fakeScorer{inputs: network.inputs, outputs: network.outputs},
		perOrder: make(map[int]int),
	}
}

func (t *fakeTrainer) Train(ctx context.Context) (TrainingResult, error) {
	t.mu.Lock()
	t.calls++
	order := t.network.hidden
	t.perOrder[order]++
	call := t.perOrder[order]
	t.mu.Unlock()

	if t.onTrain != nil {
		t.onTrain(ctx)
	}
	tr, sel := t.errs(order, call)
	return TrainingResult{Method: t.method, FinalTrainingError: tr, FinalSelectionError: sel}, nil
}

func (t *fakeTrainer) Scorer() Scorer { return t.scorer }

func (t *fakeTrainer) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// inverseOrder is selection error 1/order, training error half of it.
func inverseOrder(order, _ int) (float64, float64) {
	return 0.5 / float64(order), 1 / float64(order)
}

// #endregion

// #region fake-data

type fakeData struct{ inputs, targets, selection int }

func (d fakeData) InputVariablesCount() int     { return d.inputs }
func (d fakeData) TargetVariablesCount() int    { return d.targets }
func (d fakeData) SelectionInstancesCount() int { return d.selection }

// #endregion

// #region fake-clock

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// #endregion

// #region recording-observer

type recordingObserver struct {
	runIDs      []string
	trials      int
	evaluations []EvaluationRecord
	cachedHits  int
	stops       []StoppingCondition
}

func (o *recordingObserver) OnStart(runID string, _ StrategyName, _, _ int) {
	o.runIDs = append(o.runIDs, runID)
}

func (o *recordingObserver) OnTrial(int, int, float64, float64) { o.trials++ }

func (o *recordingObserver) OnEvaluation(_ int, rec EvaluationRecord, cached bool) {
	o.evaluations = append(o.evaluations, rec)
	if cached {
		o.cachedHits++
	}
}

func (o *recordingObserver) OnStop(_ StoppingState, c StoppingCondition) {
	o.stops = append(o.stops, c)
}

// #endregion

// #region helpers

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(minOrder, maxOrder int) Config {
	cfg := DefaultConfig()
	cfg.MinimumOrder = minOrder
	cfg.MaximumOrder = maxOrder
	cfg.Display = false
	return cfg
}

type fixture struct {
	network *fakeNetwork
	trainer *fakeTrainer
	deps    Dependencies
}

func newFixture(errs errorFunc) *fixture {
	network := newFakeNetwork(2, 1, 1)
	trainer := newFakeTrainer(network, errs)
	return &fixture{
		network: network,
		trainer: trainer,
		deps: Dependencies{
			Trainer: trainer,
			Network: network,
			Data:    fakeData{inputs: 2, targets: 1, selection: 10},
		},
	}
}

// #endregion
