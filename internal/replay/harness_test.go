package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

var _ selection.ArchitectureMutator = (*VirtualNetwork)(nil)

// helper: selection error (o-best)^2/10 + 0.1 over [lo, hi].
func parabolaSweep(lo, hi, best int) Sweep {
	s := make(Sweep)
	for o := lo; o <= hi; o++ {
		d := float64(o - best)
		s[o] = selection.TrialOutcome{
			TrainingError:  0.05,
			SelectionError: d*d/10 + 0.1,
			Parameters:     []float64{float64(o)},
		}
	}
	return s
}

func TestSweep_BoundsAndBest(t *testing.T) {
	s := parabolaSweep(2, 9, 6)
	lo, hi := s.Bounds()
	if lo != 2 || hi != 9 {
		t.Fatalf("bounds = [%d, %d], want [2, 9]", lo, hi)
	}
	if b, ok := s.Best(); !ok || b != 6 {
		t.Fatalf("best = %d, want 6", b)
	}
	if _, ok := (Sweep{}).Best(); ok {
		t.Fatal("empty sweep has no best")
	}
}

func TestSweepFromRecords(t *testing.T) {
	s := SweepFromRecords([]selection.EvaluationRecord{
		{Order: 1, SelectionError: 0.5},
		{Order: 2, SelectionError: 0.3},
	})
	if len(s) != 2 || s[2].SelectionError != 0.3 {
		t.Fatalf("sweep = %+v", s)
	}
}

// 1. Incremental walks every order and finds the true minimum.
func TestReplay_Incremental(t *testing.T) {
	sweep := parabolaSweep(1, 8, 5)
	config := DefaultReplayConfig()

	r, err := Replay(context.Background(), sweep, config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if r.Results.OptimalOrder != 5 {
		t.Errorf("optimal order = %d, want 5", r.Results.OptimalOrder)
	}
	if r.TrainerCalls != 8 {
		t.Errorf("trainer calls = %d, want 8", r.TrainerCalls)
	}
	if !r.FoundBest {
		t.Error("expected FoundBest")
	}
	if !r.EvalResult.Passed {
		t.Errorf("eval failed: %s", r.EvalResult.Reason)
	}
	if r.Results.StoppingCondition != selection.StopAlgorithmFinished {
		t.Errorf("stopping condition = %s", r.Results.StoppingCondition)
	}
}

// 2. Golden section reaches the same optimum with fewer trainer calls.
func TestReplay_GoldenSectionIsCheaper(t *testing.T) {
	sweep := parabolaSweep(1, 8, 5)
	config := DefaultReplayConfig()
	config.Selection.Strategy = selection.StrategyGoldenSection

	r, err := Replay(context.Background(), sweep, config)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if r.Results.OptimalOrder != 5 {
		t.Errorf("optimal order = %d, want 5", r.Results.OptimalOrder)
	}
	if r.TrainerCalls >= 8 {
		t.Errorf("trainer calls = %d, want fewer than incremental", r.TrainerCalls)
	}
}

// 3. A search that leaves the recorded range fails with ErrUnrecordedOrder.
func TestReplay_UnrecordedOrder(t *testing.T) {
	sweep := parabolaSweep(1, 4, 3)
	delete(sweep, 2)
	config := DefaultReplayConfig()
	config.Selection.MinimumOrder = 1
	config.Selection.MaximumOrder = 4

	_, err := Replay(context.Background(), sweep, config)
	if !errors.Is(err, ErrUnrecordedOrder) {
		t.Fatalf("expected ErrUnrecordedOrder, got %v", err)
	}
}

func TestReplay_EmptySweep(t *testing.T) {
	if _, err := Replay(context.Background(), Sweep{}, DefaultReplayConfig()); err == nil {
		t.Fatal("expected error for empty sweep")
	}
}

// 4. Compare runs all strategies and the summary prefers the cheapest
// one that found the minimum.
func TestCompare_AllStrategies(t *testing.T) {
	sweep := parabolaSweep(1, 8, 5)
	config := DefaultReplayConfig()
	config.Selection.Annealing.Seed = 3

	results, err := Compare(context.Background(), sweep, config)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(results) != len(selection.Strategies) {
		t.Fatalf("results = %d, want %d", len(results), len(selection.Strategies))
	}
	for _, r := range results {
		if !r.EvalResult.Passed {
			t.Errorf("%s: eval failed: %s", r.Strategy, r.EvalResult.Reason)
		}
		if r.Results.OptimalOrder < 1 || r.Results.OptimalOrder > 8 {
			t.Errorf("%s: optimal order %d out of range", r.Strategy, r.Results.OptimalOrder)
		}
	}

	s := Summarize(results, sweep)
	if s.Runs != 3 || s.EvalFailures != 0 || s.BestOrder != 5 {
		t.Errorf("summary = %+v", s)
	}
	if s.Cheapest == "" || s.Cheapest == selection.StrategyIncremental {
		t.Errorf("cheapest = %q, want a strategy cheaper than incremental", s.Cheapest)
	}
}

func TestRecordedTrainer_CountsAndParameters(t *testing.T) {
	tr := NewRecordedTrainer(parabolaSweep(2, 4, 3), 1, 1)
	net := tr.Network()
	if net.HiddenUnits() != 2 {
		t.Fatalf("start units = %d, want 2", net.HiddenUnits())
	}
	if err := net.GrowHiddenUnits(1); err != nil {
		t.Fatalf("grow: %v", err)
	}
	res, err := tr.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if res.FinalSelectionError != 0.1 {
		t.Errorf("selection error = %g, want 0.1", res.FinalSelectionError)
	}
	if p := net.FlattenParameters(); len(p) != 1 || p[0] != 3 {
		t.Errorf("parameters = %v, want [3]", p)
	}
	if tr.Calls() != 1 || tr.CallsAt(3) != 1 {
		t.Errorf("calls = %d / %d", tr.Calls(), tr.CallsAt(3))
	}
	if err := net.ShrinkHiddenUnits(3); err == nil {
		t.Error("expected shrink to zero units to fail")
	}
}
