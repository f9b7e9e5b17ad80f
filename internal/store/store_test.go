package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResults(runID string) selection.ModelSelectionResults {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return selection.ModelSelectionResults{
		RunID:             runID,
		Strategy:          selection.StrategyIncremental,
		MinimumOrder:      1,
		MaximumOrder:      3,
		StoppingCondition: selection.StopAlgorithmFinished,
		Reserve:           selection.DefaultConfig().Reserve,
		History: []selection.EvaluationRecord{
			{Position: 0, Order: 1, TrainingError: 0.5, SelectionError: 1, Parameters: []float64{0.1, 0.2}, EvaluatedAt: at},
			{Position: 1, Order: 2, TrainingError: 0.25, SelectionError: 0.5, Parameters: []float64{0.3}, EvaluatedAt: at},
			{Position: 2, Order: 3, TrainingError: 0.2, SelectionError: 0.33, Parameters: nil, EvaluatedAt: at},
		},
		OptimalOrder:        3,
		FinalTrainingError:  0.2,
		FinalSelectionError: 0.33,
		MinimalParameters:   []float64{1.5, -2.25},
		Iterations:          3,
		Elapsed:             1500 * time.Millisecond,
		Details:             &selection.IncrementalResults{Step: 1, MaximumSelectionFailures: 10, LastOrder: 3},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	res := sampleResults("run-1")

	id, err := s.SaveRun(res, selection.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("expected run-1, got %s", id)
	}

	got, err := s.GetRun(id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.OptimalOrder != 3 {
		t.Fatalf("expected optimal order 3, got %d", got.OptimalOrder)
	}
	if got.StoppingCondition != "AlgorithmFinished" {
		t.Fatalf("expected AlgorithmFinished, got %s", got.StoppingCondition)
	}
	if got.Elapsed != 1500*time.Millisecond {
		t.Fatalf("expected 1.5s elapsed, got %s", got.Elapsed)
	}
	if len(got.MinimalParameters) != 2 || got.MinimalParameters[1] != -2.25 {
		t.Fatalf("minimal parameters mismatch: %v", got.MinimalParameters)
	}
	if got.ParentID != "" {
		t.Fatalf("expected empty parent, got %q", got.ParentID)
	}
	if got.ConfigJSON == "" {
		t.Fatal("expected config json")
	}
}

func TestSaveRunGeneratesID(t *testing.T) {
	s := tempDB(t)
	id, err := s.SaveRun(sampleResults(""), selection.DefaultConfig(), "")
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated run id")
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := tempDB(t)
	if _, err := s.SaveRun(sampleResults("dup"), selection.DefaultConfig(), ""); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if _, err := s.SaveRun(sampleResults("dup"), selection.DefaultConfig(), ""); err == nil {
		t.Fatal("expected error for duplicate run id")
	}
}

func TestSaveRunUnknownParent(t *testing.T) {
	s := tempDB(t)
	_, err := s.SaveRun(sampleResults("child"), selection.DefaultConfig(), "missing-parent")
	if err == nil {
		t.Fatal("expected foreign key error for unknown parent")
	}
}

func TestLoadHistory(t *testing.T) {
	s := tempDB(t)
	res := sampleResults("run-h")
	if _, err := s.SaveRun(res, selection.DefaultConfig(), ""); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	history, err := s.LoadHistory("run-h")
	if err != nil {
		t.Fatalf("LoadHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 records, got %d", len(history))
	}
	for i, rec := range history {
		want := res.History[i]
		if rec.Order != want.Order || rec.SelectionError != want.SelectionError {
			t.Fatalf("record %d mismatch: got %+v", i, rec)
		}
		if !rec.EvaluatedAt.Equal(want.EvaluatedAt) {
			t.Fatalf("record %d time mismatch: %s", i, rec.EvaluatedAt)
		}
	}
	if history[2].Parameters != nil {
		t.Fatalf("expected nil parameters for pruned record, got %v", history[2].Parameters)
	}

	// Loaded history seeds a fresh controller.
	c := selection.NewController(selection.DefaultConfig())
	if err := c.Seed(history); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if c.History().Len() != 3 {
		t.Fatalf("expected 3 seeded orders, got %d", c.History().Len())
	}
}

func TestPrunedColumnsSeedAsForgotten(t *testing.T) {
	s := tempDB(t)
	res := sampleResults("run-pruned")
	res.Reserve.SelectionErrorHistory = false
	res.Reserve.Parameters = false
	for i := range res.History {
		res.History[i].SelectionError = 0
		res.History[i].Parameters = nil
	}
	if _, err := s.SaveRun(res, selection.DefaultConfig(), ""); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	entries, err := s.LoadSeedEntries("run-pruned")
	if err != nil {
		t.Fatalf("LoadSeedEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if !e.TrainingKnown || e.SelectionKnown || e.ParametersKnown {
			t.Fatalf("order %d: unexpected known columns %+v", e.Record.Order, e)
		}
	}
	if entries[1].Record.TrainingError != 0.25 {
		t.Fatalf("training error not kept: %g", entries[1].Record.TrainingError)
	}

	h := selection.NewHistory()
	if err := h.SeedEntries(entries); err != nil {
		t.Fatalf("SeedEntries: %v", err)
	}
	hit, ok := h.Lookup(3)
	if !ok || hit.Complete() || hit.SelectionKnown {
		t.Fatalf("order 3 should be a partial hit, got %+v (found=%v)", hit, ok)
	}
	if _, ok := h.Optimum(1, 3); ok {
		t.Fatal("pruned selection errors must not produce an optimum")
	}

	if _, err := s.LoadSweep("run-pruned"); !errors.Is(err, ErrSelectionPruned) {
		t.Fatalf("expected ErrSelectionPruned, got %v", err)
	}
}

func TestActiveAndActivate(t *testing.T) {
	s := tempDB(t)

	if _, err := s.Active(); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound before any run, got %v", err)
	}

	s.SaveRun(sampleResults("first"), selection.DefaultConfig(), "")
	s.SaveRun(sampleResults("second"), selection.DefaultConfig(), "first")

	cur, err := s.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if cur.RunID != "second" {
		t.Fatalf("expected second, got %s", cur.RunID)
	}
	if cur.ParentID != "first" {
		t.Fatalf("expected parent first, got %q", cur.ParentID)
	}

	if err := s.Activate("first"); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	cur, _ = s.Active()
	if cur.RunID != "first" {
		t.Fatalf("expected first after activate, got %s", cur.RunID)
	}

	if err := s.Activate("nonexistent"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	s.SaveRun(sampleResults("a"), selection.DefaultConfig(), "")
	s.SaveRun(sampleResults("b"), selection.DefaultConfig(), "")

	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	for _, r := range runs {
		if r.Evaluations != 3 {
			t.Fatalf("expected 3 evaluations for %s, got %d", r.RunID, r.Evaluations)
		}
	}

	runs, _ = s.ListRuns(1)
	if len(runs) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(runs))
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := tempDB(t)
	_, err := s.GetRun("nonexistent-id")
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestDecodeDetails(t *testing.T) {
	s := tempDB(t)
	s.SaveRun(sampleResults("d"), selection.DefaultConfig(), "")
	rec, _ := s.GetRun("d")

	details, err := DecodeDetails(rec)
	if err != nil {
		t.Fatalf("DecodeDetails: %v", err)
	}
	inc, ok := details.(*selection.IncrementalResults)
	if !ok {
		t.Fatalf("expected *IncrementalResults, got %T", details)
	}
	if inc.LastOrder != 3 {
		t.Fatalf("expected last order 3, got %d", inc.LastOrder)
	}

	rec.Strategy = "grid"
	if _, err := DecodeDetails(rec); !errors.Is(err, selection.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestVectorRoundTrip(t *testing.T) {
	original := []float64{0, 1.5, -3.25, 1e-300}
	decoded := decodeVector(encodeVector(original))
	if len(decoded) != len(original) {
		t.Fatalf("length mismatch: %d != %d", len(decoded), len(original))
	}
	for i := range original {
		if original[i] != decoded[i] {
			t.Fatalf("mismatch at %d: %g != %g", i, original[i], decoded[i])
		}
	}
	if encodeVector(nil) != nil || decodeVector(nil) != nil {
		t.Fatal("expected nil to stay nil")
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestSaveRunOnClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()

	if _, err := s.SaveRun(sampleResults("closed"), selection.DefaultConfig(), ""); err == nil {
		t.Fatal("expected error on closed DB")
	}
}
