package selection

// #region imports
import (
	"fmt"
	"math"
	"time"
)

// #endregion

// #region history-struct

// History is the append-only evaluation log and its order index. It is
// the memoization cache of the search: an order present here is never
// retrained unless one of its metric columns was forgotten.
//
// Not safe for concurrent use; the controller owns it for a run.
type History struct {
	entries []historyEntry
	index   map[int]int
}

type historyEntry struct {
	rec           EvaluationRecord
	hasTraining   bool
	hasSelection  bool
	hasParameters bool
}

// CachedEvaluation is a lookup hit. A metric whose column was forgotten
// reports false and must be measured again.
type CachedEvaluation struct {
	Record         EvaluationRecord
	TrainingKnown  bool
	SelectionKnown bool
}

// Complete reports whether both metrics can be reused.
func (c CachedEvaluation) Complete() bool {
	return c.TrainingKnown && c.SelectionKnown
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{index: make(map[int]int)}
}

// #endregion

// #region lookup

// Lookup returns the cached evaluation for order, if any.
func (h *History) Lookup(order int) (CachedEvaluation, bool) {
	i, ok := h.index[order]
	if !ok {
		return CachedEvaluation{}, false
	}
	e := h.entries[i]
	return CachedEvaluation{
		Record:         e.view(),
		TrainingKnown:  e.hasTraining,
		SelectionKnown: e.hasSelection,
	}, true
}

// SelectionError returns the recorded selection error for order.
func (h *History) SelectionError(order int) (float64, bool) {
	i, ok := h.index[order]
	if !ok || !h.entries[i].hasSelection {
		return 0, false
	}
	return h.entries[i].rec.SelectionError, true
}

// Parameters returns the parameter vector recorded for order.
func (h *History) Parameters(order int) ([]float64, error) {
	if order <= 0 {
		return nil, fmt.Errorf("%w: order %d must be greater than 0", ErrInvalidArgument, order)
	}
	i, ok := h.index[order]
	if !ok || !h.entries[i].hasParameters {
		return nil, fmt.Errorf("%w: order %d", ErrOrderNotFound, order)
	}
	return cloneFloats(h.entries[i].rec.Parameters), nil
}

// Len returns the number of distinct orders recorded.
func (h *History) Len() int {
	return len(h.entries)
}

// Records returns a copy of the history in insertion order. Forgotten
// columns read as zero (errors) or nil (parameters).
func (h *History) Records() []EvaluationRecord {
	out := make([]EvaluationRecord, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.view()
	}
	return out
}

// Last returns the most recently inserted record.
func (h *History) Last() (EvaluationRecord, bool) {
	if len(h.entries) == 0 {
		return EvaluationRecord{}, false
	}
	return h.entries[len(h.entries)-1].view(), true
}

// #endregion

// #region record

// Record appends a new evaluation for order.
func (h *History) Record(order int, outcome TrialOutcome, at time.Time) (EvaluationRecord, error) {
	if order <= 0 {
		return EvaluationRecord{}, fmt.Errorf("%w: order %d must be greater than 0", ErrInvalidArgument, order)
	}
	if _, ok := h.index[order]; ok {
		return EvaluationRecord{}, fmt.Errorf("%w: order %d", ErrDuplicateOrder, order)
	}
	if err := checkError(order, "training", outcome.TrainingError); err != nil {
		return EvaluationRecord{}, err
	}
	if err := checkError(order, "selection", outcome.SelectionError); err != nil {
		return EvaluationRecord{}, err
	}
	return h.insert(SeedEntry{
		Record: EvaluationRecord{
			Order:          order,
			TrainingError:  outcome.TrainingError,
			SelectionError: outcome.SelectionError,
			Parameters:     outcome.Parameters,
			EvaluatedAt:    at,
		},
		TrainingKnown:   true,
		SelectionKnown:  true,
		ParametersKnown: true,
	}), nil
}

func (h *History) insert(e SeedEntry) EvaluationRecord {
	rec := e.Record
	rec.Position = len(h.entries)
	rec.Parameters = cloneFloats(rec.Parameters)
	h.entries = append(h.entries, historyEntry{
		rec:           rec,
		hasTraining:   e.TrainingKnown,
		hasSelection:  e.SelectionKnown,
		hasParameters: e.ParametersKnown,
	})
	h.index[rec.Order] = rec.Position
	return h.entries[rec.Position].view()
}

// checkError rejects values that cannot be a measured error.
func checkError(order int, metric string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return fmt.Errorf("%w: %s error %g for order %d must be finite and not negative",
			ErrInvalidArgument, metric, v, order)
	}
	return nil
}

// Fill restores forgotten columns of an existing record from a fresh
// measurement. Columns still present are left untouched, so the fill
// never overwrites a reused metric.
func (h *History) Fill(order int, outcome TrialOutcome) (EvaluationRecord, error) {
	i, ok := h.index[order]
	if !ok {
		return EvaluationRecord{}, fmt.Errorf("%w: order %d", ErrOrderNotFound, order)
	}
	e := &h.entries[i]
	if !e.hasTraining {
		if err := checkError(order, "training", outcome.TrainingError); err != nil {
			return EvaluationRecord{}, err
		}
	}
	if !e.hasSelection {
		if err := checkError(order, "selection", outcome.SelectionError); err != nil {
			return EvaluationRecord{}, err
		}
	}
	if !e.hasTraining {
		e.rec.TrainingError = outcome.TrainingError
		e.hasTraining = true
	}
	if !e.hasSelection {
		e.rec.SelectionError = outcome.SelectionError
		e.hasSelection = true
	}
	if !e.hasParameters {
		e.rec.Parameters = cloneFloats(outcome.Parameters)
		e.hasParameters = true
	}
	return e.view(), nil
}

// SeedEntry is a stored record plus the columns that were actually kept.
// An unknown column is seeded as forgotten and measured again on lookup.
type SeedEntry struct {
	Record          EvaluationRecord
	TrainingKnown   bool
	SelectionKnown  bool
	ParametersKnown bool
}

// Seed appends previously measured records, e.g. from a stored run.
// Positions are reassigned; duplicates fail.
func (h *History) Seed(records []EvaluationRecord) error {
	entries := make([]SeedEntry, len(records))
	for i, r := range records {
		entries[i] = SeedEntry{Record: r, TrainingKnown: true, SelectionKnown: true, ParametersKnown: true}
	}
	return h.SeedEntries(entries)
}

// SeedEntries is Seed for records with pruned columns. The whole batch is
// checked before anything is appended.
func (h *History) SeedEntries(entries []SeedEntry) error {
	seen := make(map[int]bool, len(entries))
	for _, e := range entries {
		order := e.Record.Order
		if order <= 0 {
			return fmt.Errorf("seed order %d: %w: order must be greater than 0", order, ErrInvalidArgument)
		}
		if _, ok := h.index[order]; ok || seen[order] {
			return fmt.Errorf("seed order %d: %w", order, ErrDuplicateOrder)
		}
		seen[order] = true
		if e.TrainingKnown {
			if err := checkError(order, "training", e.Record.TrainingError); err != nil {
				return fmt.Errorf("seed order %d: %w", order, err)
			}
		}
		if e.SelectionKnown {
			if err := checkError(order, "selection", e.Record.SelectionError); err != nil {
				return fmt.Errorf("seed order %d: %w", order, err)
			}
		}
	}
	for _, e := range entries {
		if e.Record.EvaluatedAt.IsZero() {
			e.Record.EvaluatedAt = time.Now().UTC()
		}
		h.insert(e)
	}
	return nil
}

// #endregion

// #region forget

// ForgetTrainingErrors drops the training-error column.
func (h *History) ForgetTrainingErrors() {
	for i := range h.entries {
		h.entries[i].hasTraining = false
	}
}

// ForgetSelectionErrors drops the selection-error column.
func (h *History) ForgetSelectionErrors() {
	for i := range h.entries {
		h.entries[i].hasSelection = false
	}
}

// ForgetParameters drops the parameter column.
func (h *History) ForgetParameters() {
	for i := range h.entries {
		h.entries[i].hasParameters = false
	}
}

// Reset empties the history.
func (h *History) Reset() {
	h.entries = nil
	h.index = make(map[int]int)
}

// #endregion

// #region optimum

// Optimum returns the record with the lowest selection error among orders
// in [minOrder, maxOrder]. Ties go to the earliest evaluated record.
func (h *History) Optimum(minOrder, maxOrder int) (EvaluationRecord, bool) {
	best := -1
	for i, e := range h.entries {
		if !e.hasSelection || e.rec.Order < minOrder || e.rec.Order > maxOrder {
			continue
		}
		if math.IsNaN(e.rec.SelectionError) || math.IsInf(e.rec.SelectionError, 0) {
			continue
		}
		if best < 0 || e.rec.SelectionError < h.entries[best].rec.SelectionError {
			best = i
		}
	}
	if best < 0 {
		return EvaluationRecord{}, false
	}
	return h.entries[best].view(), true
}

// #endregion

// #region helpers

func (e historyEntry) view() EvaluationRecord {
	r := e.rec
	if !e.hasTraining {
		r.TrainingError = 0
	}
	if !e.hasSelection {
		r.SelectionError = 0
	}
	if e.hasParameters {
		r.Parameters = cloneFloats(r.Parameters)
	} else {
		r.Parameters = nil
	}
	return r
}

func cloneFloats(v []float64) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// #endregion
