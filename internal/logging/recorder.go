package logging

import (
	"database/sql"
	"fmt"
	"log/slog"
	"math"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region recorder
// Recorder is a selection.Observer that writes every loop decision to
// search_log. Write failures never stop the search; the first one is kept
// for Err and each is logged at Warn.
type Recorder struct {
	db     *sql.DB
	logger *slog.Logger

	runID   string
	best    float64
	hasBest bool
	err     error
}

// NewRecorder returns a recorder writing to db.
func NewRecorder(db *sql.DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{db: db, logger: logger.With(slog.String("component", "search_log"))}
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error { return r.err }

func (r *Recorder) OnStart(runID string, strategy selection.StrategyName, minOrder, maxOrder int) {
	r.runID = runID
	r.best = 0
	r.hasBest = false
	r.write(SearchLogEntry{
		RunID:    runID,
		Source:   SourceLoop,
		Decision: DecisionStart,
		Reason:   fmt.Sprintf("strategy=%s range=[%d,%d]", strategy, minOrder, maxOrder),
	})
}

func (r *Recorder) OnTrial(order, trial int, trainingError, selectionError float64) {
	r.logger.Debug("trial",
		slog.String("run_id", r.runID),
		slog.Int("order", order),
		slog.Int("trial", trial),
		slog.Float64("training_error", trainingError),
		slog.Float64("selection_error", selectionError),
	)
}

func (r *Recorder) OnEvaluation(iteration int, rec selection.EvaluationRecord, cached bool) {
	source := SourceTrained
	if cached {
		source = SourceCached
	}
	decision := DecisionNoImprovement
	if !r.hasBest || rec.SelectionError < r.best {
		decision = DecisionImproved
		r.best = rec.SelectionError
		r.hasBest = true
	}
	r.write(SearchLogEntry{
		RunID:          r.runID,
		Iteration:      iteration,
		Order:          rec.Order,
		Source:         source,
		TrainingError:  rec.TrainingError,
		SelectionError: rec.SelectionError,
		Decision:       decision,
	})
}

func (r *Recorder) OnStop(state selection.StoppingState, condition selection.StoppingCondition) {
	best := state.BestSelectionError
	if math.IsInf(best, 0) {
		best = 0
	}
	r.write(SearchLogEntry{
		RunID:          r.runID,
		Iteration:      state.Iterations,
		Order:          state.BestOrder,
		Source:         SourceLoop,
		SelectionError: best,
		Decision:       DecisionStop,
		Reason:         string(condition),
	})
}

func (r *Recorder) write(entry SearchLogEntry) {
	if err := LogDecision(r.db, entry); err != nil {
		if r.err == nil {
			r.err = err
		}
		r.logger.Warn("search log write failed",
			slog.String("run_id", entry.RunID),
			slog.String("decision", entry.Decision),
			slog.String("error", err.Error()),
		)
	}
}
// #endregion recorder
