package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id has no row.
var ErrRunNotFound = errors.New("run not found")

// ErrSelectionPruned is returned when a stored run dropped its selection
// errors and cannot be replayed.
var ErrSelectionPruned = errors.New("selection errors were not kept")

// #region run-record
// RunRecord is one persisted order-selection run.
type RunRecord struct {
	RunID               string
	ParentID            string // run whose history seeded this one
	Strategy            string
	MinimumOrder        int
	MaximumOrder        int
	StoppingCondition   string
	OptimalOrder        int
	FinalTrainingError  float64
	FinalSelectionError float64
	MinimalParameters   []float64
	Iterations          int
	Elapsed             time.Duration
	ConfigJSON          string
	DetailsJSON         string
	CreatedAt           time.Time
}
// #endregion run-record

// #region run-summary
// RunSummary pairs a run with its evaluation count, for listings.
type RunSummary struct {
	RunRecord
	Evaluations int
}
// #endregion run-summary
