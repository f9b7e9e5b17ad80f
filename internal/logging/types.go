package logging

import "time"

// #region search-log-entry
// SearchLogEntry is a single row in the search_log table.
type SearchLogEntry struct {
	RunID          string
	Iteration      int
	Order          int
	Source         string // "cached" | "trained" | "loop"
	TrainingError  float64
	SelectionError float64
	Decision       string // "improved" | "no_improvement" | "start" | "stop"
	Reason         string
	CreatedAt      time.Time
}
// #endregion search-log-entry

// #region decisions
const (
	DecisionStart         = "start"
	DecisionImproved      = "improved"
	DecisionNoImprovement = "no_improvement"
	DecisionStop          = "stop"

	SourceCached  = "cached"
	SourceTrained = "trained"
	SourceLoop    = "loop"
)
// #endregion decisions
