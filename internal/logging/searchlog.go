package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a search entry to the search_log table.
func LogDecision(db *sql.DB, entry SearchLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO search_log (run_id, iteration, order_n, source, training_error, selection_error, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Iteration,
		entry.Order,
		entry.Source,
		entry.TrainingError,
		entry.SelectionError,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region read-log
// ReadLog returns a run's search log in insertion order.
func ReadLog(db *sql.DB, runID string) ([]SearchLogEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, iteration, order_n, source, training_error, selection_error, decision, reason, created_at
		 FROM search_log WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var entries []SearchLogEntry
	for rows.Next() {
		var e SearchLogEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Iteration, &e.Order, &e.Source, &e.TrainingError, &e.SelectionError,
			&e.Decision, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// #endregion read-log

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
