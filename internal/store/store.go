package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/order-selection/internal/selection"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS selection_runs (
	run_id                TEXT PRIMARY KEY,
	parent_id             TEXT,
	strategy              TEXT NOT NULL,
	minimum_order         INTEGER NOT NULL,
	maximum_order         INTEGER NOT NULL,
	stopping_condition    TEXT NOT NULL,
	optimal_order         INTEGER NOT NULL,
	final_training_error  REAL NOT NULL,
	final_selection_error REAL NOT NULL,
	minimal_parameters    BLOB,
	iterations            INTEGER NOT NULL,
	elapsed_ns            INTEGER NOT NULL,
	config_json           TEXT,
	details_json          TEXT,
	created_at            TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES selection_runs(run_id)
);

CREATE TABLE IF NOT EXISTS evaluations (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	order_n         INTEGER NOT NULL,
	training_error  REAL,
	selection_error REAL,
	parameters      BLOB,
	evaluated_at    TEXT NOT NULL,
	UNIQUE (run_id, order_n),
	FOREIGN KEY (run_id) REFERENCES selection_runs(run_id)
);

CREATE TABLE IF NOT EXISTS search_log (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id          TEXT NOT NULL,
	iteration       INTEGER NOT NULL,
	order_n         INTEGER NOT NULL,
	source          TEXT NOT NULL,
	training_error  REAL NOT NULL,
	selection_error REAL NOT NULL,
	decision        TEXT NOT NULL,
	reason          TEXT,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS active_run (
	id     INTEGER PRIMARY KEY CHECK (id = 1),
	run_id TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES selection_runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store persists order-selection runs in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region save-run
// SaveRun writes a finished run with its history and makes it the active
// run. parentID names the run whose history seeded this one, or "".
// Columns dropped by res.Reserve are stored as NULL.
func (s *Store) SaveRun(res selection.ModelSelectionResults, cfg selection.Config, parentID string) (string, error) {
	runID := res.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	var detailsJSON []byte
	if res.Details != nil {
		if detailsJSON, err = json.Marshal(res.Details); err != nil {
			return "", fmt.Errorf("marshal details: %w", err)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if parentID != "" {
		parentPtr = parentID
	}

	_, err = tx.Exec(
		`INSERT INTO selection_runs (run_id, parent_id, strategy, minimum_order, maximum_order, stopping_condition,
			optimal_order, final_training_error, final_selection_error, minimal_parameters, iterations, elapsed_ns,
			config_json, details_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, parentPtr, string(res.Strategy), res.MinimumOrder, res.MaximumOrder, string(res.StoppingCondition),
		res.OptimalOrder, res.FinalTrainingError, res.FinalSelectionError, encodeVector(res.MinimalParameters),
		res.Iterations, int64(res.Elapsed), string(cfgJSON), nullIfEmpty(string(detailsJSON)),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, rec := range res.History {
		at := rec.EvaluatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		_, err = tx.Exec(
			`INSERT INTO evaluations (run_id, position, order_n, training_error, selection_error, parameters, evaluated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, rec.Position, rec.Order,
			nullIfPruned(rec.TrainingError, res.Reserve.TrainingErrorHistory),
			nullIfPruned(rec.SelectionError, res.Reserve.SelectionErrorHistory),
			encodeVector(rec.Parameters), at.Format(time.RFC3339Nano),
		)
		if err != nil {
			return "", fmt.Errorf("insert evaluation order %d: %w", rec.Order, err)
		}
	}

	_, err = tx.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		runID,
	)
	if err != nil {
		return "", fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}
// #endregion save-run

// #region get-run
const runColumns = `run_id, parent_id, strategy, minimum_order, maximum_order, stopping_condition,
	optimal_order, final_training_error, final_selection_error, minimal_parameters, iterations, elapsed_ns,
	config_json, details_json, created_at`

// GetRun retrieves a run by ID.
func (s *Store) GetRun(id string) (RunRecord, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM selection_runs WHERE run_id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return rec, nil
}

// Active returns the most recently saved or activated run.
func (s *Store) Active() (RunRecord, error) {
	var runID string
	err := s.db.QueryRow(`SELECT run_id FROM active_run WHERE id = 1`).Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("get active: %w", ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetRun(runID)
}

// Activate points the active run at a previous run.
func (s *Store) Activate(runID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM selection_runs WHERE run_id = ?`, runID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check run: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("activate %s: %w", runID, ErrRunNotFound)
	}

	_, err = s.db.Exec(
		`INSERT INTO active_run (id, run_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET run_id = excluded.run_id`,
		runID,
	)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	return nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs with their evaluation counts.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	rows, err := s.db.Query(
		`SELECT `+runColumns+`,
			(SELECT COUNT(*) FROM evaluations e WHERE e.run_id = selection_runs.run_id)
		 FROM selection_runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var sum RunSummary
		rec, err := scanRun(rows, &sum.Evaluations)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sum.RunRecord = rec
		runs = append(runs, sum)
	}
	return runs, rows.Err()
}
// #endregion list-runs

// #region load-history
// LoadHistory returns a run's evaluations in insertion order. Pruned
// columns read as zero or nil; use LoadSeedEntries to warm-start a
// controller.
func (s *Store) LoadHistory(runID string) ([]selection.EvaluationRecord, error) {
	entries, err := s.LoadSeedEntries(runID)
	if err != nil {
		return nil, err
	}
	records := make([]selection.EvaluationRecord, len(entries))
	for i, e := range entries {
		records[i] = e.Record
	}
	return records, nil
}

// LoadSeedEntries returns a run's evaluations with the columns that were
// kept marked known, ready for selection.Controller.SeedEntries.
func (s *Store) LoadSeedEntries(runID string) ([]selection.SeedEntry, error) {
	rows, err := s.db.Query(
		`SELECT position, order_n, training_error, selection_error, parameters, evaluated_at
		 FROM evaluations WHERE run_id = ? ORDER BY position ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var entries []selection.SeedEntry
	for rows.Next() {
		var e selection.SeedEntry
		var training, sel sql.NullFloat64
		var params []byte
		var evaluatedStr string
		if err := rows.Scan(&e.Record.Position, &e.Record.Order, &training, &sel, &params, &evaluatedStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		e.Record.TrainingError, e.TrainingKnown = training.Float64, training.Valid
		e.Record.SelectionError, e.SelectionKnown = sel.Float64, sel.Valid
		e.Record.Parameters = decodeVector(params)
		e.ParametersKnown = params != nil
		e.Record.EvaluatedAt, _ = time.Parse(time.RFC3339Nano, evaluatedStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
// LoadSweep is LoadHistory for replay: it fails when the run did not keep
// its selection errors.
func (s *Store) LoadSweep(runID string) ([]selection.EvaluationRecord, error) {
	entries, err := s.LoadSeedEntries(runID)
	if err != nil {
		return nil, err
	}
	records := make([]selection.EvaluationRecord, len(entries))
	for i, e := range entries {
		if !e.SelectionKnown {
			return nil, fmt.Errorf("%w: run %s order %d", ErrSelectionPruned, runID, e.Record.Order)
		}
		records[i] = e.Record
	}
	return records, nil
}
// #endregion load-history

// #region details
// DecodeDetails rebuilds the per-strategy details stored with a run.
func DecodeDetails(rec RunRecord) (selection.StrategyResults, error) {
	if rec.DetailsJSON == "" {
		return nil, nil
	}
	var out selection.StrategyResults
	switch selection.StrategyName(rec.Strategy) {
	case selection.StrategyIncremental:
		out = &selection.IncrementalResults{}
	case selection.StrategyGoldenSection:
		out = &selection.GoldenSectionResults{}
	case selection.StrategySimulatedAnnealing:
		out = &selection.AnnealingResults{}
	default:
		return nil, fmt.Errorf("decode details: %w: %q", selection.ErrUnknownStrategy, rec.Strategy)
	}
	if err := json.Unmarshal([]byte(rec.DetailsJSON), out); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return out, nil
}
// #endregion details

// #region scan
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner, extra ...any) (RunRecord, error) {
	var rec RunRecord
	var parentID, cfgJSON, detailsJSON sql.NullString
	var minimal []byte
	var elapsed int64
	var createdStr string

	dest := []any{
		&rec.RunID, &parentID, &rec.Strategy, &rec.MinimumOrder, &rec.MaximumOrder, &rec.StoppingCondition,
		&rec.OptimalOrder, &rec.FinalTrainingError, &rec.FinalSelectionError, &minimal, &rec.Iterations, &elapsed,
		&cfgJSON, &detailsJSON, &createdStr,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return RunRecord{}, err
	}

	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.MinimalParameters = decodeVector(minimal)
	rec.Elapsed = time.Duration(elapsed)
	if cfgJSON.Valid {
		rec.ConfigJSON = cfgJSON.String
	}
	if detailsJSON.Valid {
		rec.DetailsJSON = detailsJSON.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}
// #endregion scan

// #region vector-encoding
// encodeVector stores float64s little-endian; nil stays NULL.
func encodeVector(v []float64) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	if b == nil {
		return nil
	}
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

func nullIfPruned(v float64, kept bool) interface{} {
	if !kept {
		return nil
	}
	return v
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion vector-encoding
