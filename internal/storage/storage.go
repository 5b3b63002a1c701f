// Package storage persists prediction runs and detected shifts in SQLite.
//
// A run's graph is stored as a JSON document; its predictions are stored as rows
// so history can be listed without decoding graphs. Old runs are rotated per event
// to keep the database bounded.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rewired-gh/causaloracle/internal/models"
)

// ErrNotFound is returned when no run matches a lookup.
var ErrNotFound = errors.New("not found")

// Storage is a SQLite-backed store of runs and shifts.
// All methods are safe for concurrent use.
type Storage struct {
	db *sql.DB
	mu sync.RWMutex
}

// RunSummary is a stored run without its graph.
type RunSummary struct {
	ID          string
	EventID     string
	EventTitle  string
	SourceCount int
	ChainCount  int
	Predictions []models.Prediction
	CreatedAt   time.Time
}

// Open opens (creating if needed) the database at dbPath.
// ":memory:" opens a private in-memory database.
func Open(dbPath string) (*Storage, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{"PRAGMA foreign_keys=ON"}
	if dbPath != ":memory:" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

func (s *Storage) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_title TEXT NOT NULL,
		source_count INTEGER NOT NULL,
		chain_count INTEGER NOT NULL,
		graph TEXT,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_event ON runs(event_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS predictions (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		probability REAL NOT NULL,
		confidence TEXT NOT NULL,
		confidence_score REAL NOT NULL,
		ci_lower REAL NOT NULL,
		ci_upper REAL NOT NULL,
		reasoning TEXT NOT NULL,
		causal_chains INTEGER NOT NULL,
		PRIMARY KEY (run_id, position)
	);

	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_title TEXT NOT NULL,
		outcome TEXT NOT NULL,
		magnitude REAL NOT NULL,
		direction TEXT NOT NULL,
		old_probability REAL NOT NULL,
		new_probability REAL NOT NULL,
		divergence REAL NOT NULL,
		previous_run_id TEXT NOT NULL,
		run_id TEXT NOT NULL,
		detected_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_event ON shifts(event_id, detected_at DESC);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// SaveRun stores a validated run with its graph and predictions.
func (s *Storage) SaveRun(run *models.Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}

	var graph []byte
	chains := 0
	if run.Graph != nil {
		var err error
		graph, err = json.Marshal(run.Graph)
		if err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		chains = len(run.Graph.Metadata.Chains)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO runs (id, event_id, event_title, source_count, chain_count, graph, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.EventID, run.EventTitle, run.SourceCount, chains, nullableText(graph), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO predictions (run_id, position, outcome, probability, confidence, confidence_score, ci_lower, ci_upper, reasoning, causal_chains)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range run.Predictions {
		if _, err := stmt.Exec(run.ID, i, p.Outcome, p.Probability, string(p.ConfidenceLabel),
			p.ConfidenceScore, p.CILower, p.CIUpper, p.Reasoning, p.ChainCount); err != nil {
			return fmt.Errorf("failed to insert prediction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func nullableText(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

// GetRun loads a run by id, including its graph.
func (s *Storage) GetRun(id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, event_id, event_title, source_count, graph, created_at FROM runs WHERE id = ?`, id)
	return s.scanRun(row)
}

// LatestRun loads the most recent run for an event, including its graph.
func (s *Storage) LatestRun(eventID string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, event_id, event_title, source_count, graph, created_at FROM runs
		 WHERE event_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, eventID)
	return s.scanRun(row)
}

// scanRun must be called with at least a read lock held.
func (s *Storage) scanRun(row *sql.Row) (*models.Run, error) {
	var (
		run     models.Run
		graph   sql.NullString
		created int64
	)
	if err := row.Scan(&run.ID, &run.EventID, &run.EventTitle, &run.SourceCount, &graph, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt = time.Unix(0, created).UTC()

	if graph.Valid {
		run.Graph = &models.Graph{}
		if err := json.Unmarshal([]byte(graph.String), run.Graph); err != nil {
			return nil, fmt.Errorf("failed to decode graph for run %s: %w", run.ID, err)
		}
	}

	preds, err := s.predictions(run.ID)
	if err != nil {
		return nil, err
	}
	run.Predictions = preds
	return &run, nil
}

func (s *Storage) predictions(runID string) ([]models.Prediction, error) {
	rows, err := s.db.Query(
		`SELECT outcome, probability, confidence, confidence_score, ci_lower, ci_upper, reasoning, causal_chains
		 FROM predictions WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var (
			p     models.Prediction
			label string
		)
		if err := rows.Scan(&p.Outcome, &p.Probability, &label, &p.ConfidenceScore,
			&p.CILower, &p.CIUpper, &p.Reasoning, &p.ChainCount); err != nil {
			return nil, fmt.Errorf("failed to scan prediction: %w", err)
		}
		p.ConfidenceLabel = models.ConfidenceLabel(label)
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// ListRuns returns up to limit run summaries for an event, newest first.
// limit <= 0 returns all runs.
func (s *Storage) ListRuns(eventID string, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, event_id, event_title, source_count, chain_count, created_at FROM runs
		 WHERE event_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var out []RunSummary
	for rows.Next() {
		var (
			r       RunSummary
			created int64
		)
		if err := rows.Scan(&r.ID, &r.EventID, &r.EventTitle, &r.SourceCount, &r.ChainCount, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	rows.Close()

	for i := range out {
		preds, err := s.predictions(out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Predictions = preds
	}
	return out, nil
}

// EventIDs returns the distinct event ids with stored runs.
func (s *Storage) EventIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT event_id FROM runs ORDER BY event_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan event id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RotateRuns keeps at most maxPerEvent of the newest runs for every event and
// returns the number of runs deleted.
func (s *Storage) RotateRuns(maxPerEvent int) (int64, error) {
	if maxPerEvent < 1 {
		return 0, fmt.Errorf("invalid max runs per event %d: must be at least 1", maxPerEvent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM predictions WHERE run_id IN (`+staleRuns+`)`, maxPerEvent); err != nil {
		return 0, fmt.Errorf("failed to rotate predictions: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM runs WHERE id IN (`+staleRuns+`)`, maxPerEvent)
	if err != nil {
		return 0, fmt.Errorf("failed to rotate runs: %w", err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count rotated runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit rotation: %w", err)
	}
	return deleted, nil
}

// staleRuns selects the ids of runs beyond the newest N per event.
const staleRuns = `
	SELECT id FROM (
		SELECT id, ROW_NUMBER() OVER (
			PARTITION BY event_id ORDER BY created_at DESC, rowid DESC
		) AS n FROM runs
	) WHERE n > ?`

// SaveShift stores a validated shift.
func (s *Storage) SaveShift(shift *models.Shift) error {
	if err := shift.Validate(); err != nil {
		return fmt.Errorf("invalid shift: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO shifts (id, event_id, event_title, outcome, magnitude, direction,
			old_probability, new_probability, divergence, previous_run_id, run_id, detected_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		shift.ID, shift.EventID, shift.EventTitle, shift.Outcome, shift.Magnitude, shift.Direction,
		shift.OldProbability, shift.NewProbability, shift.Divergence, shift.PreviousRunID, shift.RunID,
		shift.DetectedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

// ListShifts returns up to limit shifts for an event, newest first.
func (s *Storage) ListShifts(eventID string, limit int) ([]models.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT id, event_id, event_title, outcome, magnitude, direction, old_probability,
			new_probability, divergence, previous_run_id, run_id, detected_at
		 FROM shifts WHERE event_id = ? ORDER BY detected_at DESC, rowid DESC LIMIT ?`, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var out []models.Shift
	for rows.Next() {
		var (
			sh       models.Shift
			detected int64
		)
		if err := rows.Scan(&sh.ID, &sh.EventID, &sh.EventTitle, &sh.Outcome, &sh.Magnitude, &sh.Direction,
			&sh.OldProbability, &sh.NewProbability, &sh.Divergence, &sh.PreviousRunID, &sh.RunID, &detected); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		sh.DetectedAt = time.Unix(0, detected).UTC()
		out = append(out, sh)
	}
	return out, rows.Err()
}
