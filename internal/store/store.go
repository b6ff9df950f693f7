// Package store persists end-of-run statistics summaries.
//
// DESIGN: SQLite-backed archive of run summaries for the operator surface.
// Live statistics stay in the observer's in-memory tracker; a new run never
// rehydrates from this store. The archive only serves GET /api/runs.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a run ID has no stored record.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMP NOT NULL,
	ended_at     TIMESTAMP NOT NULL,
	summary_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// RunRecord is one archived pipeline run.
type RunRecord struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Summary   json.RawMessage `json:"summary"`
}

// RunStore archives run summaries in SQLite.
type RunStore struct {
	db *sql.DB
}

// Open opens (or creates) the run database at path.
func Open(path string) (*RunStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store '%s': %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize run store schema: %w", err)
	}

	return &RunStore{db: db}, nil
}

// SaveRun archives one run summary.
func (s *RunStore) SaveRun(rec RunRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("run id is required")
	}

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO runs (id, started_at, ended_at, summary_json) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC(), rec.EndedAt.UTC(), string(rec.Summary),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", rec.ID, err)
	}
	return nil
}

// GetRun returns one archived run by ID.
func (s *RunStore) GetRun(id string) (*RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT id, started_at, ended_at, summary_json FROM runs WHERE id = ?`, id,
	)

	var rec RunRecord
	var summary string
	if err := row.Scan(&rec.ID, &rec.StartedAt, &rec.EndedAt, &summary); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	rec.Summary = json.RawMessage(summary)
	return &rec, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *RunStore) ListRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, started_at, ended_at, summary_json FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var summary string
		if err := rows.Scan(&rec.ID, &rec.StartedAt, &rec.EndedAt, &summary); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		rec.Summary = json.RawMessage(summary)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *RunStore) Close() error {
	return s.db.Close()
}
