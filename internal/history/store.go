// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package history keeps a SQLite ledger of launch runs. It is an audit trail
// only; runs are never resumed from it.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BrianApollo/Ops-dashboard/internal/launch"
)

const schemaVersion = 1

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("history: run not found")

// Run is one ledger row.
type Run struct {
	ID         string       `json:"run_id"`
	Phase      launch.Phase `json:"phase"`
	CampaignID string       `json:"campaign_id,omitempty"`
	AdSetID    string       `json:"adset_id,omitempty"`
	Total      int          `json:"total"`
	Done       int          `json:"done"`
	Failed     int          `json:"failed"`
	Ticks      int          `json:"ticks"`
	Error      string       `json:"error,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
}

// FromSnapshot condenses a snapshot into a ledger row.
func FromSnapshot(s launch.Snapshot) Run {
	return Run{
		ID:         s.RunID,
		Phase:      s.Phase,
		CampaignID: s.CampaignID,
		AdSetID:    s.AdSetID,
		Total:      s.Stats.Total,
		Done:       s.Stats.Stage(launch.StageDone),
		Failed:     s.Stats.Stage(launch.StageFailed),
		Ticks:      s.Tick,
		Error:      s.Error,
		StartedAt:  s.StartedAt,
		FinishedAt: s.FinishedAt,
	}
}

// Store is the SQLite-backed run ledger.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the ledger at path and migrates it.
func Open(path string) (*Store, error) {
	return OpenWithConfig(path, DefaultDBConfig())
}

// OpenWithConfig is Open with explicit pool settings.
func OpenWithConfig(path string, cfg DBConfig) (*Store, error) {
	db, err := openDB(path, cfg)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	var current int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		phase TEXT NOT NULL,
		campaign_id TEXT NOT NULL DEFAULT '',
		adset_id TEXT NOT NULL DEFAULT '',
		total INTEGER NOT NULL,
		done INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// Record inserts or updates the row for the snapshot's run.
func (s *Store) Record(ctx context.Context, snap launch.Snapshot) error {
	if snap.RunID == "" {
		return errors.New("history: snapshot has no run id")
	}
	r := FromSnapshot(snap)

	query := `
	INSERT INTO runs (run_id, phase, campaign_id, adset_id, total, done, failed, ticks, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET
		phase = excluded.phase,
		campaign_id = excluded.campaign_id,
		adset_id = excluded.adset_id,
		total = excluded.total,
		done = excluded.done,
		failed = excluded.failed,
		ticks = excluded.ticks,
		error = excluded.error,
		finished_at = excluded.finished_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, string(r.Phase), r.CampaignID, r.AdSetID, r.Total, r.Done, r.Failed, r.Ticks, r.Error,
		formatTime(r.StartedAt), formatTime(r.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("history: record %s: %w", r.ID, err)
	}
	return nil
}

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("history: get %s: %w", id, err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Verify runs a quick integrity check on the ledger file.
func (s *Store) Verify() ([]string, error) {
	return VerifyIntegrity(s.path, false)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectRuns = `SELECT run_id, phase, campaign_id, adset_id, total, done, failed, ticks, error, started_at, finished_at FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		phase             string
		started, finished string
	)
	if err := sc.Scan(&r.ID, &phase, &r.CampaignID, &r.AdSetID, &r.Total, &r.Done, &r.Failed, &r.Ticks, &r.Error, &started, &finished); err != nil {
		return Run{}, err
	}
	r.Phase = launch.Phase(phase)
	r.StartedAt = parseTime(started)
	r.FinishedAt = parseTime(finished)
	return r, nil
}

// timeLayout is fixed width so started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
