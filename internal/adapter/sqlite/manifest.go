// Package sqlite keeps a checkpoint manifest of pipeline runs and per-event
// fetches in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/quake-trends/internal/domain"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite" // SQLite driver
)

// ErrUnknownRun is returned when finishing a run that was never started.
var ErrUnknownRun = errors.New("unknown run")

// timeLayout has a fixed width so stored timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Manifest records runs and fetches. It is informational: whether a
// precursor file is fetched is decided by the file's existence alone.
type Manifest struct {
	db    *sql.DB
	clock clockwork.Clock
}

// Option customizes a Manifest.
type Option func(*Manifest)

// WithClock replaces the clock used for run timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(m *Manifest) { m.clock = clock }
}

// Open opens or creates the manifest database at path.
func Open(path string, opts ...Option) (*Manifest, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	m := &Manifest{db: db, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate manifest: %w", err)
	}
	return m, nil
}

// Close closes the database.
func (m *Manifest) Close() error {
	return m.db.Close()
}

func (m *Manifest) migrate() error {
	version, err := m.schemaVersion()
	if err != nil {
		return err
	}
	if version >= currentSchemaVersion {
		return nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("apply schema v1: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		currentSchemaVersion, m.now()); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	return tx.Commit()
}

func (m *Manifest) schemaVersion() (int, error) {
	var exists int
	err := m.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}

	var version int
	err = m.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

// StartRun records a new running run and returns its id.
func (m *Manifest) StartRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := m.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)",
		id, m.now(), string(domain.RunRunning))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// FinishRun marks the run succeeded, or failed with runErr's message.
func (m *Manifest) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := domain.RunSucceeded, ""
	if runErr != nil {
		status, msg = domain.RunFailed, runErr.Error()
	}

	res, err := m.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?",
		m.now(), string(status), msg, runID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// RecordFetch stores one fetch or skip.
func (m *Manifest) RecordFetch(ctx context.Context, rec domain.FetchRecord) error {
	at := rec.At
	if at.IsZero() {
		at = m.clock.Now()
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO fetches (run_id, main_event, file, url, row_count, byte_count, skipped, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.MainEvent, rec.File, rec.URL, rec.Rows, rec.Bytes, rec.Skipped,
		at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert fetch: %w", err)
	}
	return nil
}

// Runs returns up to limit runs, newest first, with their fetch totals.
func (m *Manifest) Runs(ctx context.Context, limit int) ([]domain.RunSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, COALESCE(r.finished_at, ''), r.status, r.error,
		       COALESCE(SUM(CASE WHEN f.skipped = 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN f.skipped = 1 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(f.row_count), 0),
		       COALESCE(SUM(f.byte_count), 0)
		FROM runs r
		LEFT JOIN fetches f ON f.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunSummary
	for rows.Next() {
		var (
			run               domain.RunSummary
			started, finished string
			status            string
		)
		if err := rows.Scan(&run.ID, &started, &finished, &status, &run.Error,
			&run.Fetched, &run.Skipped, &run.Rows, &run.Bytes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = domain.RunStatus(status)
		if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished != "" {
			if run.FinishedAt, err = time.Parse(timeLayout, finished); err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FetchedEvents counts the distinct main events with a recorded download.
func (m *Manifest) FetchedEvents(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		"SELECT COUNT(DISTINCT main_event) FROM fetches WHERE skipped = 0").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fetched events: %w", err)
	}
	return n, nil
}

func (m *Manifest) now() string {
	return m.clock.Now().UTC().Format(timeLayout)
}
