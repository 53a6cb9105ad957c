// Package timerstore persists the CLI's running timer in a local SQLite file so
// `qr timer start` and `qr timer stop` can run as separate processes.
package timerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	_ "modernc.org/sqlite"
)

const currentVersion = 1

// ErrNoTimer is returned by Active when no timer is stored.
var ErrNoTimer = errors.New("no active timer")

// Timer is the persisted running timer.
type Timer struct {
	ProjectID   uuid.UUID
	ProjectName string
	StartedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}
	if version >= currentVersion {
		return nil
	}
	if version < 1 {
		// A single row keyed by slot=1 holds the active timer.
		const ddl = `
		CREATE TABLE IF NOT EXISTS active_timer (
			slot         INTEGER PRIMARY KEY CHECK (slot = 1),
			project_id   TEXT NOT NULL,
			project_name TEXT NOT NULL DEFAULT '',
			started_at   TEXT NOT NULL
		)`
		if _, err := s.db.Exec(ddl); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}
	_, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

// Start stores t. It fails if a timer is already stored.
func (s *Store) Start(ctx context.Context, t Timer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO active_timer (slot, project_id, project_name, started_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(slot) DO NOTHING`,
		t.ProjectID.String(), t.ProjectName, t.StartedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store timer: %w", err)
	}
	cur, err := s.Active(ctx)
	if err != nil {
		return err
	}
	if cur.ProjectID != t.ProjectID || !cur.StartedAt.Equal(t.StartedAt) {
		return fmt.Errorf("timer already running on %s", cur.label())
	}
	return nil
}

// Active returns the stored timer or ErrNoTimer.
func (s *Store) Active(ctx context.Context) (*Timer, error) {
	var pid, name, started string
	err := s.db.QueryRowContext(ctx,
		`SELECT project_id, project_name, started_at FROM active_timer WHERE slot = 1`).Scan(&pid, &name, &started)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoTimer
	}
	if err != nil {
		return nil, fmt.Errorf("read timer: %w", err)
	}
	id, err := uuid.FromString(pid)
	if err != nil {
		return nil, fmt.Errorf("read timer: bad project id: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("read timer: bad start time: %w", err)
	}
	return &Timer{ProjectID: id, ProjectName: name, StartedAt: at}, nil
}

// Clear removes the stored timer. Clearing an empty store is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM active_timer WHERE slot = 1`); err != nil {
		return fmt.Errorf("clear timer: %w", err)
	}
	return nil
}

func (t *Timer) label() string {
	if t.ProjectName != "" {
		return t.ProjectName
	}
	return t.ProjectID.String()
}
