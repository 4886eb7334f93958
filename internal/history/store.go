// Package history records governance runs in a local SQLite database so a
// pipeline or the daemon can answer "what did the last check say" without
// re-running it.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	command     TEXT NOT NULL,
	state       TEXT NOT NULL DEFAULT '',
	violations  INTEGER NOT NULL DEFAULT 0,
	passed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMP NOT NULL,
	recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);
`

type Run struct {
	ID         string
	Command    string
	State      string
	Violations int
	Passed     bool
	Skipped    bool
	StartedAt  time.Time
}

// NewRun stamps a fresh run record with a unique id.
func NewRun(command, state string) Run {
	return Run{
		ID:        uuid.NewString(),
		Command:   command,
		State:     state,
		StartedAt: time.Now().UTC(),
	}
}

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Record(run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO runs (id, command, state, violations, passed, skipped, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Command, run.State, run.Violations, boolInt(run.Passed), boolInt(run.Skipped), run.StartedAt)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, command, state, violations, passed, skipped, started_at
		FROM runs ORDER BY started_at DESC, recorded_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var passed, skipped int
		if err := rows.Scan(&run.ID, &run.Command, &run.State, &run.Violations, &passed, &skipped, &run.StartedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Passed = passed != 0
		run.Skipped = skipped != 0
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Last returns the most recent run for a command, or nil when none exists.
func (s *Store) Last(command string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run Run
	var passed, skipped int
	err := s.db.QueryRow(`
		SELECT id, command, state, violations, passed, skipped, started_at
		FROM runs WHERE command = ? ORDER BY started_at DESC, recorded_at DESC LIMIT 1
	`, command).Scan(&run.ID, &run.Command, &run.State, &run.Violations, &passed, &skipped, &run.StartedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last run: %w", err)
	}
	run.Passed = passed != 0
	run.Skipped = skipped != 0
	return &run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
