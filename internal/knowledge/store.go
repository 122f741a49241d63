package knowledge

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the persistent knowledge base:
// content-addressed fix patterns, running-average solution statistics, and
// merged tool-path trajectories, backed by sqlite so a single binary needs
// no external database to accumulate cross-run learning.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the sqlite-backed knowledge store
// at path. Use ":memory:" for ephemeral/test stores.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("knowledge: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schema = `
CREATE TABLE IF NOT EXISTS error_fact (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	summary TEXT NOT NULL,
	file_path TEXT NOT NULL,
	fix_action TEXT NOT NULL,
	status TEXT NOT NULL,
	notes TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	UNIQUE(run_id, summary, file_path)
);

CREATE TABLE IF NOT EXISTS error_dependency (
	source_error_id TEXT NOT NULL,
	target_error_id TEXT NOT NULL,
	relationship_type TEXT NOT NULL,
	metadata TEXT,
	PRIMARY KEY (source_error_id, target_error_id, relationship_type)
);

CREATE TABLE IF NOT EXISTS fix_pattern (
	fingerprint TEXT PRIMARY KEY,
	category TEXT NOT NULL,
	template TEXT NOT NULL,
	success_count INTEGER NOT NULL DEFAULT 0,
	times_applied INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS error_solution (
	fingerprint TEXT PRIMARY KEY,
	success_rate REAL NOT NULL DEFAULT 0,
	avg_iterations REAL NOT NULL DEFAULT 0,
	times_applied INTEGER NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS fix_trajectory (
	error_category TEXT NOT NULL,
	complexity_bucket INTEGER NOT NULL,
	tool_path TEXT NOT NULL,
	success INTEGER NOT NULL,
	total_cost REAL NOT NULL,
	latency_ms REAL NOT NULL,
	reward REAL NOT NULL,
	occurrence_count INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (error_category, complexity_bucket, tool_path)
);
`

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("knowledge: migrate: %w", err)
	}
	return nil
}

func now() time.Time { return time.Now().UTC() }
