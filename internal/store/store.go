package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE sessions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	config TEXT NOT NULL,
	files TEXT NOT NULL,
	saved_at TEXT NOT NULL
);

CREATE TABLE recordings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	meta TEXT NOT NULL,
	files TEXT NOT NULL,
	excluded INTEGER NOT NULL DEFAULT 0,
	grid TEXT,
	annotations TEXT NOT NULL DEFAULT '{}',
	UNIQUE (session_id, name)
);

CREATE TABLE modalities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	recording_id INTEGER NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	meta_kind TEXT NOT NULL,
	meta TEXT NOT NULL,
	files TEXT NOT NULL,
	excluded INTEGER NOT NULL DEFAULT 0,
	time_offset REAL NOT NULL DEFAULT 0,
	sampling_rate REAL,
	shape TEXT,
	timevector BLOB,
	data BLOB,
	annotations TEXT NOT NULL DEFAULT '[]',
	UNIQUE (recording_id, name)
);

CREATE TABLE statistics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id INTEGER NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	recording_id INTEGER REFERENCES recordings(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	meta_kind TEXT NOT NULL,
	meta TEXT NOT NULL,
	files TEXT NOT NULL,
	shape TEXT NOT NULL,
	data BLOB NOT NULL
);
`

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the session database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf(
			"database %s has schema version %d, expected %d (delete the database to recreate it)",
			s.path, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// SessionInfo is one row of the saved-session listing.
type SessionInfo struct {
	Name       string
	SavedAt    time.Time
	Recordings int
	Statistics int
}

// Sessions lists the saved sessions, most recently saved first.
func (s *Store) Sessions(ctx context.Context) ([]SessionInfo, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.saved_at,
			(SELECT COUNT(1) FROM recordings r WHERE r.session_id = s.id),
			(SELECT COUNT(1) FROM statistics t WHERE t.session_id = s.id)
		FROM sessions s
		ORDER BY s.saved_at DESC, s.name`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var infos []SessionInfo
	for rows.Next() {
		var (
			info    SessionInfo
			savedAt string
		)
		if err := rows.Scan(&info.Name, &savedAt, &info.Recordings, &info.Statistics); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		if info.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
			return nil, fmt.Errorf("parse saved_at for %q: %w", info.Name, err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}
