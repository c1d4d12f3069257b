// Package history records viewing sessions in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog/log"
)

const (
	// CurrentSchemaVersion is the current database schema version.
	CurrentSchemaVersion = "1"

	// DefaultDBPath is the default path for the history database.
	DefaultDBPath = "data/history.db"

	// DefaultRecentLimit is used when Recent is called without a limit.
	DefaultRecentLimit = 20
)

// DB is the SQLite session history.
type DB struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

// NewDB creates a new history database instance.
func NewDB(path string) *DB {
	if path == "" {
		path = DefaultDBPath
	}
	return &DB{path: path}
}

// Open opens the database and initializes the schema.
func (d *DB) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", d.path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	d.db = db

	if err := d.initSchema(); err != nil {
		d.db.Close()
		d.db = nil
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info().Str("path", d.path).Msg("History database opened")
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db != nil {
		err := d.db.Close()
		d.db = nil
		return err
	}
	return nil
}

func (d *DB) initSchema() error {
	currentVersion := d.getSchemaVersion()

	if currentVersion == "" {
		if err := d.createSchema(); err != nil {
			return err
		}
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	if currentVersion != CurrentSchemaVersion {
		log.Info().
			Str("current", currentVersion).
			Str("target", CurrentSchemaVersion).
			Msg("Migrating history schema")
		return d.setMeta("schema_version", CurrentSchemaVersion)
	}

	return nil
}

func (d *DB) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		title TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT,
		outcome TEXT NOT NULL,
		last_position REAL DEFAULT 0,
		duration REAL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS history_meta (
		key TEXT PRIMARY KEY,
		value TEXT,
		updated_at TEXT DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_sessions_source ON sessions(source);
	`

	if _, err := d.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	log.Info().Msg("History schema created")
	return nil
}

func (d *DB) getSchemaVersion() string {
	var version string
	err := d.db.QueryRow("SELECT value FROM history_meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		return ""
	}
	return version
}

func (d *DB) setMeta(key, value string) error {
	now := time.Now().Format(time.RFC3339)
	_, err := d.db.Exec(`
		INSERT INTO history_meta (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = ?
	`, key, value, now, value, now)
	return err
}

func (d *DB) getMeta(key string) (string, error) {
	var value string
	err := d.db.QueryRow("SELECT value FROM history_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// Begin inserts an open session.
func (d *DB) Begin(s Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := d.db.Exec(`
		INSERT INTO sessions (id, source, title, started_at, outcome, last_position, duration)
		VALUES (?, ?, ?, ?, ?, 0, 0)
		ON CONFLICT(id) DO NOTHING
	`, s.ID, s.Source, s.Title, s.StartedAt.UTC().Format(time.RFC3339Nano), string(OutcomeOpen))
	if err != nil {
		return fmt.Errorf("failed to begin session %s: %w", s.ID, err)
	}
	return nil
}

// Finish closes an open session. Sessions already closed are left untouched.
func (d *DB) Finish(id string, outcome Outcome, position, duration float64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return fmt.Errorf("database not open")
	}

	_, err := d.db.Exec(`
		UPDATE sessions
		SET ended_at = ?, outcome = ?, last_position = ?, duration = ?
		WHERE id = ? AND outcome = ?
	`, at.UTC().Format(time.RFC3339Nano), string(outcome), position, duration, id, string(OutcomeOpen))
	if err != nil {
		return fmt.Errorf("failed to finish session %s: %w", id, err)
	}
	return nil
}

// Recent returns the most recently started sessions, newest first.
func (d *DB) Recent(limit int) ([]Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("database not open")
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := d.db.Query(`
		SELECT id, source, title, started_at, ended_at, outcome, last_position, duration
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s         Session
			startedAt string
			endedAt   sql.NullString
			outcome   string
		)
		if err := rows.Scan(&s.ID, &s.Source, &s.Title, &startedAt, &endedAt, &outcome, &s.LastPosition, &s.Duration); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
		if endedAt.Valid {
			if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
				s.EndedAt = &t
			}
		}
		s.Outcome = Outcome(outcome)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// Stats returns aggregate counts over all sessions.
func (d *DB) Stats() (*Stats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("database not open")
	}

	stats := &Stats{}
	err := d.db.QueryRow(`
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(last_position), 0)
		FROM sessions
	`, string(OutcomeCompleted), string(OutcomeFailed), string(OutcomeAbandoned)).Scan(
		&stats.Sessions, &stats.Completed, &stats.Failed, &stats.Abandoned, &stats.WatchedSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}

	stats.SchemaVersion, _ = d.getMeta("schema_version")
	return stats, nil
}
