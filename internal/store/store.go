package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row addressed by key does not exist
var ErrNotFound = errors.New("not found")

// timestamps are stored as sortable UTC text
const timeLayout = "2006-01-02 15:04:05"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Store handles all database operations. Writes are serialized by mu so the
// scheduled loop and dashboard requests never interleave a read-modify-write.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with SQLite backend. dbPath may be ":memory:".
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps :memory: databases shared and sqlite single-writer
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := s.seed(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	return s, nil
}

// SetClock replaces the time source used for new rows and cache expiry
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) clock() time.Time {
	return s.now()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		body TEXT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		persona TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT 'auto',
		sent INTEGER NOT NULL DEFAULT 0,
		remote_id TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS prompts (
		persona TEXT PRIMARY KEY,
		template TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS persona_settings (
		setting_key TEXT PRIMARY KEY,
		setting_value TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS topic_cache (
		topic TEXT PRIMARY KEY,
		persona TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_sent ON posts(sent);
	CREATE INDEX IF NOT EXISTS idx_topic_cache_expires ON topic_cache(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// seed inserts the default prompts and persona settings without touching
// rows an operator already edited.
func (s *Store) seed(ctx context.Context) error {
	now := formatTime(s.clock())
	for _, p := range defaultPrompts {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO prompts (persona, template, description, active, created_at, updated_at)
			VALUES (?, ?, ?, 1, ?, ?)
		`, p.persona, p.template, p.description, now, now)
		if err != nil {
			return err
		}
	}
	for _, ps := range defaultPersonaSettings {
		_, err := s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO persona_settings (setting_key, setting_value, description, updated_at)
			VALUES (?, ?, ?, ?)
		`, ps.key, ps.value, ps.description, now)
		if err != nil {
			return err
		}
	}
	return nil
}
