package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// DumpVersion is the backup format written by Export
const DumpVersion = 1

// ErrInvalidDump is returned by Import for malformed backups
var ErrInvalidDump = errors.New("invalid backup")

// Dump is a JSON backup of the database
type Dump struct {
	Version    int                    `json:"version"`
	ExportedAt time.Time              `json:"exported_at"`
	Posts      []types.PostRecord     `json:"posts"`
	Prompts    []types.PromptTemplate `json:"prompts"`
	Settings   []types.PersonaSetting `json:"persona_settings"`
	Topics     []CachedTopic          `json:"topic_cache"`
}

// CachedTopic is one topic_cache row
type CachedTopic struct {
	Topic     string         `json:"topic"`
	Persona   types.Category `json:"persona"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ImportResult counts what Import wrote
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Prompts  int `json:"prompts"`
	Settings int `json:"persona_settings"`
	Topics   int `json:"topics"`
}

// Export reads every table into a Dump
func (s *Store) Export(ctx context.Context) (*Dump, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &Dump{Version: DumpVersion, ExportedAt: s.clock().UTC().Truncate(time.Second)}

	rows, err := s.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to export posts: %w", err)
	}
	d.Posts, err = scanPosts(rows)
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to export posts: %w", err)
	}

	if d.Prompts, err = s.ListPrompts(ctx); err != nil {
		return nil, err
	}
	if d.Settings, err = s.ListPersonaSettings(ctx); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx, `SELECT topic, persona, expires_at FROM topic_cache ORDER BY topic`)
	if err != nil {
		return nil, fmt.Errorf("failed to export topic cache: %w", err)
	}
	defer rows.Close()
	d.Topics = []CachedTopic{}
	for rows.Next() {
		var (
			t         CachedTopic
			expiresAt string
		)
		if err := rows.Scan(&t.Topic, &t.Persona, &expiresAt); err != nil {
			return nil, err
		}
		t.ExpiresAt = parseTime(expiresAt)
		d.Topics = append(d.Topics, t)
	}
	return d, rows.Err()
}

// Import writes a Dump in one transaction. Posts whose ID already exists are
// skipped; prompts, persona settings and cache entries replace stored rows.
// Expired cache entries are dropped. Any invalid row aborts the whole import.
func (s *Store) Import(ctx context.Context, d *Dump) (*ImportResult, error) {
	if d == nil || d.Posts == nil {
		return nil, fmt.Errorf("%w: posts are missing", ErrInvalidDump)
	}
	if d.Version > DumpVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidDump, d.Version)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.clock()
	res := &ImportResult{}

	for i, p := range d.Posts {
		if strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("%w: post %d has no text", ErrInvalidDump, i)
		}
		if p.ID > 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE id = ?`, p.ID).Scan(&exists)
			if err == nil {
				res.Skipped++
				continue
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return nil, err
			}
		}
		if err := insertPost(ctx, tx, p, now); err != nil {
			return nil, err
		}
		res.Imported++
	}

	for _, p := range d.Prompts {
		persona := strings.ToLower(strings.TrimSpace(p.Persona))
		if persona == "" || strings.TrimSpace(p.Text) == "" {
			return nil, fmt.Errorf("%w: prompt without persona or template", ErrInvalidDump)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO prompts (persona, template, description, active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(persona) DO UPDATE SET
				template = excluded.template,
				description = excluded.description,
				active = excluded.active,
				updated_at = excluded.updated_at
		`, persona, p.Text, p.Description, p.Active, formatTime(orNow(p.CreatedAt, now)), formatTime(orNow(p.UpdatedAt, now)))
		if err != nil {
			return nil, fmt.Errorf("failed to import prompt %s: %w", persona, err)
		}
		res.Prompts++
	}

	for _, ps := range d.Settings {
		if strings.TrimSpace(ps.Key) == "" {
			return nil, fmt.Errorf("%w: persona setting without key", ErrInvalidDump)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO persona_settings (setting_key, setting_value, description, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(setting_key) DO UPDATE SET
				setting_value = excluded.setting_value,
				description = CASE WHEN excluded.description = '' THEN persona_settings.description ELSE excluded.description END,
				updated_at = excluded.updated_at
		`, ps.Key, ps.Value, ps.Description, formatTime(orNow(ps.UpdatedAt, now)))
		if err != nil {
			return nil, fmt.Errorf("failed to import persona setting %s: %w", ps.Key, err)
		}
		res.Settings++
	}

	for _, t := range d.Topics {
		if t.Topic == "" || !t.ExpiresAt.After(now) {
			continue
		}
		if _, ok := types.ParseCategory(string(t.Persona)); !ok {
			return nil, fmt.Errorf("%w: topic %q has unknown persona %q", ErrInvalidDump, t.Topic, t.Persona)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO topic_cache (topic, persona, expires_at) VALUES (?, ?, ?)
			ON CONFLICT(topic) DO UPDATE SET persona = excluded.persona, expires_at = excluded.expires_at
		`, t.Topic, string(t.Persona), formatTime(t.ExpiresAt))
		if err != nil {
			return nil, fmt.Errorf("failed to import topic %s: %w", t.Topic, err)
		}
		res.Topics++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return res, nil
}

func insertPost(ctx context.Context, tx *sql.Tx, p types.PostRecord, now time.Time) error {
	if p.Origin == "" {
		p.Origin = types.OriginAuto
	}
	var id any
	if p.ID > 0 {
		id = p.ID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO posts (id, body, topic, persona, origin, sent, remote_id, error, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, p.Text, p.Topic, p.Persona, string(p.Origin), p.Sent, p.RemoteID, p.Error, p.RetryCount,
		formatTime(orNow(p.CreatedAt, now)))
	if err != nil {
		return fmt.Errorf("failed to import post: %w", err)
	}
	return nil
}

func orNow(t, now time.Time) time.Time {
	if t.IsZero() {
		return now
	}
	return t
}
