package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// TopicCache persists topic classifications in the topic_cache table
type TopicCache struct {
	s *Store
}

// TopicCache returns the sqlite-backed classification cache
func (s *Store) TopicCache() *TopicCache {
	return &TopicCache{s: s}
}

// Get returns the cached category for an already-normalized topic.
// Expired rows are treated as misses.
func (c *TopicCache) Get(ctx context.Context, topic string) (types.Category, bool, error) {
	var persona string
	err := c.s.db.QueryRowContext(ctx, `
		SELECT persona FROM topic_cache WHERE topic = ? AND expires_at > ?
	`, topic, formatTime(c.s.clock())).Scan(&persona)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read topic cache: %w", err)
	}
	return types.Category(persona), true, nil
}

// Set stores a classification for ttl
func (c *TopicCache) Set(ctx context.Context, topic string, category types.Category, ttl time.Duration) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	_, err := c.s.db.ExecContext(ctx, `
		INSERT INTO topic_cache (topic, persona, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(topic) DO UPDATE SET persona = excluded.persona, expires_at = excluded.expires_at
	`, topic, string(category), formatTime(c.s.clock().Add(ttl)))
	if err != nil {
		return fmt.Errorf("failed to write topic cache: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed
func (c *TopicCache) Purge(ctx context.Context) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	res, err := c.s.db.ExecContext(ctx, `DELETE FROM topic_cache WHERE expires_at <= ?`, formatTime(c.s.clock()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge topic cache: %w", err)
	}
	return res.RowsAffected()
}
