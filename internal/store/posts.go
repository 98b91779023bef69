package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

// ErrAlreadySent is returned when retrying a record that was delivered
var ErrAlreadySent = errors.New("post already sent")

// PageSize is the number of records per history page
const PageSize = 20

// PostFilter narrows the history listing
type PostFilter string

const (
	FilterAll     PostFilter = "all"
	FilterSuccess PostFilter = "success"
	FilterFailed  PostFilter = "failed"
	FilterManual  PostFilter = "manual"
	FilterAuto    PostFilter = "auto"
)

// ParseFilter maps a query value to a PostFilter, defaulting to all
func ParseFilter(s string) PostFilter {
	switch f := PostFilter(s); f {
	case FilterSuccess, FilterFailed, FilterManual, FilterAuto:
		return f
	default:
		return FilterAll
	}
}

func (f PostFilter) where() string {
	switch f {
	case FilterSuccess:
		return "WHERE sent = 1"
	case FilterFailed:
		return "WHERE sent = 0"
	case FilterManual:
		return "WHERE origin = 'manual'"
	case FilterAuto:
		return "WHERE origin IN ('auto', 'forced')"
	default:
		return ""
	}
}

// PostPage is one page of post history
type PostPage struct {
	Posts []types.PostRecord `json:"posts"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
}

const postColumns = `id, body, topic, persona, origin, sent, remote_id, error, retry_count, created_at`

// SavePost inserts a new record and fills in its ID and CreatedAt
func (s *Store) SavePost(ctx context.Context, p *types.PostRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.clock().UTC().Truncate(time.Second)
	}
	if p.Origin == "" {
		p.Origin = types.OriginAuto
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (body, topic, persona, origin, sent, remote_id, error, retry_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.Text, p.Topic, p.Persona, string(p.Origin), p.Sent, p.RemoteID, p.Error, p.RetryCount,
		formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read post id: %w", err)
	}
	p.ID = id
	return nil
}

// GetPost returns a single record
func (s *Store) GetPost(ctx context.Context, id int64) (*types.PostRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns one page of history, newest first. page is 1-based.
func (s *Store) ListPosts(ctx context.Context, filter PostFilter, page int) (*PostPage, error) {
	if page < 1 {
		page = 1
	}
	where := filter.where()

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts `+where).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts `+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}

	return &PostPage{
		Posts: posts,
		Total: total,
		Page:  page,
		Pages: (total + PageSize - 1) / PageSize,
	}, nil
}

// FailedPosts returns unsent records, oldest first
func (s *Store) FailedPosts(ctx context.Context, limit int) ([]types.PostRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+` FROM posts
		WHERE sent = 0
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed posts: %w", err)
	}
	defer rows.Close()

	return scanPosts(rows)
}

// MarkRetried records the outcome of a retry. Only unsent records may change.
func (s *Store) MarkRetried(ctx context.Context, id int64, remoteID string, postErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		sent    bool
		errText string
	)
	if postErr == nil {
		sent = true
	} else {
		errText = postErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE posts
		SET sent = ?, remote_id = ?, error = ?, retry_count = retry_count + 1
		WHERE id = ? AND sent = 0
	`, sent, remoteID, errText, id)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	var alreadySent bool
	err = s.db.QueryRowContext(ctx, `SELECT sent FROM posts WHERE id = ?`, id).Scan(&alreadySent)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadySent
}

// DeletePost removes a record
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearPosts deletes every record and returns how many were removed
func (s *Store) ClearPosts(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM posts`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear posts: %w", err)
	}
	return res.RowsAffected()
}

// Stats are the dashboard counters
type Stats struct {
	Total    int               `json:"total"`
	Sent     int               `json:"sent"`
	Failed   int               `json:"failed"`
	Today    int               `json:"today"`
	LastPost *types.PostRecord `json:"last_post,omitempty"`
}

// Stats computes counters. "Today" starts at local midnight in loc.
func (s *Store) Stats(ctx context.Context, now time.Time, loc *time.Location) (*Stats, error) {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN sent = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0)
		FROM posts
	`, formatTime(midnight)).Scan(&st.Total, &st.Sent, &st.Today)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}
	st.Failed = st.Total - st.Sent

	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC LIMIT 1`)
	last, err := scanPost(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, err
	default:
		st.LastPost = last
	}

	return &st, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (*types.PostRecord, error) {
	var (
		p         types.PostRecord
		origin    string
		createdAt string
	)
	err := row.Scan(&p.ID, &p.Text, &p.Topic, &p.Persona, &origin, &p.Sent,
		&p.RemoteID, &p.Error, &p.RetryCount, &createdAt)
	if err != nil {
		return nil, err
	}
	p.Origin = types.Origin(origin)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func scanPosts(rows *sql.Rows) ([]types.PostRecord, error) {
	posts := []types.PostRecord{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}
