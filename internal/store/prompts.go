package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ibeckermayer/trendpersona/internal/types"
)

const promptColumns = `persona, template, description, active, created_at, updated_at`

// ListPrompts returns every template ordered by persona
func (s *Store) ListPrompts(ctx context.Context) ([]types.PromptTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+promptColumns+` FROM prompts ORDER BY persona`)
	if err != nil {
		return nil, fmt.Errorf("failed to list prompts: %w", err)
	}
	defer rows.Close()

	prompts := []types.PromptTemplate{}
	for rows.Next() {
		p, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *p)
	}
	return prompts, rows.Err()
}

// GetPrompt returns the template for persona
func (s *Store) GetPrompt(ctx context.Context, persona string) (*types.PromptTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+promptColumns+` FROM prompts WHERE persona = ?`, persona)
	p, err := scanPrompt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// ActivePrompts maps persona to template text for every active template
func (s *Store) ActivePrompts(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT persona, template FROM prompts WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to load active prompts: %w", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var persona, template string
		if err := rows.Scan(&persona, &template); err != nil {
			return nil, err
		}
		out[persona] = template
	}
	return out, rows.Err()
}

// UpsertPrompt creates or replaces a template's text. An empty description
// keeps the stored one. New templates start active.
func (s *Store) UpsertPrompt(ctx context.Context, persona, template, description string) (*types.PromptTemplate, error) {
	persona = strings.ToLower(strings.TrimSpace(persona))
	if persona == "" || strings.TrimSpace(template) == "" {
		return nil, fmt.Errorf("persona and template are required")
	}

	s.mu.Lock()
	now := formatTime(s.clock())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prompts (persona, template, description, active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
		ON CONFLICT(persona) DO UPDATE SET
			template = excluded.template,
			description = CASE WHEN excluded.description = '' THEN prompts.description ELSE excluded.description END,
			updated_at = excluded.updated_at
	`, persona, template, description, now, now)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to save prompt %s: %w", persona, err)
	}

	return s.GetPrompt(ctx, persona)
}

// TogglePrompt flips the active flag
func (s *Store) TogglePrompt(ctx context.Context, persona string) (*types.PromptTemplate, error) {
	s.mu.Lock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE prompts SET active = 1 - active, updated_at = ? WHERE persona = ?
	`, formatTime(s.clock()), persona)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to toggle prompt %s: %w", persona, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetPrompt(ctx, persona)
}

// DeletePrompt removes a template
func (s *Store) DeletePrompt(ctx context.Context, persona string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM prompts WHERE persona = ?`, persona)
	if err != nil {
		return fmt.Errorf("failed to delete prompt %s: %w", persona, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPrompt(row scanner) (*types.PromptTemplate, error) {
	var (
		p                    types.PromptTemplate
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.Persona, &p.Text, &p.Description, &p.Active, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

// ListPersonaSettings returns every setting ordered by key
func (s *Store) ListPersonaSettings(ctx context.Context) ([]types.PersonaSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_key, setting_value, description, updated_at
		FROM persona_settings ORDER BY setting_key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list persona settings: %w", err)
	}
	defer rows.Close()

	settings := []types.PersonaSetting{}
	for rows.Next() {
		var (
			ps        types.PersonaSetting
			updatedAt string
		)
		if err := rows.Scan(&ps.Key, &ps.Value, &ps.Description, &updatedAt); err != nil {
			return nil, err
		}
		ps.UpdatedAt = parseTime(updatedAt)
		settings = append(settings, ps)
	}
	return settings, rows.Err()
}

// PersonaSettings returns the settings as placeholder values
func (s *Store) PersonaSettings(ctx context.Context) (map[string]string, error) {
	list, err := s.ListPersonaSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(list))
	for _, ps := range list {
		out[ps.Key] = ps.Value
	}
	return out, nil
}

// UpdatePersonaSetting changes an existing setting. Unknown keys are rejected.
func (s *Store) UpdatePersonaSetting(ctx context.Context, key, value string) (*types.PersonaSetting, error) {
	s.mu.Lock()
	now := s.clock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE persona_settings SET setting_value = ?, updated_at = ? WHERE setting_key = ?
	`, value, formatTime(now), key)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to update persona setting %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	var ps types.PersonaSetting
	var updatedAt string
	err = s.db.QueryRowContext(ctx, `
		SELECT setting_key, setting_value, description, updated_at FROM persona_settings WHERE setting_key = ?
	`, key).Scan(&ps.Key, &ps.Value, &ps.Description, &updatedAt)
	if err != nil {
		return nil, err
	}
	ps.UpdatedAt = parseTime(updatedAt)
	return &ps, nil
}
