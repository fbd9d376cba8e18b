package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// SessionRow is the stored representation of a completed session.
type SessionRow struct {
	SessionID   string          `json:"session_id"`
	Transcript  json.RawMessage `json:"transcript"`
	Summary     json.RawMessage `json:"summary"`
	Tier        string          `json:"tier"`
	Language    string          `json:"language,omitempty"`
	WordCount   int             `json:"word_count"`
	GeneratedAt time.Time       `json:"generated_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// UpsertSession stores a session result, replacing any prior row for the
// same session id (last-write-wins: a higher-tier rerun supersedes).
func (db *DB) UpsertSession(ctx context.Context, row *SessionRow) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO sessions (
			session_id, transcript, summary, tier, language, word_count, generated_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (session_id) DO UPDATE SET
			transcript   = EXCLUDED.transcript,
			summary      = EXCLUDED.summary,
			tier         = EXCLUDED.tier,
			language     = EXCLUDED.language,
			word_count   = EXCLUDED.word_count,
			generated_at = EXCLUDED.generated_at,
			updated_at   = now()
	`,
		row.SessionID, row.Transcript, row.Summary, row.Tier,
		row.Language, row.WordCount, row.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession returns the stored row for a session, or nil when absent.
func (db *DB) GetSession(ctx context.Context, sessionID string) (*SessionRow, error) {
	var row SessionRow
	err := db.Pool.QueryRow(ctx, `
		SELECT session_id, transcript, summary, tier, language, word_count, generated_at, updated_at
		FROM sessions
		WHERE session_id = $1
	`, sessionID).Scan(
		&row.SessionID, &row.Transcript, &row.Summary, &row.Tier,
		&row.Language, &row.WordCount, &row.GeneratedAt, &row.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &row, nil
}

// ListSessions returns recent sessions newest-first, for the history API.
func (db *DB) ListSessions(ctx context.Context, limit, offset int) ([]SessionRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT session_id, transcript, summary, tier, language, word_count, generated_at, updated_at
		FROM sessions
		ORDER BY generated_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var row SessionRow
		if err := rows.Scan(
			&row.SessionID, &row.Transcript, &row.Summary, &row.Tier,
			&row.Language, &row.WordCount, &row.GeneratedAt, &row.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteSession removes a stored session. Returns true when a row existed.
func (db *DB) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
