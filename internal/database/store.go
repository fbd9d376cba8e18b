package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lifewrapped/lw-engine/internal/model"
)

// SaveSession persists a completed (transcript, summary) pair. Satisfies the
// session cache's Store interface.
func (db *DB) SaveSession(ctx context.Context, sessionID string, t *model.Transcript, s *model.SummaryResult) error {
	transcript, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}
	summary, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return db.UpsertSession(ctx, &SessionRow{
		SessionID:   sessionID,
		Transcript:  transcript,
		Summary:     summary,
		Tier:        string(s.Tier),
		Language:    t.Language,
		WordCount:   t.WordCount(),
		GeneratedAt: s.GeneratedAt,
	})
}

// LoadSession returns the stored pair for a session, or (nil, nil, nil) when
// the session has never been summarized.
func (db *DB) LoadSession(ctx context.Context, sessionID string) (*model.Transcript, *model.SummaryResult, error) {
	row, err := db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if row == nil {
		return nil, nil, nil
	}

	var t model.Transcript
	if err := json.Unmarshal(row.Transcript, &t); err != nil {
		return nil, nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	var s model.SummaryResult
	if err := json.Unmarshal(row.Summary, &s); err != nil {
		return nil, nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &t, &s, nil
}
