package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// GetHistory returns the stored conversation history and whether a row
// exists for the user.
func (s *Store) GetHistory(ctx context.Context, userID string) ([]string, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT history FROM conversation_history WHERE user_id = ?`, userID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get history: %w", err)
	}
	var history []string
	if err := json.Unmarshal([]byte(raw), &history); err != nil {
		return nil, false, fmt.Errorf("decode history: %w", err)
	}
	return history, true, nil
}

// PutHistory replaces the full history for the user, creating the row when
// absent.
func (s *Store) PutHistory(ctx context.Context, userID string, history []string) error {
	if history == nil {
		history = []string{}
	}
	raw, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversation_history (user_id, history) VALUES (?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET history = excluded.history`,
		userID, string(raw))
	if err != nil {
		return fmt.Errorf("put history: %w", err)
	}
	return nil
}
