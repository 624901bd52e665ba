package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ItemKind selects the extraction namespace. Knowledge and slang follow the
// identical storage shape against separate tables.
type ItemKind string

const (
	KindKnowledge ItemKind = "knowledge"
	KindSlang     ItemKind = "slang"
)

func (k ItemKind) table() string {
	if k == KindSlang {
		return "user_slang"
	}
	return "user_knowledge"
}

// Item is a deduplicated extraction record keyed by (user_id, exact text).
type Item struct {
	ID           string
	UserID       string
	Text         string
	Embedding    []float32
	ValueScore   float64
	Topics       []string
	Reason       string
	MentionCount int
	LastUpdated  time.Time
}

// ScoredItem is an item ranked by similarity to a query embedding.
type ScoredItem struct {
	Item
	Similarity float64
}

// GetItemByText looks up the record with the exact same text for the user.
func (s *Store) GetItemByText(ctx context.Context, kind ItemKind, userID, text string) (Item, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT id, user_id, text, embedding, value_score, topics, reason, mention_count, last_updated
			FROM %s WHERE user_id = ? AND text = ?`, kind.table()),
		userID, text)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item by text: %w", err)
	}
	return item, nil
}

func (s *Store) InsertItem(ctx context.Context, kind ItemKind, item Item) error {
	topics, err := json.Marshal(item.Topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	var embedding interface{}
	if item.Embedding != nil {
		raw, err := json.Marshal(item.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		embedding = string(raw)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s
			(id, user_id, text, embedding, value_score, topics, reason, mention_count, last_updated)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, kind.table()),
		item.ID, item.UserID, item.Text, embedding, item.ValueScore,
		string(topics), item.Reason, item.MentionCount, item.LastUpdated.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// TouchItem refreshes an existing record on a repeated mention: topics,
// score, reason and timestamp are overwritten, mention_count increments.
func (s *Store) TouchItem(ctx context.Context, kind ItemKind, id string, valueScore float64, topics []string, reason string) error {
	raw, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET value_score = ?, topics = ?, reason = ?,
			mention_count = mention_count + 1, last_updated = ? WHERE id = ?`, kind.table()),
		valueScore, string(raw), reason, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("touch item: %w", err)
	}
	return nil
}

// CountItems returns the number of records stored for the user.
func (s *Store) CountItems(ctx context.Context, kind ItemKind, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE user_id = ?`, kind.table()), userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (Item, error) {
	var item Item
	var embedding, reason sql.NullString
	var topics, updated string
	if err := row.Scan(&item.ID, &item.UserID, &item.Text, &embedding, &item.ValueScore,
		&topics, &reason, &item.MentionCount, &updated); err != nil {
		return Item{}, err
	}
	item.Reason = reason.String
	if ts, err := time.Parse(time.RFC3339Nano, updated); err == nil {
		item.LastUpdated = ts
	}
	if err := json.Unmarshal([]byte(topics), &item.Topics); err != nil {
		return Item{}, fmt.Errorf("decode topics: %w", err)
	}
	if embedding.Valid && embedding.String != "" {
		if err := json.Unmarshal([]byte(embedding.String), &item.Embedding); err != nil {
			return Item{}, fmt.Errorf("decode embedding: %w", err)
		}
	}
	return item, nil
}
