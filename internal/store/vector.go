package store

import (
	"context"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"
)

// SearchSimilar ranks the user's stored items by cosine similarity to the
// query embedding and returns up to topK results. An empty corpus yields
// ErrNoItems so callers can distinguish "nothing stored" from "no matches".
func (s *Store) SearchSimilar(ctx context.Context, kind ItemKind, userID string, query []float32, topK int) ([]ScoredItem, error) {
	if topK <= 0 {
		topK = 5
	}

	n, err := s.CountItems(ctx, kind, userID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrNoItems
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, user_id, text, embedding, value_score, topics, reason, mention_count, last_updated
			FROM %s WHERE user_id = ? AND embedding IS NOT NULL`, kind.table()),
		userID)
	if err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}
	defer rows.Close()

	var results []ScoredItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			s.log.Warn("skipping unreadable item row", zap.Error(err))
			continue
		}
		sim, err := cosineSimilarity(query, item.Embedding)
		if err != nil {
			continue
		}
		results = append(results, ScoredItem{Item: item, Similarity: sim})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search similar: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// cosineSimilarity returns a value in [-1,1]; 1 means identical direction.
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
