// Package extraction pulls durable facts and speech patterns out of user
// messages and stores them deduplicated by exact text, with embeddings for
// later similarity retrieval.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"astra-agent/internal/llm"
	"astra-agent/internal/store"
)

// MinValueScore is the storage gate: results scoring below it are discarded.
const MinValueScore = 0.3

// Result is the structured output of an extraction call.
type Result struct {
	Text       string   `json:"text"`
	ValueScore float64  `json:"value_score"`
	Topics     []string `json:"topics"`
	Reason     string   `json:"reason"`
}

const knowledgeInstructions = "You are an AI that extracts useful knowledge from user interactions. " +
	"Before extracting knowledge, check if the message contains any valuable personal information, preferences, or facts about the user. " +
	"Assign a value score (0-1) based on how meaningful the extracted knowledge is:\n" +
	"- 0.0 -> No valuable knowledge (greetings, generic phrases)\n" +
	"- 0.5 -> Somewhat useful (general interests, common topics)\n" +
	"- 1.0 -> Very useful (specific preferences, unique facts about the user)\n" +
	"Report the extracted knowledge as 'text', the score as 'value_score', related topics as 'topics' and a short 'reason'."

const slangInstructions = "You are an AI that extracts slang and informal language from user interactions. " +
	"Your task is to identify unique or personalized slang phrases or informal expressions that the user uses, " +
	"while filtering out any swear words. Evaluate the extracted slang on a scale from 0 to 1 based on its uniqueness and relevance. " +
	"Report the expression as 'text', the score as 'value_score', related topics as 'topics' and a short 'reason'."

// Service runs score-gated extraction against one namespace (knowledge or
// slang); both namespaces share the identical shape.
type Service struct {
	kind         store.ItemKind
	instructions string
	store        *store.Store
	client       llm.Client
	embedder     llm.Embedder
	log          *zap.Logger
}

func NewKnowledge(st *store.Store, client llm.Client, embedder llm.Embedder, log *zap.Logger) *Service {
	return &Service{kind: store.KindKnowledge, instructions: knowledgeInstructions,
		store: st, client: client, embedder: embedder, log: log}
}

func NewSlang(st *store.Store, client llm.Client, embedder llm.Embedder, log *zap.Logger) *Service {
	return &Service{kind: store.KindSlang, instructions: slangInstructions,
		store: st, client: client, embedder: embedder, log: log}
}

func (s *Service) Kind() store.ItemKind { return s.kind }

// Extract analyses the message and persists the result when it clears the
// value gate. Returns (nil, nil) when nothing valuable was found.
func (s *Service) Extract(ctx context.Context, userID, message string) (*store.Item, error) {
	var res Result
	if err := llm.GenerateObject(ctx, s.client, s.instructions, message, &res); err != nil {
		return nil, err
	}
	if res.Text == "" || res.ValueScore < MinValueScore {
		s.log.Info("extraction below value gate, nothing stored",
			zap.String("kind", string(s.kind)), zap.String("user_id", userID),
			zap.Float64("value_score", res.ValueScore))
		return nil, nil
	}
	return s.storeResult(ctx, userID, res)
}

func (s *Service) storeResult(ctx context.Context, userID string, res Result) (*store.Item, error) {
	existing, err := s.store.GetItemByText(ctx, s.kind, userID, res.Text)
	if err == nil {
		if err := s.store.TouchItem(ctx, s.kind, existing.ID, res.ValueScore, res.Topics, res.Reason); err != nil {
			return nil, err
		}
		return s.reload(ctx, userID, res.Text)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	item := store.Item{
		ID:           uuid.NewString(),
		UserID:       userID,
		Text:         res.Text,
		ValueScore:   res.ValueScore,
		Topics:       res.Topics,
		Reason:       res.Reason,
		MentionCount: 1,
		LastUpdated:  time.Now().UTC(),
	}
	// An embedding failure is not fatal: the item is still stored and can
	// be re-embedded later, it just won't rank in similarity search.
	if emb, err := s.embedder.Embed(ctx, res.Text); err != nil {
		s.log.Warn("embedding generation failed, storing without vector",
			zap.String("kind", string(s.kind)), zap.Error(err))
	} else {
		item.Embedding = emb
	}

	if err := s.store.InsertItem(ctx, s.kind, item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Service) reload(ctx context.Context, userID, text string) (*store.Item, error) {
	item, err := s.store.GetItemByText(ctx, s.kind, userID, text)
	if err != nil {
		return nil, fmt.Errorf("reload touched item: %w", err)
	}
	return &item, nil
}

// RetrieveSimilar embeds the query and returns up to topK ranked items.
// A user with no stored items yields store.ErrNoItems.
func (s *Service) RetrieveSimilar(ctx context.Context, userID, query string, topK int) ([]store.ScoredItem, error) {
	n, err := s.store.CountItems(ctx, s.kind, userID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrNoItems
	}
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.store.SearchSimilar(ctx, s.kind, userID, emb, topK)
}
