package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.EnsureProfile(ctx, "u1", "Alice")
	require.NoError(t, err)
	require.True(t, created)

	created, err = s.EnsureProfile(ctx, "u1", "Other")
	require.NoError(t, err)
	require.False(t, created, "second ensure must not create a new row")

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Alice", p.Name, "existing name must survive a repeated ensure")
	require.Equal(t, 0, p.Credit)
}

func TestGetProfileNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetProfile(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUserName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetUserName(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.EnsureProfile(ctx, "u1", "")
	require.NoError(t, err)

	name, err := s.GetUserName(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "", name)

	require.NoError(t, s.UpdateUserName(ctx, "u1", "Bob"))
	name, err = s.GetUserName(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "Bob", name)
}

func TestCredit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetCredit(ctx, "u1")
	require.ErrorIs(t, err, ErrNotFound)

	// SetCredit creates the profile row when absent.
	require.NoError(t, s.SetCredit(ctx, "u1", 42))
	balance, err := s.GetCredit(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 42, balance)

	require.NoError(t, s.SetCredit(ctx, "u1", 7))
	balance, err = s.GetCredit(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 7, balance)
}

func TestImageURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureProfile(ctx, "u1", "Alice")
	require.NoError(t, err)
	require.NoError(t, s.UpdateImageURL(ctx, "u1", "https://example.com/a.png"))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a.png", p.ImageURL)
}

func TestSubscription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.EnsureProfile(ctx, "u1", "Alice")
	require.NoError(t, err)
	require.NoError(t, s.UpdateSubscription(ctx, "u1", "premium"))

	p, err := s.GetProfile(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "premium", p.Subscription)
}

func TestTraitsDefaultToZeroRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	m, err := s.GetMBTI(ctx, "nobody")
	require.NoError(t, err)
	require.Equal(t, MBTIRecord{}, m)

	o, err := s.GetOcean(ctx, "nobody")
	require.NoError(t, err)
	require.Equal(t, OceanRecord{}, o)
}

func TestTraitsUpsertRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := MBTIRecord{
		ExtraversionIntroversion: 0.25,
		SensingIntuition:         0.5,
		ThinkingFeeling:          0.75,
		JudgingPerceiving:        1,
		ResponseCount:            3,
	}
	require.NoError(t, s.UpsertMBTI(ctx, "u1", want))
	got, err := s.GetMBTI(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, want, got)

	want.ThinkingFeeling = 0.6
	want.ResponseCount = 4
	require.NoError(t, s.UpsertMBTI(ctx, "u1", want))
	got, err = s.GetMBTI(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestHistoryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, found, err := s.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.PutHistory(ctx, "u1", []string{"user: hi", "Astra: hello"}))
	history, found, err := s.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []string{"user: hi", "Astra: hello"}, history)

	require.NoError(t, s.PutHistory(ctx, "u1", []string{}))
	history, found, err = s.GetHistory(ctx, "u1")
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, history)
}

func TestItemInsertAndTouch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetItemByText(ctx, KindKnowledge, "u1", "likes jazz")
	require.ErrorIs(t, err, ErrNotFound)

	item := Item{
		ID:           "id-1",
		UserID:       "u1",
		Text:         "likes jazz",
		Embedding:    []float32{0.1, 0.2, 0.3},
		ValueScore:   0.8,
		Topics:       []string{"music"},
		Reason:       "stated preference",
		MentionCount: 1,
		LastUpdated:  time.Now().UTC(),
	}
	require.NoError(t, s.InsertItem(ctx, KindKnowledge, item))

	got, err := s.GetItemByText(ctx, KindKnowledge, "u1", "likes jazz")
	require.NoError(t, err)
	require.Equal(t, item.ID, got.ID)
	require.Equal(t, item.Embedding, got.Embedding)
	require.Equal(t, item.Topics, got.Topics)
	require.Equal(t, 1, got.MentionCount)

	require.NoError(t, s.TouchItem(ctx, KindKnowledge, item.ID, 0.9, []string{"music", "jazz"}, "mentioned again"))
	got, err = s.GetItemByText(ctx, KindKnowledge, "u1", "likes jazz")
	require.NoError(t, err)
	require.Equal(t, 2, got.MentionCount)
	require.Equal(t, 0.9, got.ValueScore)
	require.Equal(t, []string{"music", "jazz"}, got.Topics)

	n, err := s.CountItems(ctx, KindKnowledge, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestItemNamespacesAreSeparate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	item := Item{ID: "k-1", UserID: "u1", Text: "same text", ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC()}
	require.NoError(t, s.InsertItem(ctx, KindKnowledge, item))

	_, err := s.GetItemByText(ctx, KindSlang, "u1", "same text")
	require.ErrorIs(t, err, ErrNotFound)

	n, err := s.CountItems(ctx, KindSlang, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestSearchSimilarRanksByCosine(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	items := []Item{
		{ID: "a", UserID: "u1", Text: "orthogonal", Embedding: []float32{0, 1, 0}, ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC()},
		{ID: "b", UserID: "u1", Text: "aligned", Embedding: []float32{1, 0, 0}, ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC()},
		{ID: "c", UserID: "u1", Text: "close", Embedding: []float32{0.9, 0.1, 0}, ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC()},
	}
	for _, it := range items {
		require.NoError(t, s.InsertItem(ctx, KindKnowledge, it))
	}

	results, err := s.SearchSimilar(ctx, KindKnowledge, "u1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "aligned", results[0].Text)
	require.Equal(t, "close", results[1].Text)
	require.InDelta(t, 1.0, results[0].Similarity, 1e-9)
}

func TestSearchSimilarEmptyCorpus(t *testing.T) {
	s := newTestStore(t)
	_, err := s.SearchSimilar(context.Background(), KindKnowledge, "u1", []float32{1, 0}, 3)
	require.ErrorIs(t, err, ErrNoItems)
}

func TestSearchSimilarSkipsMismatchedVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertItem(ctx, KindKnowledge, Item{
		ID: "short", UserID: "u1", Text: "short vector", Embedding: []float32{1},
		ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC(),
	}))
	require.NoError(t, s.InsertItem(ctx, KindKnowledge, Item{
		ID: "ok", UserID: "u1", Text: "fits", Embedding: []float32{0, 1},
		ValueScore: 0.5, MentionCount: 1, LastUpdated: time.Now().UTC(),
	}))

	results, err := s.SearchSimilar(ctx, KindKnowledge, "u1", []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fits", results[0].Text)
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	require.InDelta(t, 1.0, sim, 1e-9)

	sim, err = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	require.InDelta(t, 0.0, sim, 1e-9)

	_, err = cosineSimilarity([]float32{1, 0}, []float32{1})
	require.Error(t, err)

	_, err = cosineSimilarity([]float32{0, 0}, []float32{1, 0})
	require.Error(t, err)
}
