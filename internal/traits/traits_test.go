package traits

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"astra-agent/internal/llm"
	"astra-agent/internal/store"
)

type fakeClient struct {
	responses []string
	err       error
	calls     int
}

func (f *fakeClient) Generate(ctx context.Context, messages []llm.Message) (llm.Response, error) {
	if f.err != nil {
		return llm.Response{}, f.err
	}
	content := f.responses[f.calls%len(f.responses)]
	f.calls++
	return llm.Response{Content: content}, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRollingAvg(t *testing.T) {
	// One prior sample at 0.4, new sample 0.6: mean must be exactly 0.5.
	require.Equal(t, 0.5, rollingAvg(0.4, 1, 0.6))
	// First sample replaces the zero default entirely.
	require.Equal(t, 0.9, rollingAvg(0, 0, 0.9))
}

func TestRollingAvgIsArithmeticMean(t *testing.T) {
	samples := []float64{0.1, 0.9, 0.5, 0.3, 0.7, 0.2}
	avg := 0.0
	sum := 0.0
	for i, s := range samples {
		avg = rollingAvg(avg, i, s)
		sum += s
	}
	require.InDelta(t, sum/float64(len(samples)), avg, 1e-12)
}

func TestCheckScores(t *testing.T) {
	require.NoError(t, checkScores(0, 0.5, 1))
	require.ErrorIs(t, checkScores(0.5, 1.2), llm.ErrMalformedOutput)
	require.ErrorIs(t, checkScores(-0.1), llm.ErrMalformedOutput)
}

func TestMBTIAnalyzeMessageFoldsSample(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{responses: []string{
		`{"extraversion_introversion": 0.4, "sensing_intuition": 0.2, "thinking_feeling": 0.6, "judging_perceiving": 0.8}`,
		`{"extraversion_introversion": 0.6, "sensing_intuition": 0.4, "thinking_feeling": 0.8, "judging_perceiving": 0.2}`,
	}}
	svc := NewMBTI(st, client, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AnalyzeMessage(ctx, "u1", "first message")
	require.NoError(t, err)

	rec, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, rec.ResponseCount)
	require.Equal(t, 0.4, rec.ExtraversionIntroversion)

	_, err = svc.AnalyzeMessage(ctx, "u1", "second message")
	require.NoError(t, err)

	rec, err = svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, rec.ResponseCount)
	require.InDelta(t, 0.5, rec.ExtraversionIntroversion, 1e-12)
	require.InDelta(t, 0.3, rec.SensingIntuition, 1e-12)
	require.InDelta(t, 0.7, rec.ThinkingFeeling, 1e-12)
	require.InDelta(t, 0.5, rec.JudgingPerceiving, 1e-12)
}

func TestMBTIAnalyzeMessageFailureMutatesNothing(t *testing.T) {
	st := newTestStore(t)
	svc := NewMBTI(st, &fakeClient{err: errors.New("inference down")}, zap.NewNop())
	ctx := context.Background()

	_, err := svc.AnalyzeMessage(ctx, "u1", "hello")
	require.Error(t, err)

	rec, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, store.MBTIRecord{}, rec)
}

func TestMBTIAnalyzeMessageRejectsOutOfRangeScores(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{responses: []string{
		`{"extraversion_introversion": 1.4, "sensing_intuition": 0.2, "thinking_feeling": 0.6, "judging_perceiving": 0.8}`,
	}}
	svc := NewMBTI(st, client, zap.NewNop())

	_, err := svc.AnalyzeMessage(context.Background(), "u1", "hello")
	require.ErrorIs(t, err, llm.ErrMalformedOutput)

	rec, err := svc.Current(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0, rec.ResponseCount)
}

func TestOceanAnalyzeMessageFoldsSample(t *testing.T) {
	st := newTestStore(t)
	client := &fakeClient{responses: []string{
		`{"openness": 0.8, "conscientiousness": 0.4, "extraversion": 0.6, "agreeableness": 0.2, "neuroticism": 0.5}`,
	}}
	svc := NewOcean(st, client, zap.NewNop())
	ctx := context.Background()

	sample, err := svc.AnalyzeMessage(ctx, "u1", "hello")
	require.NoError(t, err)
	require.Equal(t, 0.8, sample.Openness)

	rec, err := svc.Current(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, rec.ResponseCount)
	require.Equal(t, 0.8, rec.Openness)
	require.Equal(t, 0.5, rec.Neuroticism)
}

func TestTypeCode(t *testing.T) {
	require.Equal(t, "INFP", TypeCode(store.MBTIRecord{}))
	require.Equal(t, "ESTJ", TypeCode(store.MBTIRecord{
		ExtraversionIntroversion: 0.5,
		SensingIntuition:         0.9,
		ThinkingFeeling:          0.5,
		JudgingPerceiving:        0.7,
	}))
	require.Equal(t, "ENTP", TypeCode(store.MBTIRecord{
		ExtraversionIntroversion: 0.6,
		SensingIntuition:         0.4,
		ThinkingFeeling:          0.8,
		JudgingPerceiving:        0.1,
	}))
}

func TestStylePrompt(t *testing.T) {
	got := StylePrompt("IT")
	require.Contains(t, got, "calm, introspective, and soft-spoken")
	require.Contains(t, got, "logical, direct, and objective")
	require.Contains(t, got, "Your tone should be ")

	// Unknown letters contribute nothing.
	require.Equal(t, "Your tone should be .", StylePrompt("XY"))
}

func TestOceanLabels(t *testing.T) {
	rec := store.OceanRecord{Openness: 0.7, Conscientiousness: 0.5, Neuroticism: 0.2}
	labels := Labels(rec)
	require.Equal(t, "High", labels["openness"])
	require.Equal(t, "High", labels["conscientiousness"])
	require.Equal(t, "Low", labels["extraversion"])
	require.Equal(t, "Low", labels["neuroticism"])

	summary := LabelSummary(rec)
	require.Equal(t, "openness: High, conscientiousness: High, extraversion: Low, agreeableness: Low, neuroticism: Low", summary)
}
