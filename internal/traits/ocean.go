package traits

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"astra-agent/internal/llm"
	"astra-agent/internal/store"
)

type OceanSample struct {
	Openness          float64 `json:"openness"`
	Conscientiousness float64 `json:"conscientiousness"`
	Extraversion      float64 `json:"extraversion"`
	Agreeableness     float64 `json:"agreeableness"`
	Neuroticism       float64 `json:"neuroticism"`
}

const oceanInstructions = `You are an expert in personality analysis. You will be given a message and you will need to analyze the message and return an OCEAN personality analysis of the message.

The OCEAN personality analysis should have 5 dimensions:
- Openness
- Conscientiousness
- Extraversion
- Agreeableness
- Neuroticism

Each dimension should have a score between 0 and 1, with 1 being the highest score.`

type OceanService struct {
	store  *store.Store
	client llm.Client
	log    *zap.Logger
}

func NewOcean(st *store.Store, client llm.Client, log *zap.Logger) *OceanService {
	return &OceanService{store: st, client: client, log: log}
}

func (s *OceanService) AnalyzeMessage(ctx context.Context, userID, message string) (*OceanSample, error) {
	var sample OceanSample
	if err := llm.GenerateObject(ctx, s.client, oceanInstructions, message, &sample); err != nil {
		return nil, err
	}
	if err := checkScores(sample.Openness, sample.Conscientiousness, sample.Extraversion,
		sample.Agreeableness, sample.Neuroticism); err != nil {
		return nil, err
	}

	rec, err := s.store.GetOcean(ctx, userID)
	if err != nil {
		return nil, err
	}
	n := rec.ResponseCount
	rec.Openness = rollingAvg(rec.Openness, n, sample.Openness)
	rec.Conscientiousness = rollingAvg(rec.Conscientiousness, n, sample.Conscientiousness)
	rec.Extraversion = rollingAvg(rec.Extraversion, n, sample.Extraversion)
	rec.Agreeableness = rollingAvg(rec.Agreeableness, n, sample.Agreeableness)
	rec.Neuroticism = rollingAvg(rec.Neuroticism, n, sample.Neuroticism)
	rec.ResponseCount = n + 1

	if err := s.store.UpsertOcean(ctx, userID, rec); err != nil {
		return nil, err
	}
	s.log.Info("updated OCEAN rolling average",
		zap.String("user_id", userID), zap.Int("response_count", rec.ResponseCount))
	return &sample, nil
}

func (s *OceanService) Current(ctx context.Context, userID string) (store.OceanRecord, error) {
	return s.store.GetOcean(ctx, userID)
}

func highLow(v float64) string {
	if v >= 0.5 {
		return "High"
	}
	return "Low"
}

// Labels maps each dimension to High or Low against the 0.5 threshold.
func Labels(r store.OceanRecord) map[string]string {
	return map[string]string{
		"openness":          highLow(r.Openness),
		"conscientiousness": highLow(r.Conscientiousness),
		"extraversion":      highLow(r.Extraversion),
		"agreeableness":     highLow(r.Agreeableness),
		"neuroticism":       highLow(r.Neuroticism),
	}
}

// LabelSummary renders the labels in fixed dimension order for prompts.
func LabelSummary(r store.OceanRecord) string {
	return fmt.Sprintf("openness: %s, conscientiousness: %s, extraversion: %s, agreeableness: %s, neuroticism: %s",
		highLow(r.Openness), highLow(r.Conscientiousness), highLow(r.Extraversion),
		highLow(r.Agreeableness), highLow(r.Neuroticism))
}
