package traits

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"astra-agent/internal/llm"
	"astra-agent/internal/store"
)

// MBTISample is the structured result of a single-message analysis. Each
// dimension scores the user between the two poles of one MBTI axis.
type MBTISample struct {
	ExtraversionIntroversion float64 `json:"extraversion_introversion"`
	SensingIntuition         float64 `json:"sensing_intuition"`
	ThinkingFeeling          float64 `json:"thinking_feeling"`
	JudgingPerceiving        float64 `json:"judging_perceiving"`
}

const mbtiInstructions = "You are an expert in personality analysis. Analyze the user's message. " +
	"Scores should be between 0 and 1. For example, 0.5 is neutral. " +
	"With 0 being fully extroverted and 1 being fully introverted. " +
	"With 0 being fully sensing and 1 being fully intuitive. " +
	"With 0 being fully thinking and 1 being fully feeling. " +
	"With 0 being fully judging and 1 being fully perceiving."

type MBTIService struct {
	store  *store.Store
	client llm.Client
	log    *zap.Logger
}

func NewMBTI(st *store.Store, client llm.Client, log *zap.Logger) *MBTIService {
	return &MBTIService{store: st, client: client, log: log}
}

// AnalyzeMessage scores the message on all four axes and folds the sample
// into the stored rolling average. On inference failure nothing is mutated.
func (s *MBTIService) AnalyzeMessage(ctx context.Context, userID, message string) (*MBTISample, error) {
	var sample MBTISample
	if err := llm.GenerateObject(ctx, s.client, mbtiInstructions, message, &sample); err != nil {
		return nil, err
	}
	if err := checkScores(sample.ExtraversionIntroversion, sample.SensingIntuition,
		sample.ThinkingFeeling, sample.JudgingPerceiving); err != nil {
		return nil, err
	}

	rec, err := s.store.GetMBTI(ctx, userID)
	if err != nil {
		return nil, err
	}
	n := rec.ResponseCount
	rec.ExtraversionIntroversion = rollingAvg(rec.ExtraversionIntroversion, n, sample.ExtraversionIntroversion)
	rec.SensingIntuition = rollingAvg(rec.SensingIntuition, n, sample.SensingIntuition)
	rec.ThinkingFeeling = rollingAvg(rec.ThinkingFeeling, n, sample.ThinkingFeeling)
	rec.JudgingPerceiving = rollingAvg(rec.JudgingPerceiving, n, sample.JudgingPerceiving)
	rec.ResponseCount = n + 1

	if err := s.store.UpsertMBTI(ctx, userID, rec); err != nil {
		return nil, err
	}
	s.log.Info("updated MBTI rolling average",
		zap.String("user_id", userID), zap.Int("response_count", rec.ResponseCount))
	return &sample, nil
}

// Current returns the stored vector, zero-default when the user has none.
func (s *MBTIService) Current(ctx context.Context, userID string) (store.MBTIRecord, error) {
	return s.store.GetMBTI(ctx, userID)
}

// TypeCode converts the vector into the 4-letter type using a 0.5 threshold
// per axis, in fixed axis order.
func TypeCode(r store.MBTIRecord) string {
	var b strings.Builder
	if r.ExtraversionIntroversion >= 0.5 {
		b.WriteByte('E')
	} else {
		b.WriteByte('I')
	}
	if r.SensingIntuition >= 0.5 {
		b.WriteByte('S')
	} else {
		b.WriteByte('N')
	}
	if r.ThinkingFeeling >= 0.5 {
		b.WriteByte('T')
	} else {
		b.WriteByte('F')
	}
	if r.JudgingPerceiving >= 0.5 {
		b.WriteByte('J')
	} else {
		b.WriteByte('P')
	}
	return b.String()
}

var mbtiToneTraits = map[byte]string{
	'I': "calm, introspective, and soft-spoken",
	'E': "energetic, conversational, and expressive",
	'S': "practical, grounded in real-world examples",
	'N': "imaginative, big-picture, and metaphorical",
	'T': "logical, direct, and objective",
	'F': "empathetic, affirming, and warm",
	'J': "organized, clear, and structured",
	'P': "casual, open-ended, and exploratory",
}

// StylePrompt maps each type letter to a descriptive phrase and joins them
// into a tone directive for the conversational agent.
func StylePrompt(typeCode string) string {
	traits := make([]string, 0, len(typeCode))
	for i := 0; i < len(typeCode); i++ {
		if t, ok := mbtiToneTraits[typeCode[i]]; ok {
			traits = append(traits, t)
		}
	}
	return fmt.Sprintf("Your tone should be %s.", strings.Join(traits, "; "))
}
