package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// MBTIRecord is the persisted 4-axis trait vector. Each dimension is a
// rolling average in [0,1]; ResponseCount is the number of samples applied.
type MBTIRecord struct {
	ExtraversionIntroversion float64
	SensingIntuition         float64
	ThinkingFeeling          float64
	JudgingPerceiving        float64
	ResponseCount            int
}

// OceanRecord is the persisted 5-axis trait vector.
type OceanRecord struct {
	Openness          float64
	Conscientiousness float64
	Extraversion      float64
	Agreeableness     float64
	Neuroticism       float64
	ResponseCount     int
}

// GetMBTI returns the stored vector, or the zero default when the user has
// no row yet. Vectors are created lazily on first upsert.
func (s *Store) GetMBTI(ctx context.Context, userID string) (MBTIRecord, error) {
	var r MBTIRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT extraversion_introversion, sensing_intuition, thinking_feeling,
		        judging_perceiving, response_count
		 FROM mbti_profiles WHERE user_id = ?`, userID).
		Scan(&r.ExtraversionIntroversion, &r.SensingIntuition, &r.ThinkingFeeling,
			&r.JudgingPerceiving, &r.ResponseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return MBTIRecord{}, nil
	}
	if err != nil {
		return MBTIRecord{}, fmt.Errorf("get mbti: %w", err)
	}
	return r, nil
}

func (s *Store) UpsertMBTI(ctx context.Context, userID string, r MBTIRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mbti_profiles
		 (user_id, extraversion_introversion, sensing_intuition, thinking_feeling, judging_perceiving, response_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   extraversion_introversion = excluded.extraversion_introversion,
		   sensing_intuition = excluded.sensing_intuition,
		   thinking_feeling = excluded.thinking_feeling,
		   judging_perceiving = excluded.judging_perceiving,
		   response_count = excluded.response_count`,
		userID, r.ExtraversionIntroversion, r.SensingIntuition, r.ThinkingFeeling,
		r.JudgingPerceiving, r.ResponseCount)
	if err != nil {
		return fmt.Errorf("upsert mbti: %w", err)
	}
	return nil
}

func (s *Store) GetOcean(ctx context.Context, userID string) (OceanRecord, error) {
	var r OceanRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT openness, conscientiousness, extraversion, agreeableness, neuroticism, response_count
		 FROM ocean_profiles WHERE user_id = ?`, userID).
		Scan(&r.Openness, &r.Conscientiousness, &r.Extraversion, &r.Agreeableness,
			&r.Neuroticism, &r.ResponseCount)
	if errors.Is(err, sql.ErrNoRows) {
		return OceanRecord{}, nil
	}
	if err != nil {
		return OceanRecord{}, fmt.Errorf("get ocean: %w", err)
	}
	return r, nil
}

func (s *Store) UpsertOcean(ctx context.Context, userID string, r OceanRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ocean_profiles
		 (user_id, openness, conscientiousness, extraversion, agreeableness, neuroticism, response_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   openness = excluded.openness,
		   conscientiousness = excluded.conscientiousness,
		   extraversion = excluded.extraversion,
		   agreeableness = excluded.agreeableness,
		   neuroticism = excluded.neuroticism,
		   response_count = excluded.response_count`,
		userID, r.Openness, r.Conscientiousness, r.Extraversion, r.Agreeableness,
		r.Neuroticism, r.ResponseCount)
	if err != nil {
		return fmt.Errorf("upsert ocean: %w", err)
	}
	return nil
}
