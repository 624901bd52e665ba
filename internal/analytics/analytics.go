package analytics

import (
	"encoding/json"
	"fmt"
	"time"

	"astra-agent/internal/storage"
)

// DailyStats aggregates interaction events for one calendar day.
type DailyStats struct {
	Date             string               `json:"date"`
	TotalMessages    int                  `json:"total_messages"`
	UniqueUsers      int                  `json:"unique_users"`
	PromptTokens     int                  `json:"prompt_tokens"`
	CompletionTokens int                  `json:"completion_tokens"`
	CreditsCharged   int                  `json:"credits_charged"`
	UserStats        map[string]UserStats `json:"user_stats"`
}

type UserStats struct {
	UserID         string `json:"user_id"`
	Messages       int    `json:"messages"`
	CreditsCharged int    `json:"credits_charged"`
}

// AnalyzeDailyLogs reduces the event log to per-day usage figures.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		UserStats: make(map[string]UserStats),
	}
	uniqueUsers := make(map[string]bool)

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		if event.UserMessage == "" {
			continue
		}
		stats.TotalMessages++
		stats.PromptTokens += event.PromptTokens
		stats.CompletionTokens += event.CompletionTokens
		stats.CreditsCharged += event.CreditsCharged
		uniqueUsers[event.UserID] = true

		userStat := stats.UserStats[event.UserID]
		userStat.UserID = event.UserID
		userStat.Messages++
		userStat.CreditsCharged += event.CreditsCharged
		stats.UserStats[event.UserID] = userStat
	}

	stats.UniqueUsers = len(uniqueUsers)
	return stats
}

// ReportSummary renders a plain-text report for the admin channel.
func (ds *DailyStats) ReportSummary() string {
	summary := fmt.Sprintf(`Astra usage for %s:

Overall activity:
- Messages: %d
- Unique users: %d
- Prompt tokens: %d
- Completion tokens: %d
- Credits charged: %d

`, ds.Date, ds.TotalMessages, ds.UniqueUsers, ds.PromptTokens, ds.CompletionTokens, ds.CreditsCharged)

	summary += fmt.Sprintf("Per-user activity (%d users):\n", len(ds.UserStats))
	for userID, userStat := range ds.UserStats {
		summary += fmt.Sprintf("- User %s: %d messages, %d credits\n", userID, userStat.Messages, userStat.CreditsCharged)
	}
	return summary
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
