// Package history keeps a bounded per-user conversation log. Once the log
// reaches the compaction threshold it is replaced by a single summary entry,
// after a catch-up analysis pass over the full transcript.
package history

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"astra-agent/internal/llm"
	"astra-agent/internal/store"
)

// DefaultCompactionThreshold is the history length at which the coordinator
// triggers compaction.
const DefaultCompactionThreshold = 10

const summarizerInstructions = "You are an AI that summarizes a conversation. " +
	"Read the conversation below and provide a concise summary that captures the key points. " +
	"Keep it brief and to the point."

// CatchUpTask re-runs one analysis (trait update, extraction) over the full
// history blob during compaction. Tasks are independent: a failure in one
// never blocks the others.
type CatchUpTask struct {
	Name string
	Run  func(ctx context.Context, userID, blob string) error
}

type Manager struct {
	store     *store.Store
	client    llm.Client
	log       *zap.Logger
	threshold int
	catchUp   []CatchUpTask
}

func NewManager(st *store.Store, client llm.Client, threshold int, log *zap.Logger) *Manager {
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}
	return &Manager{store: st, client: client, log: log, threshold: threshold}
}

// RegisterCatchUp adds an analysis task to the compaction pass.
func (m *Manager) RegisterCatchUp(name string, run func(ctx context.Context, userID, blob string) error) {
	m.catchUp = append(m.catchUp, CatchUpTask{Name: name, Run: run})
}

func (m *Manager) Threshold() int { return m.threshold }

// GetOrCreate returns the user's history; when none exists an empty record
// is persisted and returned (create-on-read).
func (m *Manager) GetOrCreate(ctx context.Context, userID string) ([]string, error) {
	history, found, err := m.store.GetHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if found {
		return history, nil
	}
	m.log.Info("no conversation history found, creating new record", zap.String("user_id", userID))
	if err := m.store.PutHistory(ctx, userID, []string{}); err != nil {
		return nil, err
	}
	return []string{}, nil
}

// Append pushes "<role>: <message>" onto the history and persists the full
// sequence, returning it.
func (m *Manager) Append(ctx context.Context, userID, role, message string) ([]string, error) {
	history, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	history = append(history, fmt.Sprintf("%s: %s", role, message))
	if err := m.store.PutHistory(ctx, userID, history); err != nil {
		return nil, err
	}
	return history, nil
}

// Clear resets the history to an empty sequence.
func (m *Manager) Clear(ctx context.Context, userID string) error {
	return m.store.PutHistory(ctx, userID, []string{})
}

// Compact runs the catch-up analysis pipeline over the full transcript,
// summarizes it, and atomically replaces the history with a single
// "Summary: ..." entry. If summarization fails the history is left as-is;
// catch-up side effects that already persisted stand on their own.
func (m *Manager) Compact(ctx context.Context, userID string) error {
	history, err := m.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	blob := strings.Join(history, "\n")

	var g errgroup.Group
	for _, task := range m.catchUp {
		task := task
		g.Go(func() error {
			if err := task.Run(ctx, userID, blob); err != nil {
				m.log.Warn("catch-up task failed during compaction",
					zap.String("task", task.Name), zap.String("user_id", userID), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	resp, err := m.client.Generate(ctx, []llm.Message{
		{Role: "system", Content: summarizerInstructions},
		{Role: "user", Content: "Conversation:\n" + blob},
	})
	if err != nil {
		return fmt.Errorf("summarize history: %w", err)
	}
	summary := strings.TrimSpace(resp.Content)

	if err := m.store.PutHistory(ctx, userID, []string{"Summary: " + summary}); err != nil {
		return err
	}
	m.log.Info("replaced conversation history with summary", zap.String("user_id", userID))
	return nil
}
