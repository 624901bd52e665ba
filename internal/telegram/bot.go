package telegram

import (
	"context"
	"errors"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"astra-agent/internal/analytics"
	"astra-agent/internal/billing"
	"astra-agent/internal/llm"
	"astra-agent/internal/orchestrator"
	"astra-agent/internal/storage"
	"astra-agent/internal/store"
)

type Bot struct {
	api            *tgbotapi.BotAPI
	s              sender
	orch           *orchestrator.Orchestrator
	store          *store.Store
	ledger         *billing.Ledger
	moderator      llm.Moderator
	recorder       storage.Recorder
	adminUserID    int64
	welcomeCredits int
	log            *zap.Logger
}

func New(
	botToken string,
	orch *orchestrator.Orchestrator,
	st *store.Store,
	ledger *billing.Ledger,
	moderator llm.Moderator,
	recorder storage.Recorder,
	adminUserID int64,
	welcomeCredits int,
	log *zap.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bot{
		api:            api,
		s:              botAPISender{api: api},
		orch:           orch,
		store:          st,
		ledger:         ledger,
		moderator:      moderator,
		recorder:       recorder,
		adminUserID:    adminUserID,
		welcomeCredits: welcomeCredits,
		log:            log,
	}, nil
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	for update := range updates {
		if update.Message != nil {
			b.handleIncomingMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := strconv.FormatInt(msg.From.ID, 10)

	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, userID)
		return
	case "balance":
		b.handleBalance(ctx, msg, userID)
		return
	}

	b.log.Info("incoming message",
		zap.String("user_id", userID), zap.String("username", msg.From.UserName))

	if b.moderator != nil {
		flagged, err := b.moderator.Moderate(ctx, msg.Text)
		if err != nil {
			b.log.Warn("moderation check failed", zap.String("user_id", userID), zap.Error(err))
		} else if flagged {
			b.sendMessage(msg.Chat.ID, "I can't engage with that message. Let's talk about something else.")
			return
		}
	}

	result, err := b.orch.LeadConversation(ctx, userID, msg.Text)
	if errors.Is(err, billing.ErrInsufficientCredits) {
		b.sendMessage(msg.Chat.ID, "You're out of credits. Top up your balance to keep chatting.")
		return
	}
	if err != nil {
		b.log.Error("conversation failed", zap.String("user_id", userID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		return
	}

	if b.recorder != nil {
		_ = b.recorder.AppendInteraction(storage.Event{
			Timestamp:         time.Now().UTC(),
			UserID:            userID,
			UserMessage:       msg.Text,
			AssistantResponse: result.Reply,
			PromptTokens:      result.PromptTokens,
			CompletionTokens:  result.CompletionTokens,
			CreditsCharged:    result.CreditsCharged,
		})
	}

	b.sendMessage(msg.Chat.ID, result.Reply)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, userID string) {
	created, err := b.store.EnsureProfile(ctx, userID, msg.From.FirstName)
	if err != nil {
		b.log.Error("failed to ensure profile", zap.String("user_id", userID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		return
	}
	if created && b.welcomeCredits > 0 {
		if err := b.ledger.Increment(ctx, userID, b.welcomeCredits); err != nil {
			b.log.Error("failed to grant welcome credits", zap.String("user_id", userID), zap.Error(err))
		}
	}
	b.sendMessage(msg.Chat.ID, "Hi, I'm Astra. Tell me something about yourself!")
}

func (b *Bot) handleBalance(ctx context.Context, msg *tgbotapi.Message, userID string) {
	balance, err := b.ledger.Balance(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		b.sendMessage(msg.Chat.ID, "No profile found. Send /start first.")
		return
	}
	if err != nil {
		b.log.Error("failed to read balance", zap.String("user_id", userID), zap.Error(err))
		b.sendMessage(msg.Chat.ID, "Sorry, something went wrong.")
		return
	}
	b.sendMessage(msg.Chat.ID, "Balance: "+strconv.Itoa(balance)+" credits")
}

// DailyReport sends yesterday-to-now usage numbers to the admin chat.
func (b *Bot) DailyReport(ctx context.Context) error {
	if b.recorder == nil || b.adminUserID == 0 {
		return nil
	}
	events, err := b.recorder.LoadInteractions()
	if err != nil {
		return err
	}
	stats := analytics.AnalyzeDailyLogs(events, time.Now().UTC())
	b.sendMessage(b.adminUserID, stats.ReportSummary())
	return nil
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		b.log.Error("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}
