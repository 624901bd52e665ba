package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"astra-agent/internal/billing"
	"astra-agent/internal/config"
	"astra-agent/internal/extraction"
	"astra-agent/internal/history"
	"astra-agent/internal/llm"
	"astra-agent/internal/orchestrator"
	"astra-agent/internal/scheduler"
	"astra-agent/internal/storage"
	"astra-agent/internal/store"
	"astra-agent/internal/telegram"
	"astra-agent/internal/traits"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapConfig := zap.NewProductionConfig()
	logger, err := zapConfig.Build()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(cfg.DatabasePath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer func() { _ = st.Close() }()

	client := llm.NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.EmbeddingModel)

	mbtiSvc := traits.NewMBTI(st, client, logger)
	oceanSvc := traits.NewOcean(st, client, logger)
	knowledgeSvc := extraction.NewKnowledge(st, client, client, logger)
	slangSvc := extraction.NewSlang(st, client, client, logger)

	histMgr := history.NewManager(st, client, cfg.CompactionThreshold, logger)
	histMgr.RegisterCatchUp("knowledge", func(ctx context.Context, userID, blob string) error {
		_, err := knowledgeSvc.Extract(ctx, userID, blob)
		return err
	})
	histMgr.RegisterCatchUp("slang", func(ctx context.Context, userID, blob string) error {
		_, err := slangSvc.Extract(ctx, userID, blob)
		return err
	})
	histMgr.RegisterCatchUp("mbti", func(ctx context.Context, userID, blob string) error {
		_, err := mbtiSvc.AnalyzeMessage(ctx, userID, blob)
		return err
	})
	histMgr.RegisterCatchUp("ocean", func(ctx context.Context, userID, blob string) error {
		_, err := oceanSvc.AnalyzeMessage(ctx, userID, blob)
		return err
	})

	ledger := billing.NewLedger(st, logger)

	orch := orchestrator.New(mbtiSvc, oceanSvc, knowledgeSvc, slangSvc,
		histMgr, ledger, st, client, cfg.OpenAIModel, logger)

	var recorder storage.Recorder
	if cfg.AuditLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.AuditLogPath)
		if err != nil {
			logger.Warn("failed to init file recorder", zap.Error(err))
		} else {
			recorder = fr
		}
	}

	var moderator llm.Moderator
	if cfg.ModerationEnabled {
		moderator = client
	}

	bot, err := telegram.New(cfg.TelegramBotToken, orch, st, ledger,
		moderator, recorder, cfg.AdminUserID, cfg.WelcomeCredits, logger)
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	sched := scheduler.New(logger)
	sched.SetReportFunction(bot.DailyReport)
	if err := sched.Start(); err != nil {
		logger.Warn("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	bot.Start(context.Background())
}
