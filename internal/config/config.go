package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminUserID      int64  `env:"ADMIN_USER"`

	// LLM settings
	OpenAIAPIKey   string `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL  string `env:"OPENAI_BASE_URL"`
	OpenAIModel    string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	EmbeddingModel string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-ada-002"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/astra.db"`
	AuditLogPath string `env:"AUDIT_LOG_PATH" envDefault:"logs/interactions.jsonl"`

	// Conversation
	CompactionThreshold int  `env:"COMPACTION_THRESHOLD" envDefault:"10"`
	WelcomeCredits      int  `env:"WELCOME_CREDITS" envDefault:"100"`
	ModerationEnabled   bool `env:"MODERATION_ENABLED" envDefault:"true"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
