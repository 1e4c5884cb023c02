package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"go-simpler.org/env"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	DBPath           string `env:"DB_PATH" default:"data/data.db"`
	VoteSalt         string `env:"VOTE_SALT" default:"dev_salt_change_me"`
	BotDebug         bool   `env:"BOT_DEBUG" default:"false"`
	LogLevel         string `env:"LOG_LEVEL" default:"info"`
	LogFormat        string `env:"LOG_FORMAT" default:"console"`
	MetricsAddr      string `env:"METRICS_ADDR"`

	SendMaxAttempts int           `env:"SEND_MAX_ATTEMPTS" default:"3"`
	SendBackoff     time.Duration `env:"SEND_BACKOFF" default:"500ms"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.TelegramBotToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if cfg.SendMaxAttempts < 1 {
		return fmt.Errorf("SEND_MAX_ATTEMPTS must be at least 1, got %d", cfg.SendMaxAttempts)
	}
	if cfg.SendBackoff <= 0 {
		return fmt.Errorf("SEND_BACKOFF must be positive, got %s", cfg.SendBackoff)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", cfg.LogFormat)
	}
	return nil
}
