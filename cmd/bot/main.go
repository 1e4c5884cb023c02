package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/maaaruch/tg-poll-bot/internal/app"
	"github.com/maaaruch/tg-poll-bot/internal/config"
	"github.com/maaaruch/tg-poll-bot/internal/logging"
	"github.com/maaaruch/tg-poll-bot/internal/metrics"
	"github.com/maaaruch/tg-poll-bot/internal/platform/retry"
	"github.com/maaaruch/tg-poll-bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if dir := filepath.Dir(cfg.DBPath); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := storage.New(db)
	if err := store.InitSchema(); err != nil {
		logger.Fatal().Err(err).Msg("init database schema")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		logger.Fatal().Err(err).Msg("create telegram bot")
	}
	bot.Debug = cfg.BotDebug
	logger.Info().Str("username", bot.Self.UserName).Msg("bot started")

	reg := metrics.NewRegistry()
	pollMetrics := metrics.NewPollMetrics(reg)

	application := app.New(bot, store, cfg.VoteSalt, app.Options{
		Metrics: pollMetrics,
		Retry: retry.Policy{
			MaxAttempts:      cfg.SendMaxAttempts,
			InitialBackoff:   cfg.SendBackoff,
			RateLimitBackoff: 5 * time.Second,
		},
		Logger: &logger,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		application.Run(gctx)
		return nil
	})

	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("shutdown with error")
	}
	logger.Info().Msg("shutting down")
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return mux
}
