package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/jetstream/internal/analysis"
	"github.com/p-blackswan/jetstream/internal/api"
	"github.com/p-blackswan/jetstream/internal/blob"
	"github.com/p-blackswan/jetstream/internal/config"
	"github.com/p-blackswan/jetstream/internal/health"
	"github.com/p-blackswan/jetstream/internal/metrics"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("store_backend", cfg.StoreBackend).
		Msg("starting jetstream status checker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	store, err := blob.Open(ctx, blob.Options{
		Backend:    cfg.StoreBackend,
		Bucket:     cfg.BucketName,
		SQLitePath: cfg.StoreSQLitePath,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open blob store")
	}

	m := metrics.New()

	checker := health.NewChecker(logger)
	checker.Register("store", health.ErrorCheck(store.Ping))

	tracker := analysis.NewTracker(store, cfg.KeyPrefix, m, logger)

	server := api.NewStatusServer(api.ServerConfig{
		ListenAddr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		AllowedOrigin: cfg.StatusAllowedOrigin,
	}, tracker, checker, m, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("HTTP server error")
			select {
			case sigCh <- syscall.SIGTERM:
			default:
			}
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("blob store close error")
	}

	logger.Info().Msg("jetstream status checker stopped")
}
