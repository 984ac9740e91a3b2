package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/p-blackswan/jetstream/internal/analysis"
	"github.com/p-blackswan/jetstream/internal/api"
	"github.com/p-blackswan/jetstream/internal/blob"
	"github.com/p-blackswan/jetstream/internal/config"
	"github.com/p-blackswan/jetstream/internal/health"
	"github.com/p-blackswan/jetstream/internal/llm"
	"github.com/p-blackswan/jetstream/internal/metrics"
	"github.com/p-blackswan/jetstream/internal/orchestrator"
	"github.com/p-blackswan/jetstream/internal/project"
)

func main() {
	// Setup structured logging
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
		Str("model_provider", cfg.ModelProvider).
		Str("model", cfg.ModelName).
		Msg("starting jetstream orchestrator")

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

	prompts, err := llm.DefaultPrompts()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load prompts")
	}

	gen, err := llm.Open(ctx, llm.Options{
		Provider:        cfg.ModelProvider,
		Model:           cfg.ModelName,
		GCPProject:      cfg.GCPProjectID,
		GCPRegion:       cfg.GCPRegion,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
	}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize generative model")
	}
	logger.Info().Str("model", gen.ModelID()).Msg("generative model initialized")

	m := metrics.New()

	checker := health.NewChecker(logger)
	checker.Register("store", health.ErrorCheck(store.Ping))

	// Background analyzer
	tracker := analysis.NewTracker(store, cfg.KeyPrefix, m, logger)
	analyzer := analysis.NewAnalyzer(analysis.AnalyzerConfig{
		Tracker:   tracker,
		Generator: gen,
		Prompts:   prompts,
		StepDelay: cfg.AnalyzerStepDelay,
		Metrics:   m,
	}, logger)
	engine := analysis.NewEngine(analysis.EngineConfig{
		Workers:   cfg.AnalyzerWorkers,
		QueueSize: cfg.AnalyzerQueueSize,
		Timeout:   cfg.AnalyzerTimeout,
	}, analyzer, m, logger)
	engine.Start(ctx)

	svc := orchestrator.New(orchestrator.Config{
		Projects:  project.NewRepository(store, cfg.KeyPrefix, logger),
		Engine:    engine,
		Generator: gen,
		Prompts:   prompts,
		Metrics:   m,
	}, logger)

	server := api.NewOrchestratorServer(api.ServerConfig{
		ListenAddr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		AllowedOrigin: cfg.AllowedOrigin,
	}, svc, checker, m, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
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

	// Stop accepting work, then let queued analyses record their outcome.
	cancel()
	engine.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(15 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	if err := store.Close(); err != nil {
		logger.Error().Err(err).Msg("blob store close error")
	}

	logger.Info().Msg("jetstream orchestrator stopped")
}
