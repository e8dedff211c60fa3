package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"brandaion/internal/config"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
	"brandaion/internal/infra/api"
	pg "brandaion/internal/infra/db/postgres"
	"brandaion/internal/infra/logging"
	"brandaion/internal/infra/metrics"
	red "brandaion/internal/infra/redis"
	"brandaion/internal/infra/sched"
	"brandaion/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode: console logs, noop AI when keys are missing")
	flag.Parse()

	cfg, err := config.Load(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("brandaion stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	logger.Info().Str("version", version).Bool("dev", cfg.Runtime.Dev).Msg("starting brandaion")

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	go reportPoolStats(ctx, pool)

	// ---- Redis (optional) ----
	var (
		locker  adapter.Locker
		limiter api.Limiter
	)
	if cfg.Redis.URL != "" {
		rc, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
		limiter = red.NewRateLimiter(rc)
	} else {
		logger.Warn().Msg("redis.url not set: batch lock and rate limiting disabled")
	}

	// ---- Repositories ----
	questionWork := pg.NewQuestionWorkRepo(pool)
	answerWork := pg.NewAnswerWorkRepo(pool)
	questionRepo := pg.NewQuestionRepo(pool)
	resultRepo := pg.NewTestResultRepo(pool)
	scheduleRepo := pg.NewScheduleRepo(pool)
	txManager := pg.NewTxManager(pool)

	// ---- AI ----
	providers := cfg.ProviderConfigs()
	registry := model.NewProviderRegistry(providers...)
	logger.Info().Strs("providers", registry.Keys()).Strs("default_providers", cfg.Tester.DefaultProviders).Msg("provider registry loaded")
	completer, err := buildCompleter(ctx, cfg, providers, logger)
	if err != nil {
		return err
	}
	runner, err := buildRunner(cfg, logger)
	if err != nil {
		return err
	}

	// ---- Use cases ----
	genUC := usecase.NewGenerationUseCase(questionWork, answerWork, runner, locker, usecase.GenerationOptions{
		QuestionAssistantID: cfg.AI.Assistant.QuestionAssistantID,
		AnswerAssistantID:   cfg.AI.Assistant.AnswerAssistantID,
		QuestionsRetry:      cfg.QuestionsRetryOnFailure(),
		AnswersRetry:        cfg.AnswersRetryOnFailure(),
		LockTTL:             cfg.Redis.LockTTL,
		ClaimTTL:            cfg.Generation.ClaimTTL,
	}, logger)
	perfUC := usecase.NewPerformanceUseCase(registry, completer, questionRepo, resultRepo,
		cfg.Tester.DefaultProviders, cfg.Tester.RequestTimeout, logger)
	schedUC := usecase.NewScheduleUseCase(scheduleRepo, questionRepo, perfUC, txManager, logger)

	// ---- HTTP ----
	srv := api.NewServer(genUC, perfUC, schedUC, api.NewTokenVerifier(cfg.Auth.JWTSecret), limiter, cfg.HTTP, logger)
	if cfg.Auth.JWTSecret == "" {
		logger.Warn().Msg("auth.jwt_secret not set: requests are not authenticated")
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// ---- Workers ----
	if cfg.Scheduler.Enabled {
		genWorker := sched.NewGenerationWorker(cfg.Scheduler.GenerationInterval, genUC, logger)
		schedWorker := sched.NewScheduleWorker(cfg.Scheduler.ScheduleInterval, schedUC, logger)
		go func() { _ = genWorker.Run(ctx) }()
		go func() { _ = schedWorker.Run(ctx) }()
	}

	// ---- Graceful shutdown ----
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func reportPoolStats(ctx context.Context, pool *pgxpool.Pool) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetDBPoolStats(pool.Stat())
		}
	}
}
