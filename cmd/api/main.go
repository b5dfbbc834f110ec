// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Api is the entry point for the Yomira HTTP API server.

The server provides a high-performance, secure backend for the Yomira
book-reading platform: upload and parse EPUB/FB2 books, extract and
illustrate vivid passages through an LLM pipeline, track per-user reading
progress, and gradually roll out a new parsing pipeline version behind a
canary controller and feature flag registry.

Usage:

	go run cmd/api/main.go [flags]

The flags/environment variables are:

	SERVER_PORT     Port to listen on (default: 8080)
	ENVIRONMENT     deployment environment (development, production)
	DATABASE_URL    Postgres connection string (required)
	REDIS_URL       Redis connection string (required)

Startup Sequence:

 1. Logger: Initialize structured JSON logging (slog).
 2. Config: Load and validate environment variables.
 3. Storage: Establish connections to Postgres and Redis.
 4. Migration: Run idempotent schema updates.
 5. Wiring: Inject dependencies into domain services/handlers.
 6. Server: Bind HTTP listener and handle graceful shutdown.

No business logic lives here. This file is strictly for orchestration and wiring.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/yomira/internal/adapters"
	"github.com/taibuivan/yomira/internal/api"
	"github.com/taibuivan/yomira/internal/canary"
	"github.com/taibuivan/yomira/internal/core/book"
	"github.com/taibuivan/yomira/internal/core/library"
	"github.com/taibuivan/yomira/internal/flags"
	"github.com/taibuivan/yomira/internal/ingest"
	"github.com/taibuivan/yomira/internal/parsing"
	"github.com/taibuivan/yomira/internal/pipeline"
	"github.com/taibuivan/yomira/internal/platform/cache"
	"github.com/taibuivan/yomira/internal/platform/config"
	"github.com/taibuivan/yomira/internal/platform/constants"
	"github.com/taibuivan/yomira/internal/platform/migration"
	pgstore "github.com/taibuivan/yomira/internal/platform/postgres"
	redisstore "github.com/taibuivan/yomira/internal/platform/redis"
	"github.com/taibuivan/yomira/internal/platform/sec"
	"github.com/taibuivan/yomira/internal/users/auth"
)

func main() {
	if err := run(); err != nil {
		slog.Error("application_startup_failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	// # 1. Logger
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries for trace correlation
	log := rawLog.With(slog.String("app", "yomira"))
	slog.SetDefault(log)

	log.Info("[Yomira] service_initializing")

	// # 2. Configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Adjust log level if debug mode is explicitly enabled
	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "yomira"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
	)

	// Root context for startup. A 30s deadline prevents the app from hanging.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// # 3. PostgreSQL
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer func() {
		log.Info("closing postgres pool")
		pool.Close()
	}()

	// # 4. Redis
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// # 5. Migrations
	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// # 6. Platform Services
	jwtSvc, err := sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	if err != nil {
		return fmt.Errorf("initialize jwt service: %w", err)
	}

	// # 7. Health Wiring
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// # 8. Auth Domain
	userRepo := auth.NewUserRepository(pool)
	sessionRepo := auth.NewSessionRepository(pool)
	blacklistRepo := auth.NewBlacklistRepository(rdb, log, cfg.BlacklistFailClosed)

	authSvc := auth.NewService(userRepo, sessionRepo, jwtSvc)
	authHdl := auth.NewHandler(authSvc, blacklistRepo)

	// # 9. Feature Flags (C3) & Canary Rollout (C4)
	flagStore := flags.NewPostgresStore(pool)
	flagRegistry := flags.NewRegistry(flagStore, log)
	if err := flagRegistry.Initialize(startupCtx); err != nil {
		return fmt.Errorf("initialize feature flags: %w", err)
	}
	flagsHdl := flags.NewHandler(flagRegistry)

	canaryStore := canary.NewPostgresStore(pool)
	canaryCtrl := canary.NewController(canaryStore, flagRegistry, log)
	canaryHdl := canary.NewHandler(canaryCtrl)

	// # 10. Book Persistence (C6)
	bookStore := book.NewBookStore(pool)
	chapterStore := book.NewChapterStore(pool)
	progressStore := book.NewProgressStore(pool)
	descriptionStore := book.NewDescriptionStore(pool)
	imageStore := book.NewImageStore(pool)
	sessionStore := book.NewSessionStore(pool)

	// # 11. Cache Layer (C1)
	bookCache := cache.New(rdb, log)

	// # 12. External Service Adapters (C8)
	extractorCfg := adapters.ExtractorConfig{
		Endpoint:      cfg.LLMEndpoint,
		APIKey:        cfg.LLMAPIKey,
		Model:         cfg.LLMModelID,
		MinConfidence: cfg.LLMMinConfidence,
		MaxChunkChars: cfg.LLMMaxChunkChars,
		OverlapPct:    cfg.LLMChunkOverlapPct,
		RetryAttempts: uint(cfg.ParserRetryAttempts),
		Timeout:       cfg.LLMTimeout,
	}
	extractorAdapter := adapters.NewExtractorAdapter(extractorCfg)
	translatorAdapter := adapters.NewTranslator(extractorCfg)

	generatorAdapter := adapters.NewGeneratorAdapter(adapters.GeneratorConfig{
		Endpoint:      cfg.ImagenEndpoint,
		APIKey:        cfg.ImagenAPIKey,
		Model:         cfg.ImagenModel,
		SafetyLevel:   cfg.ImagenSafetyLevel,
		RetryAttempts: uint(cfg.ParserRetryAttempts),
		Timeout:       cfg.ImagenTimeout,
	})

	// # 13. Description & Image Pipeline (C7)
	pipelineDriver := pipeline.NewDriver(
		chapterStore, descriptionStore, imageStore, bookStore,
		extractorAdapter, generatorAdapter,
		pipeline.Config{
			ImagenMaxConcurrent: cfg.ImagenMaxConcurrent,
			ImagenAspectRatio:   cfg.ImagenAspectRatio,
		},
		log,
	).WithTranslator(translatorAdapter)

	// # 14. Ingest Driver
	ingestDriver := ingest.NewDriver(cfg.MaxUploadBytes)

	// # 15. Parsing Queue & Progress Coordinator (C5)
	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	parsingCoordinator := parsing.NewCoordinator(
		appCtx,
		parsing.Config{
			MaxConcurrent: cfg.ParserMaxConcurrent,
			LeaseSeconds:  cfg.ParserLeaseSeconds,
		},
		rdb,
		library.ChapterSource{Chapters: chapterStore},
		pipelineDriver,
		library.BookProgressWriter{Books: bookStore},
		library.BookStatusReader{Books: bookStore},
		log,
	)

	// # 16. Orchestrator (C9) & Library Handler
	librarySvc := library.NewService(library.Deps{
		Books:        bookStore,
		Chapters:     chapterStore,
		Progress:     progressStore,
		Descriptions: descriptionStore,
		Images:       imageStore,
		Sessions:     sessionStore,
		Cache:        bookCache,
		Config:       cfg,
		Parser:       parsingCoordinator,
		Pipeline:     pipelineDriver,
		Canary:       canaryCtrl,
		Ingest:       ingestDriver,
		Priority:     subscriptionPriority(userRepo),
		Log:          log,
	})
	libraryHdl := library.NewHandler(librarySvc, cfg.MaxUploadBytes)

	// # 17. API Assembly
	handlers := api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Auth:       authHdl,
		Library:    libraryHdl,
		Canary:     canaryHdl,
		Flags:      flagsHdl,
		CacheAdmin: api.NewCacheAdminHandler(bookCache),
	}

	server := api.NewServer(appCtx, cfg, log, jwtSvc, blacklistRepo, handlers)

	// # 18. Lifecycle Handling
	shutdownErr := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			shutdownErr <- fmt.Errorf("http_server_crash: %w", err)
		}
	}()

	log.Info("yomira_api_running", slog.String("port", cfg.ServerPort))

	// Block until signal or error
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-shutdownErr:
		return err
	}

	// Start Graceful Shutdown Sequence
	appCancel() // Signal background workers to stop

	log.Info("shutting_down_api_server", slog.Duration("timeout", constants.ShutdownTimeout))
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return fmt.Errorf("server_shutdown_failed: %w", err)
	}

	log.Info("graceful_shutdown_complete")
	return nil
}

// subscriptionPriority closes over userRepo to resolve a requesting user's
// subscription tier into the parsing queue's admission weight, without
// creating an import cycle between the library and auth packages.
func subscriptionPriority(userRepo auth.UserRepository) library.SubscriptionPriority {
	return func(ctx context.Context, userID string) int {
		user, err := userRepo.FindByID(ctx, userID)
		if err != nil {
			return 1
		}
		return user.Subscription.Priority()
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
