// Copyright (c) 2026 Koma. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the Koma HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Connect to PostgreSQL (pgxpool).
//  4. Connect to Redis.
//  5. Run database migrations (idempotent).
//  6. Connect to the IPFS node and prepare the staging area.
//  7. Wire HTTP handlers.
//  8. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taibuivan/koma/internal/api"
	"github.com/taibuivan/koma/internal/core/chapter"
	"github.com/taibuivan/koma/internal/platform/config"
	"github.com/taibuivan/koma/internal/platform/constants"
	"github.com/taibuivan/koma/internal/platform/ipfs"
	"github.com/taibuivan/koma/internal/platform/migration"
	pgstore "github.com/taibuivan/koma/internal/platform/postgres"
	redisstore "github.com/taibuivan/koma/internal/platform/redis"
	"github.com/taibuivan/koma/internal/platform/sec"
	"github.com/taibuivan/koma/internal/platform/staging"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	// The level is raised to debug once configuration says so.
	logLevel := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})).With(slog.String("app", constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		logLevel.Set(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.Int("upload_max_retries", cfg.UploadMaxRetries),
		slog.Duration("upload_retry_delay", cfg.UploadRetryDelay),
		slog.Int("upload_concurrency", cfg.UploadConcurrency),
		slog.Duration("view_dedupe_window", cfg.ViewDedupeWindow),
	)

	// Startup deadline for connecting to every dependency.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. PostgreSQL ─────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, log)
	must(log, err, "connect to postgres")
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	// ── 4. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
	must(log, err, "connect to redis")
	defer func() {
		log.Info("redis_client_closing")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 5. Migrations ─────────────────────────────────────────────────────
	must(log, migration.RunUp(cfg.DatabaseURL, log), "run migrations")

	// ── 6. Token Verification ─────────────────────────────────────────────
	// Tokens are issued elsewhere; this service only checks signatures and roles.
	jwtSvc, err := sec.NewTokenService(cfg.JWTPubKeyPath, constants.AuthIssuer)
	must(log, err, "initialize jwt verifier")

	// ── 7. Content Store ──────────────────────────────────────────────────
	ipfsClient, err := ipfs.NewClient(cfg.IPFSAPIURL, cfg.IPFSTimeout, log)
	must(log, err, "initialize ipfs client")
	if err := ipfsClient.Ping(startupCtx); err != nil {
		// Uploads retry per page, so a node that is still starting is not fatal.
		log.Warn("ipfs_unreachable_at_startup", slog.Any("error", err))
	}

	area, err := staging.New(cfg.StagingDir)
	must(log, err, "prepare staging area")
	log.Info("staging_area_ready", slog.String("dir", area.Dir()))

	purged, err := area.PurgeStale(constants.IngestRequestTimeout)
	if err != nil {
		log.Warn("staging_purge_failed", slog.Any("error", err))
	}
	if purged > 0 {
		log.Info("staging_leftovers_removed", slog.Int("files", purged))
	}

	// ── 8. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
		CheckContentStore: func() error {
			return ipfsClient.Ping(context.Background())
		},
	}, log)

	// ── 9. Domain Wiring ──────────────────────────────────────────────────
	chapterRepository := chapter.NewChapterRepository(pool)
	chapterCache := chapter.NewRedisChapterCache(rdb, cfg.ChapterListCacheTTL, cfg.ViewDedupeWindow)
	chapterService := chapter.NewService(chapterRepository, chapterCache, ipfsClient, chapter.Options{
		RetryPolicy:       cfg.UploadRetryPolicy(),
		UploadConcurrency: cfg.UploadConcurrency,
	}, log)
	chapterHandler := chapter.NewHandler(chapterService, area, ipfs.NewGateway(cfg.IPFSGatewayURL), cfg.UploadMaxMemory)

	// ── 10. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Chapter:   chapterHandler,
	}

	server := api.NewServer(cfg, log, jwtSvc, handlers)

	// ── 11. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_listen_failed", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("server_shutting_down", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("server_shutdown_failed", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server_stopped")
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// Only startup wiring calls it. After startup, errors are returned and handled.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failed",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
