// Command server runs the torrent search API: a fan-out aggregator that
// queries every configured Jackett indexer concurrently and streams each
// indexer's results the moment they arrive.
//
// Boot order: .env → config → logging → tracing → registry store → HTTP
// server, then a signal-driven graceful shutdown.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-torrent-search/internal/config"
	httpapi "github.com/tbourn/go-torrent-search/internal/http"
	"github.com/tbourn/go-torrent-search/internal/observability"
	"github.com/tbourn/go-torrent-search/internal/repo"
	"github.com/tbourn/go-torrent-search/internal/sysutil"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	// Logging: level from config, pretty console output only when asked.
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty || sysutil.IsTruthy(os.Getenv("LOG_PRETTY")) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	gin.SetMode(cfg.GinMode)

	// Tracing (no-op unless OTEL_ENABLED).
	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, sysutil.FirstNonEmpty(version, "dev"))
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	// Registry snapshot store. The service works without it, so a broken
	// database downgrades to a cold-start registry rather than a crash.
	var db *gorm.DB
	if d, err := repo.OpenSQLite(cfg.DBPath); err != nil {
		log.Warn().Err(err).Str("path", cfg.DBPath).
			Msg("snapshot store unavailable, registry will cold-start")
	} else {
		db = d
		if err := repo.AutoMigrate(db); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		if cfg.OTEL.Enabled {
			if err := repo.EnableTracing(db); err != nil {
				log.Warn().Err(err).Msg("gorm tracing plugin failed")
			}
		}
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout, // 0 keeps long SSE streams alive
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("forced shutdown")
		}
	}()

	log.Info().
		Str("version", version).
		Str("port", cfg.Port).
		Str("base_path", cfg.APIBasePath).
		Str("gateway", cfg.Gateway.URL).
		Dur("registry_ttl", cfg.IndexerCacheTTL).
		Dur("indexer_timeout", cfg.IndexerTimeout).
		Msg("server starting")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
