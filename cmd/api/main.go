package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"simscore/api/internal/analysis"
	"simscore/api/internal/app"
	"simscore/api/internal/cache"
	"simscore/api/internal/config"
	"simscore/api/internal/logging"
	"simscore/api/internal/search"
	"simscore/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	logger := logging.New(logging.Options{
		Development: cfg.Development(),
		File:        cfg.LogFile,
		Level:       zap.InfoLevel,
	})
	defer func() { _ = logger.Sync() }()

	deps := app.Deps{
		Analysis: analysis.NewClient(cfg.AnalysisURL, cfg.AnalysisAPIKey, cfg.AnalysisTimeout),
		Logger:   logger,
	}

	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database connection failed: %v", err)
		}
		defer db.Close()

		if cfg.RunMigrations {
			if err := store.ApplyMigrations(ctx, db, store.Migrations()); err != nil {
				log.Fatalf("migrations failed: %v", err)
			}
		}
		deps.Store = store.NewPostgresStore(db)
		logger.Info("document store enabled")
	}

	codec, err := cache.NewCodec()
	if err != nil {
		log.Fatalf("cache codec: %v", err)
	}
	var storage cache.Storage
	if strings.TrimSpace(cfg.RedisURL) != "" {
		redisStorage, err := cache.NewRedisStorage(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStorage.Close()
		storage = redisStorage
		deps.CachePing = redisStorage
		logger.Info("using redis session cache")
	} else {
		storage = cache.NewMemoryStorage(int(cfg.CacheQuotaBytes))
		logger.Info("using in-memory session cache", zap.Int64("quota_bytes", cfg.CacheQuotaBytes))
	}
	deps.Cache = cache.NewSessionCache(storage, codec, logger)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey, logger)
	}
	searchService := search.NewService(meiliClient, logger)
	defer searchService.Close()
	deps.Search = searchService

	service := app.New(cfg, deps)
	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin, logger)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.AnalysisTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("SimScore API listening", zap.String("addr", cfg.Addr), zap.String("analysis_url", cfg.AnalysisURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
}
