package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/config"
	"safarank-api/internal/handler"
	"safarank-api/internal/logger"
	"safarank-api/internal/middleware"
	"safarank-api/internal/repository"
	"safarank-api/internal/router"
	"safarank-api/internal/service"
	"safarank-api/internal/web"
)

func main() {
	// Load configuration
	cfg := config.MustLoad()
	log := logger.Init(cfg.App.LogLevel, cfg.App.Name, cfg.App.Environment)
	log.Info("starting SafaRank", "version", cfg.App.Version)

	// Identity store (users)
	dialect, err := repository.ParseDialect(cfg.Database.Type)
	if err != nil {
		fatal(log, "invalid identity store", err)
	}
	if dialect == repository.DialectSQLite {
		ensureDir(log, cfg.Database.Path)
	}
	users, err := repository.OpenUserRepository(dialect, cfg.Database.DSN())
	if err != nil {
		fatal(log, "failed to open identity store", err)
	}
	defer users.Close()
	log.Info("identity store initialized", "type", dialect)

	// Document store (items, categories, reviews, rankings)
	if !strings.EqualFold(cfg.CatalogDB.Type, "mongodb") {
		ensureDir(log, cfg.CatalogDB.Path)
	}
	store, err := repository.OpenCatalogRepository(
		cfg.CatalogDB.Type,
		cfg.CatalogDB.Path,
		cfg.CatalogDB.MongoURI,
		cfg.CatalogDB.MongoDatabase,
	)
	if err != nil {
		fatal(log, "failed to open catalog store", err)
	}
	defer store.Close()
	log.Info("catalog store initialized", "type", cfg.CatalogDB.Type)

	// Sessions and snapshots
	c, err := cache.Open(cfg.Cache.Type, cache.RedisConfig{
		Addr:      cfg.Cache.RedisAddress(),
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		KeyPrefix: cfg.Cache.RedisKeyPrefix,
	})
	if err != nil {
		fatal(log, "failed to open cache", err)
	}
	defer c.Close()
	log.Info("cache initialized", "type", cfg.Cache.Type)

	// Initialize services
	authService := service.NewAuthService(users, 0)
	sessionService := service.NewSessionService(c, cfg.App.SessionTTL)
	catalogService := service.NewCatalogService(store, store, c, cfg.App.PageSize)
	categoryService := service.NewCategoryService(store, store)
	reviewService := service.NewReviewService(store, store, c)
	rankingService := service.NewRankingService(store, store)
	statsService := service.NewStatsService(users, store, c, cfg.Cache.TTL)

	// Initialize handlers
	render := web.MustNewRenderer()
	healthHandler := handler.New(cfg.App.Name, cfg.App.Version,
		handler.Dependency{Name: "identity_store", Pinger: users},
		handler.Dependency{Name: "catalog_store", Pinger: store},
		handler.Dependency{Name: "cache", Pinger: c},
	)
	authHandler := handler.NewAuthHandler(authService, sessionService, rankingService, categoryService, render, cfg.App.CookieSecure)
	catalogHandler := handler.NewCatalogHandler(catalogService, categoryService, reviewService, rankingService, render)
	rankingHandler := handler.NewRankingHandler(rankingService, catalogService, render)
	adminHandler := handler.NewAdminHandler(handler.AdminConfig{
		Catalog:    catalogService,
		Categories: categoryService,
		Reviews:    reviewService,
		Stats:      statsService,
		Users:      users,
		Store:      store,
		Cache:      c,
		Render:     render,
		Backends: map[string]string{
			"identity": string(dialect),
			"catalog":  cfg.CatalogDB.Type,
			"cache":    cfg.Cache.Type,
		},
	})

	// Create router
	r := router.New(router.Config{
		Handler:        healthHandler,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		RankingHandler: rankingHandler,
		AdminHandler:   adminHandler,
		SessionLoader:  middleware.LoadSession(sessionService, cfg.App.CookieSecure),
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", "addr", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "server error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown error", "error", err)
	}

	log.Info("server stopped", "uptime", time.Since(startTime).Round(time.Second).String())
}

var startTime = time.Now()

func ensureDir(log *slog.Logger, path string) {
	if path == "" || path == ":memory:" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fatal(log, "failed to create data directory", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
