// Command seed creates an administrator account and optionally loads a
// phones CSV into the catalog. It reads the same environment as the API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"safarank-api/internal/cache"
	"safarank-api/internal/config"
	"safarank-api/internal/logger"
	"safarank-api/internal/repository"
	"safarank-api/internal/service"
	"safarank-api/pkg/apierror"
)

func main() {
	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "administrator email")
	name := flag.String("name", "Administrador", "administrator display name")
	password := flag.String("password", os.Getenv("ADMIN_PASSWORD"), "administrator password")
	csvPath := flag.String("csv", "", "phones CSV to import (optional)")
	flag.Parse()

	cfg := config.MustLoad()
	log := logger.Init(cfg.App.LogLevel, cfg.App.Name+"-seed", cfg.App.Environment)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

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

	if *email != "" {
		auth := service.NewAuthService(users, 0)
		user, err := auth.CreateAdmin(ctx, *email, *name, *password)
		switch {
		case apierror.IsConflict(err):
			log.Info("admin already exists", "email", *email)
		case err != nil:
			fatal(log, "failed to create admin", err)
		default:
			log.Info("admin created", "id", user.ID, "email", user.Email)
		}
	}

	if *csvPath == "" {
		return
	}

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

	// Import drops the statistics snapshot held in a shared cache.
	c, err := cache.Open(cfg.Cache.Type, cache.RedisConfig{
		Addr:      cfg.Cache.RedisAddress(),
		Password:  cfg.Cache.RedisPassword,
		DB:        cfg.Cache.RedisDB,
		KeyPrefix: cfg.Cache.RedisKeyPrefix,
	})
	if err != nil {
		log.Warn("cache unavailable, continuing without it", "error", err)
		c = cache.NewMemoryCache()
	}
	defer c.Close()

	f, err := os.Open(*csvPath)
	if err != nil {
		fatal(log, "failed to open csv", err)
	}
	defer f.Close()

	catalog := service.NewCatalogService(store, store, c, cfg.App.PageSize)
	result, err := catalog.Import(ctx, f)
	if err != nil {
		fatal(log, "import failed", err)
	}
	for _, e := range result.Errors {
		log.Warn("row skipped", "reason", e)
	}
	log.Info("import finished", "imported", result.Imported, "skipped", result.Skipped)
}

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
