package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anuragaming1/anura-kun/internal/config"
	"github.com/anuragaming1/anura-kun/internal/repository"
	"github.com/anuragaming1/anura-kun/internal/repository/boltstore"
	"github.com/anuragaming1/anura-kun/internal/repository/postgres"
	sqliteRepo "github.com/anuragaming1/anura-kun/internal/repository/sqlite"
)

// OpenStore opens the backend selected by cfg.StoreDriver. The admin CLI
// uses it too, so both binaries always agree on where snippets live.
//
// For postgres the goose migrations run before the pool is opened.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.SnippetRepository, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("server: migrating postgres: %w", err)
		}
		db, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("server: opening postgres: %w", err)
		}
		return postgres.NewSnippetRepo(db), nil

	case config.DriverBolt:
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		store, err := boltstore.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("server: opening bolt store: %w", err)
		}
		return store, nil

	case config.DriverSQLite, "":
		if err := ensureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		db, err := sqliteRepo.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("server: opening sqlite: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("server: unknown store driver %q", cfg.StoreDriver)
	}
}

// ensureDir creates the parent directory of a database file (like `mkdir -p`).
func ensureDir(dbPath string) error {
	if dbPath == ":memory:" {
		return nil
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("server: creating database directory %s: %w", dir, err)
	}
	return nil
}
