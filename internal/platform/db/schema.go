package db

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"
)

// EnsureSchema applies pending goose migrations from files over pool, recording them in
// goose's version table so the migrator binary and the server agree on what has run.
// goose only reads migrations from disk, so files is materialised into a temporary
// directory first.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, files fs.FS) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "odyssey-migrations-")
	if err != nil {
		return fmt.Errorf("platform/db: migrations dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if _, err := copyMigrations(dir, files); err != nil {
		return err
	}

	// The connector does not own the pool; closing sqlDB leaves pool open.
	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("platform/db: ensure schema: %w", err)
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: ensure schema: %w", err)
	}
	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("platform/db: ensure schema: %w", err)
	}
	return nil
}

// copyMigrations writes every top-level *.sql file of files into dir and returns the
// names written.
func copyMigrations(dir string, files fs.FS) ([]string, error) {
	names, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, fmt.Errorf("platform/db: list migrations: %w", err)
	}
	for _, name := range names {
		raw, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("platform/db: read %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name), raw, 0o600); err != nil {
			return nil, fmt.Errorf("platform/db: write %s: %w", name, err)
		}
	}
	return names, nil
}
