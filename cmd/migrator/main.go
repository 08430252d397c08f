package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose"

	"github.com/odyssey-erp/odyssey-records/internal/app"
	"github.com/odyssey-erp/odyssey-records/internal/platform/db"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding the goose migrations")
	flag.Parse()
	command := flag.Arg(0)
	if command == "" {
		command = "up"
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := migrate(context.Background(), cfg, command, *dir); err != nil {
		logger.Error("migrate", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrations applied", slog.String("command", command))
}

func migrate(ctx context.Context, cfg *app.Config, command, dir string) error {
	pool, err := db.New(ctx, db.Options{DSN: cfg.DSN(), MaxConns: 1, MinConns: 1})
	if err != nil {
		return err
	}
	defer pool.Close()

	sqlDB := stdlib.OpenDBFromPool(pool)
	defer sqlDB.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	switch command {
	case "up":
		return goose.Up(sqlDB, dir)
	case "down":
		return goose.Down(sqlDB, dir)
	case "status":
		return goose.Status(sqlDB, dir)
	default:
		return fmt.Errorf("unknown command %q (want up, down or status)", command)
	}
}
