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

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-records/cmd/odyssey/cli"
	"github.com/odyssey-erp/odyssey-records/internal/app"
	"github.com/odyssey-erp/odyssey-records/internal/auth"
	"github.com/odyssey-erp/odyssey-records/internal/export"
	"github.com/odyssey-erp/odyssey-records/internal/observability"
	"github.com/odyssey-erp/odyssey-records/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-records/internal/platform/db"
	"github.com/odyssey-erp/odyssey-records/internal/records"
	"github.com/odyssey-erp/odyssey-records/internal/shared"
	"github.com/odyssey-erp/odyssey-records/internal/view"
	"github.com/odyssey-erp/odyssey-records/jobs"
	"github.com/odyssey-erp/odyssey-records/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if args := os.Args[1:]; len(args) > 0 && args[0] != "serve" {
		os.Exit(cli.Run(ctx, args, commandDeps()))
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)
	slog.SetDefault(logger)

	if app.InTestMode() {
		logger.Info("test mode detected, skipping runtime startup")
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("serve", slog.Any("error", err))
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *app.Config) (*pgxpool.Pool, error) {
	pool, err := db.New(ctx, db.Options{DSN: cfg.DSN(), MaxConns: cfg.DBMaxConns, MinConns: 1})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx, pool, migrations.Files); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// commandDeps loads configuration only for commands that touch the store or the queue.
func commandDeps() cli.Deps {
	return cli.Deps{
		Exporter: func(ctx context.Context) (cli.TableExporter, func(), error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, nil, err
			}
			logger := app.NewLogger(cfg)
			pool, err := openStore(ctx, cfg)
			if err != nil {
				return nil, nil, err
			}
			gateway := records.NewGateway(pool, logger, nil)
			return export.NewExporter(gateway, cfg.ExportDir, logger, nil), pool.Close, nil
		},
		Jobs: func() (cli.JobsRunner, error) {
			cfg, err := app.LoadConfig()
			if err != nil {
				return nil, err
			}
			runner, err := cli.NewJobsCLI(cfg.RedisAddr)
			if err != nil {
				return nil, err
			}
			return runner, nil
		},
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	directory, err := cfg.Directory()
	if err != nil {
		return err
	}
	if directory.Len() == 0 {
		logger.Warn("AUTH_USERS is empty; nobody can sign in")
	}

	pool, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "odyssey_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	templates, err := view.NewEngine()
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()
	gateway := records.NewGateway(pool, logger, metrics)
	exporter := export.NewExporter(gateway, cfg.ExportDir, logger, metrics)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queue, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    auth.NewHandler(logger, auth.NewService(directory), templates, sessionManager, csrfManager),
		RecordsHandler: records.NewHandler(logger, gateway, templates, csrfManager),
		ExportHandler:  export.NewHandler(exporter, queue, logger),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		Store:          pool,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
