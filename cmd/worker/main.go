package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docingest/internal/app"
	"github.com/nikhilbhutani/docingest/internal/config"
	"github.com/nikhilbhutani/docingest/internal/database"
	"github.com/nikhilbhutani/docingest/internal/queue"
	"github.com/nikhilbhutani/docingest/internal/queue/workers"
	"github.com/nikhilbhutani/docingest/internal/webhook"
	"github.com/nikhilbhutani/docingest/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	app.SetupLogger(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	applied, err := database.RunMigrations(ctx, stores.Pool, cfg.Database.MigrationsPath)
	if err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	if len(applied) > 0 {
		slog.Info("applied migrations", "versions", applied)
	}

	orch, err := app.NewOrchestrator(ctx, cfg, stores)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	var rdb *redis.Client
	if cfg.Worker.ClaimLock == "redis" {
		rdb = app.NewRedis(cfg.Redis)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Error("redis unavailable for claim lock", "error", err)
			os.Exit(1)
		}
	}
	claimer, err := app.NewClaimer(cfg.Worker, rdb)
	if err != nil {
		slog.Error("invalid claim lock", "error", err)
		os.Exit(1)
	}

	w := worker.New(stores.Meta, orch, claimer, cfg.Worker.PollInterval)
	var hooks *webhook.Dispatcher
	if cfg.Webhook.URL != "" {
		hooks = webhook.NewDispatcher(cfg.Webhook.URL, cfg.Webhook.Secret, 100)
		w.WithNotifier(hooks)
	}
	w.Start(ctx)

	// Admin tasks (requeue, reconcile) arrive over asynq.
	srv := asynq.NewServer(queue.RedisOpt(cfg.Redis), asynq.Config{
		Concurrency: 2,
		Logger:      asynqLogger{slog.Default().With("component", "asynq")},
	})
	registry := queue.NewHandlersRegistry()
	workers.NewAdminWorker(stores.Admin()).Register(registry)
	if err := srv.Start(registry.Mux()); err != nil {
		slog.Warn("admin task server not started", "error", err)
		srv = nil
	}

	slog.Info("worker started",
		"poll_interval", cfg.Worker.PollInterval,
		"claim_lock", cfg.Worker.ClaimLock,
		"vector_backend", cfg.Vector.Backend,
		"task_types", registry.Types(),
	)

	<-ctx.Done()
	slog.Info("shutting down worker...")
	if srv != nil {
		srv.Shutdown()
	}
	w.Stop()
	if hooks != nil {
		hooks.Close()
	}
	slog.Info("worker stopped")
}

// asynqLogger adapts slog to asynq.Logger.
type asynqLogger struct{ l *slog.Logger }

func (a asynqLogger) Debug(args ...any) { a.l.Debug(fmtArgs(args)) }
func (a asynqLogger) Info(args ...any)  { a.l.Info(fmtArgs(args)) }
func (a asynqLogger) Warn(args ...any)  { a.l.Warn(fmtArgs(args)) }
func (a asynqLogger) Error(args ...any) { a.l.Error(fmtArgs(args)) }
func (a asynqLogger) Fatal(args ...any) {
	a.l.Error(fmtArgs(args))
	os.Exit(1)
}

func fmtArgs(args []any) string { return fmt.Sprint(args...) }
