package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nikhilbhutani/docingest/internal/app"
	"github.com/nikhilbhutani/docingest/internal/cli"
	"github.com/nikhilbhutani/docingest/internal/config"
	"github.com/nikhilbhutani/docingest/internal/database"
	"github.com/nikhilbhutani/docingest/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}
	app.SetupLogger(cfg.LogLevel)

	open := func(ctx context.Context) (*cli.Services, error) {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		stores, err := app.OpenStores(ctx, cfg)
		if err != nil {
			return nil, err
		}
		tasks := queue.NewClient(cfg.Redis)

		s := &cli.Services{
			Files:   stores.Meta,
			Admin:   stores.Admin(),
			Tasks:   tasks,
			Vectors: stores.Vectors,
			Migrate: func(ctx context.Context) ([]string, error) {
				return database.RunMigrations(ctx, stores.Pool, cfg.Database.MigrationsPath)
			},
			Close: func() {
				tasks.Close()
				stores.Close()
			},
		}
		// Only search needs a provider.
		if embedder, err := app.NewEmbedder(ctx, cfg.Embedding); err == nil {
			s.Embedder = embedder
		}
		return s, nil
	}

	if err := cli.Execute(open, cfg.Auth.JWTSecret); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
