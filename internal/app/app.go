// Package app wires configuration into the stores and services shared by the
// worker, api and ingestctl binaries.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docingest/internal/admin"
	"github.com/nikhilbhutani/docingest/internal/cache"
	"github.com/nikhilbhutani/docingest/internal/config"
	"github.com/nikhilbhutani/docingest/internal/database"
	"github.com/nikhilbhutani/docingest/internal/document"
	"github.com/nikhilbhutani/docingest/internal/embedding"
	"github.com/nikhilbhutani/docingest/internal/metastore"
	"github.com/nikhilbhutani/docingest/internal/pipeline"
	"github.com/nikhilbhutani/docingest/internal/storage"
	"github.com/nikhilbhutani/docingest/internal/vectorstore"
	"github.com/nikhilbhutani/docingest/internal/worker"
	"github.com/nikhilbhutani/docingest/pkg/chunker"
)

const claimPrefix = "docingest:claim:"

// SetupLogger installs a JSON slog handler at the given level as default.
func SetupLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// Stores holds the metadata and vector store handles.
type Stores struct {
	Pool    *pgxpool.Pool
	Meta    *metastore.Store
	Vectors vectorstore.Store
}

// OpenStores connects to the metadata database and the configured vector
// backend.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	vectors, err := vectorstore.Open(ctx, cfg.Vector, cfg.Database.URL, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	return &Stores{
		Pool:    pool,
		Meta:    metastore.New(pool),
		Vectors: vectors,
	}, nil
}

func (s *Stores) Close() {
	s.Vectors.Close()
	s.Pool.Close()
}

// Admin returns the operator service over these stores.
func (s *Stores) Admin() *admin.Service {
	return admin.NewService(s.Meta, s.Vectors)
}

// NewEmbedder builds the embedding service for the configured provider.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingConfig) (*embedding.Service, error) {
	provider, err := embedding.NewProvider(ctx, embedding.ProviderConfig{
		Provider:      cfg.Provider,
		OpenAIKey:     cfg.OpenAIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OllamaURL:     cfg.OllamaURL,
		GeminiKey:     cfg.GeminiKey,
	})
	if err != nil {
		return nil, err
	}
	return embedding.NewService(provider, embedding.Config{
		Model:             cfg.Model,
		Dimension:         cfg.Dimension,
		MaxBatchSize:      cfg.BatchSize,
		RequestsPerSecond: cfg.RPS,
	})
}

// NewOrchestrator assembles the processing pipeline. A dimension mismatch
// between the embedding model and the vector store is returned here.
func NewOrchestrator(ctx context.Context, cfg *config.Config, stores *Stores) (*pipeline.Orchestrator, error) {
	strategy, err := chunker.ParseStrategy(cfg.Chunking.Strategy)
	if err != nil {
		return nil, err
	}
	embedder, err := NewEmbedder(ctx, cfg.Embedding)
	if err != nil {
		return nil, err
	}

	var supabase *storage.SupabaseStorage
	if cfg.Storage.SupabaseURL != "" {
		supabase = storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	}
	loaders := document.NewRegistry(storage.NewFetcher(supabase))

	return pipeline.New(stores.Meta, loaders, embedder, stores.Vectors, pipeline.Options{
		Chunking: chunker.Options{
			WindowSize: cfg.Chunking.WindowSize,
			Overlap:    cfg.Chunking.Overlap,
			Strategy:   strategy,
		},
		EmbeddingVersion: cfg.Embedding.Version,
	})
}

// NewRedis returns a client for cfg. It does not connect.
func NewRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewClaimer picks the claim strategy named by cfg.ClaimLock. rdb is only
// used for "redis".
func NewClaimer(cfg config.WorkerConfig, rdb *redis.Client) (worker.Claimer, error) {
	switch cfg.ClaimLock {
	case "", "local":
		return worker.LocalClaimer{}, nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis claim lock requires a redis client")
		}
		return worker.NewRedisClaimer(cache.NewLocker(rdb, claimPrefix, cfg.ClaimTTL)), nil
	default:
		return nil, fmt.Errorf("unknown claim lock %q", cfg.ClaimLock)
	}
}
