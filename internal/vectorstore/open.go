package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikhilbhutani/docingest/internal/config"
	"github.com/nikhilbhutani/docingest/internal/database"
)

// Open builds the backend named by cfg.Backend. For pgvector, metaPool is
// reused when the vector database is the metadata database; otherwise a
// dedicated pool is opened and closed with the store.
func Open(ctx context.Context, cfg config.VectorConfig, metaURL string, metaPool *pgxpool.Pool) (Store, error) {
	switch cfg.Backend {
	case "", "pgvector":
		if cfg.DatabaseURL == "" || cfg.DatabaseURL == metaURL {
			store, err := NewPgVectorStore(metaPool, cfg.Table, cfg.Dimension, nil)
			if err != nil {
				return nil, err
			}
			return store, nil
		}
		pool, err := database.Open(ctx, cfg.DatabaseURL, 0, 0)
		if err != nil {
			return nil, fmt.Errorf("open vector database: %w", err)
		}
		store, err := NewPgVectorStore(pool, cfg.Table, cfg.Dimension, pool.Close)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case "qdrant":
		store, err := NewQdrantStore(QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantTLS,
			Collection: cfg.Table,
			Dimension:  cfg.Dimension,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}
