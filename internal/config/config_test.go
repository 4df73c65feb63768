package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/docingest")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "postgres://localhost/docingest", cfg.Vector.DatabaseURL)
	assert.Equal(t, "pgvector", cfg.Vector.Backend)
	assert.Equal(t, "chunk_vectors", cfg.Vector.Table)
	assert.Equal(t, 1536, cfg.Vector.Dimension)
	assert.Equal(t, 1000, cfg.Chunking.WindowSize)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Worker.PollInterval)
	assert.Equal(t, "local", cfg.Worker.ClaimLock)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://meta")
	t.Setenv("VECTOR_BACKEND", "QDRANT")
	t.Setenv("VECTOR_COLLECTION", "docs")
	t.Setenv("QDRANT_USE_TLS", "true")
	t.Setenv("WORKER_POLL_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "qdrant", cfg.Vector.Backend)
	assert.Equal(t, "docs", cfg.Vector.Table)
	assert.True(t, cfg.Vector.QdrantTLS)
	assert.Equal(t, 250*time.Millisecond, cfg.Worker.PollInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("CHUNK_WINDOW_SIZE", "big")
	t.Setenv("WORKER_CLAIM_TTL", "forever")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_WINDOW_SIZE")
	assert.Contains(t, err.Error(), "WORKER_CLAIM_TTL")
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	cfg.Database.URL = "postgres://x"
	cfg.Vector.DatabaseURL = "postgres://x"
	cfg.Vector.Backend = "milvus"
	cfg.Worker.ClaimLock = "zookeeper"

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "milvus")
	assert.Contains(t, err.Error(), "zookeeper")
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}
