package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Vector    VectorConfig
	Embedding EmbeddingConfig
	Chunking  ChunkingConfig
	Worker    WorkerConfig
	Storage   StorageConfig
	Webhook   WebhookConfig
	LogLevel  slog.Level
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type VectorConfig struct {
	Backend      string // "pgvector" or "qdrant"
	DatabaseURL  string
	Table        string
	Dimension    int
	QdrantHost   string
	QdrantPort   int
	QdrantAPIKey string
	QdrantTLS    bool
}

type EmbeddingConfig struct {
	Provider      string // "openai", "ollama" or "gemini"
	Model         string
	Dimension     int
	BatchSize     int
	RPS           float64
	Version       string
	OpenAIKey     string
	OpenAIBaseURL string
	OllamaURL     string
	GeminiKey     string
}

type ChunkingConfig struct {
	WindowSize int
	Overlap    int
	Strategy   string
}

type WorkerConfig struct {
	PollInterval time.Duration
	ClaimLock    string // "local" or "redis"
	ClaimTTL     time.Duration
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
}

type WebhookConfig struct {
	URL    string
	Secret string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var errs []error
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	floatVar := func(key string, fallback float64) float64 {
		v, err := getEnvFloat(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	durVar := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}
	boolVar := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return v
	}

	level, err := ParseLogLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		errs = append(errs, err)
	}

	dbURL := getEnv("DATABASE_URL", "")
	table := getEnv("VECTOR_TABLE", getEnv("VECTOR_COLLECTION", "chunk_vectors"))

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: intVar("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:            dbURL,
			MaxConns:       intVar("DB_MAX_CONNS", 10),
			MinConns:       intVar("DB_MIN_CONNS", 2),
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       intVar("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		},
		Vector: VectorConfig{
			Backend:      strings.ToLower(getEnv("VECTOR_BACKEND", "pgvector")),
			DatabaseURL:  getEnv("VECTOR_DATABASE_URL", dbURL),
			Table:        table,
			Dimension:    intVar("VECTOR_DIMENSION", 1536),
			QdrantHost:   getEnv("QDRANT_HOST", "localhost"),
			QdrantPort:   intVar("QDRANT_PORT", 6334),
			QdrantAPIKey: getEnv("QDRANT_API_KEY", ""),
			QdrantTLS:    boolVar("QDRANT_USE_TLS", false),
		},
		Embedding: EmbeddingConfig{
			Provider:      strings.ToLower(getEnv("EMBEDDING_PROVIDER", "openai")),
			Model:         getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension:     intVar("EMBEDDING_DIMENSION", 0),
			BatchSize:     intVar("EMBEDDING_BATCH_SIZE", 100),
			RPS:           floatVar("EMBEDDING_RPS", 0),
			Version:       getEnv("EMBEDDING_VERSION", ""),
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),
			OllamaURL:     getEnv("OLLAMA_URL", "http://localhost:11434"),
			GeminiKey:     getEnv("GEMINI_API_KEY", ""),
		},
		Chunking: ChunkingConfig{
			WindowSize: intVar("CHUNK_WINDOW_SIZE", 1000),
			Overlap:    intVar("CHUNK_OVERLAP", 200),
			Strategy:   getEnv("CHUNK_STRATEGY", "sliding_window"),
		},
		Worker: WorkerConfig{
			PollInterval: durVar("WORKER_POLL_INTERVAL", 5*time.Second),
			ClaimLock:    strings.ToLower(getEnv("WORKER_CLAIM_LOCK", "local")),
			ClaimTTL:     durVar("WORKER_CLAIM_TTL", 30*time.Minute),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		},
		Webhook: WebhookConfig{
			URL:    getEnv("WEBHOOK_URL", ""),
			Secret: getEnv("WEBHOOK_SECRET", ""),
		},
		LogLevel: level,
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the settings every binary needs.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Vector.Backend == "pgvector" && c.Vector.DatabaseURL == "" {
		missing = append(missing, "VECTOR_DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	var invalid []string
	switch c.Vector.Backend {
	case "pgvector", "qdrant":
	default:
		invalid = append(invalid, fmt.Sprintf("VECTOR_BACKEND=%q", c.Vector.Backend))
	}
	if c.Vector.Dimension <= 0 {
		invalid = append(invalid, "VECTOR_DIMENSION must be positive")
	}
	switch c.Embedding.Provider {
	case "openai", "ollama", "gemini":
	default:
		invalid = append(invalid, fmt.Sprintf("EMBEDDING_PROVIDER=%q", c.Embedding.Provider))
	}
	if c.Embedding.RPS < 0 {
		invalid = append(invalid, "EMBEDDING_RPS must not be negative")
	}
	if c.Embedding.BatchSize <= 0 {
		invalid = append(invalid, "EMBEDDING_BATCH_SIZE must be positive")
	}
	switch c.Worker.ClaimLock {
	case "local", "redis":
	default:
		invalid = append(invalid, fmt.Sprintf("WORKER_CLAIM_LOCK=%q", c.Worker.ClaimLock))
	}
	if c.Worker.PollInterval <= 0 {
		invalid = append(invalid, "WORKER_POLL_INTERVAL must be positive")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(invalid, "; "))
	}
	return nil
}

// ParseLogLevel maps debug, info, warn and error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(v, 64)
}
