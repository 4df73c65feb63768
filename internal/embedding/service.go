package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/nikhilbhutani/docingest/pkg/tokenizer"
)

var (
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ProviderError reports a failed sub-batch. The whole EmbedBatch call fails
// with it; no partial vectors are returned.
type ProviderError struct {
	Batch int
	Err   error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("embedding provider error (batch %d): %v", e.Batch, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == ErrEmbeddingProvider
}

const DefaultMaxBatchSize = 100

// modelDimensions lists native output sizes of known models.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"gemini-embedding-001":   3072,
	"text-embedding-004":     768,
}

type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type BatchResult struct {
	Vectors   [][]float32
	Dimension int
	Usage     Usage
}

type Config struct {
	Model        string
	Dimension    int // 0 uses the model's native dimension
	MaxBatchSize int
	// RequestsPerSecond caps provider calls; 0 means unlimited.
	RequestsPerSecond float64
}

// Service turns texts into vectors through a Provider, splitting large
// inputs into sequential sub-batches.
type Service struct {
	provider  Provider
	model     string
	dimension int
	maxBatch  int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

func NewService(p Provider, cfg Config) (*Service, error) {
	if p == nil {
		return nil, fmt.Errorf("embedding provider required")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}

	dim := cfg.Dimension
	if dim == 0 {
		known, ok := modelDimensions[cfg.Model]
		if !ok {
			return nil, fmt.Errorf("unknown dimension for model %q: set EMBEDDING_DIMENSION", cfg.Model)
		}
		dim = known
	}

	svc := &Service{
		provider:  p,
		model:     cfg.Model,
		dimension: dim,
		maxBatch:  cfg.MaxBatchSize,
		logger:    slog.Default().With("component", "embedding", "provider", p.Name()),
	}
	if cfg.RequestsPerSecond > 0 {
		svc.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return svc, nil
}

func (s *Service) Model() string { return s.model }

func (s *Service) Dimension() int { return s.dimension }

// ValidateDimension checks the model dimension against the vector index.
func (s *Service) ValidateDimension(storeDimension int) error {
	if s.dimension != storeDimension {
		return fmt.Errorf("%w: model %s produces %d, vector store expects %d", ErrDimensionMismatch, s.model, s.dimension, storeDimension)
	}
	return nil
}

// EmbedBatch returns one vector per text, in input order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) (*BatchResult, error) {
	result := &BatchResult{
		Vectors:   make([][]float32, 0, len(texts)),
		Dimension: s.dimension,
	}
	if len(texts) == 0 {
		return result, nil
	}

	for start := 0; start < len(texts); start += s.maxBatch {
		end := min(start+s.maxBatch, len(texts))
		batch := texts[start:end]
		batchNo := start / s.maxBatch

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, &ProviderError{Batch: batchNo, Err: err}
			}
		}

		resp, err := s.provider.Embed(ctx, Request{
			Model:      s.model,
			Input:      batch,
			Dimensions: s.dimension,
		})
		if err != nil {
			return nil, &ProviderError{Batch: batchNo, Err: err}
		}

		vectors, err := s.inOrder(resp, len(batch))
		if err != nil {
			return nil, &ProviderError{Batch: batchNo, Err: err}
		}
		result.Vectors = append(result.Vectors, vectors...)

		prompt, total := resp.PromptTokens, resp.TotalTokens
		if prompt == 0 && total == 0 {
			for _, t := range batch {
				prompt += tokenizer.CountTokensForModel(t, s.model)
			}
			total = prompt
		}
		result.Usage.PromptTokens += prompt
		result.Usage.TotalTokens += total

		s.logger.Debug("embedded batch",
			"batch", batchNo,
			"size", len(batch),
			"tokens", total,
			"cost_usd", CalculateCost(s.model, total),
		)
	}

	return result, nil
}

// inOrder places every returned vector at the input index it reports.
func (s *Service) inOrder(resp *Response, n int) ([][]float32, error) {
	if resp == nil || len(resp.Data) != n {
		got := 0
		if resp != nil {
			got = len(resp.Data)
		}
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, got)
	}

	vectors := make([][]float32, n)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= n {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		if vectors[d.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", d.Index)
		}
		if len(d.Embedding) != s.dimension {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", d.Index, len(d.Embedding), s.dimension)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}
