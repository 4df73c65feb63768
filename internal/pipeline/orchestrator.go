package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/document"
	"github.com/nikhilbhutani/docingest/internal/embedding"
	"github.com/nikhilbhutani/docingest/internal/metrics"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/vectorstore"
	"github.com/nikhilbhutani/docingest/pkg/chunker"
)

var ErrEmptyDocument = errors.New("document produced no chunks")

type FileStore interface {
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
	CreateChunksBatch(ctx context.Context, chunks []models.Chunk) (int64, error)
}

type LoaderResolver interface {
	Resolve(mimeType string) (document.Loader, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (*embedding.BatchResult, error)
	ValidateDimension(storeDimension int) error
	Model() string
}

type VectorWriter interface {
	Insert(ctx context.Context, entries []models.VectorEntry) (*vectorstore.InsertResult, error)
	Dimension() int
}

type Options struct {
	Chunking         chunker.Options
	EmbeddingVersion string
	// Now stamps vector entries; defaults to time.Now.
	Now func() time.Time
}

type Result struct {
	ChunksCreated   int           `json:"chunks_created"`
	VectorsInserted int           `json:"vectors_inserted"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Orchestrator runs one queue item through load, chunk, embed, metadata
// write and vector write. Stages run strictly in sequence and their errors
// are returned unchanged; nothing written by an earlier stage is undone.
type Orchestrator struct {
	files    FileStore
	loaders  LoaderResolver
	embedder Embedder
	vectors  VectorWriter
	opts     Options
	logger   *slog.Logger
}

// New validates the chunking options and that the embedder and vector store
// agree on a dimension. Both are configuration errors and should stop the
// process before any item is claimed.
func New(files FileStore, loaders LoaderResolver, embedder Embedder, vectors VectorWriter, opts Options) (*Orchestrator, error) {
	if err := opts.Chunking.Validate(); err != nil {
		return nil, err
	}
	if err := embedder.ValidateDimension(vectors.Dimension()); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		files:    files,
		loaders:  loaders,
		embedder: embedder,
		vectors:  vectors,
		opts:     opts,
		logger:   slog.Default().With("component", "pipeline"),
	}, nil
}

func (o *Orchestrator) ProcessDocument(ctx context.Context, item models.QueueItem) (*Result, error) {
	start := time.Now()
	log := o.logger.With("file_id", item.FileID, "queue_id", item.ID)

	file, err := o.files.GetFile(ctx, item.FileID)
	if err != nil {
		return nil, err
	}

	// Stage 1: load
	stageStart := time.Now()
	loader, err := o.loaders.Resolve(file.MimeType)
	if err != nil {
		return nil, err
	}
	doc, err := loader.Load(ctx, file.Locator)
	if err != nil {
		return nil, err
	}
	metrics.CaptureStage("load", time.Since(stageStart))
	log.Debug("document loaded", "loader", loader.Name(), "pages", doc.PageCount)

	// Stage 2: chunk
	stageStart = time.Now()
	windows, err := chunker.Chunk(doc.Text, o.opts.Chunking)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, file.Name)
	}
	metrics.CaptureStage("chunk", time.Since(stageStart))

	// Stage 3: embed
	stageStart = time.Now()
	texts := make([]string, len(windows))
	for i, w := range windows {
		texts[i] = w.Text
	}
	embedded, err := o.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	metrics.CaptureStage("embed", time.Since(stageStart))
	metrics.AddEmbeddingTokens(o.embedder.Model(), embedded.Usage.TotalTokens)

	// Stage 4: metadata
	stageStart = time.Now()
	chunks := make([]models.Chunk, len(windows))
	pages := make([]*int, len(windows))
	for i, w := range windows {
		pages[i] = doc.PageAt(w.StartChar)
		chunks[i] = models.Chunk{
			FileID:        file.ID,
			ChunkIndex:    w.Index,
			Text:          w.Text,
			PageNumber:    pages[i],
			ChunkStrategy: string(w.Strategy),
			StartChar:     &w.StartChar,
			EndChar:       &w.EndChar,
		}
	}
	inserted, err := o.files.CreateChunksBatch(ctx, chunks)
	if err != nil {
		return nil, err
	}
	metrics.CaptureStage("metadata_write", time.Since(stageStart))
	metrics.AddChunks(int(inserted))

	// Stage 5: vectors
	stageStart = time.Now()
	createdAt := o.opts.Now().UnixMilli()
	entries := make([]models.VectorEntry, len(windows))
	for i, w := range windows {
		entries[i] = models.VectorEntry{
			FileID:           file.ID,
			ChunkIndex:       w.Index,
			PageNumber:       pages[i],
			ChunkStrategy:    string(w.Strategy),
			Embedding:        embedded.Vectors[i],
			CreatedAt:        createdAt,
			EmbeddingVersion: o.opts.EmbeddingVersion,
		}
	}
	written, err := o.vectors.Insert(ctx, entries)
	if err != nil {
		return nil, err
	}
	metrics.CaptureStage("vector_write", time.Since(stageStart))
	metrics.AddVectors(written.InsertedCount)

	res := &Result{
		ChunksCreated:   len(chunks),
		VectorsInserted: written.InsertedCount,
		Elapsed:         time.Since(start),
	}
	log.Info("document processed",
		"chunks", res.ChunksCreated,
		"chunk_rows_inserted", inserted,
		"vectors", res.VectorsInserted,
		"prompt_tokens", embedded.Usage.PromptTokens,
		"elapsed", res.Elapsed,
	)
	return res, nil
}
