package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/models"
)

var (
	ErrVectorWrite        = errors.New("vector store write failed")
	ErrCollectionNotReady = fmt.Errorf("%w: collection not ready", ErrVectorWrite)
)

type InsertResult struct {
	InsertedCount int
	InsertedIDs   []string
}

type SearchResult struct {
	ID         string    `json:"id"`
	FileID     uuid.UUID `json:"file_id"`
	ChunkIndex int       `json:"chunk_index"`
	PageNumber *int      `json:"page_number,omitempty"`
	Score      float64   `json:"score"`
}

// Store persists chunk embeddings. Entries are joined to chunks by value on
// (file_id, chunk_index).
type Store interface {
	// Insert writes all entries in one batched operation. It fails with
	// ErrCollectionNotReady when the index has not been provisioned.
	Insert(ctx context.Context, entries []models.VectorEntry) (*InsertResult, error)
	SearchByFile(ctx context.Context, fileID uuid.UUID, query []float32, topK int) ([]SearchResult, error)
	CountByFile(ctx context.Context, fileID uuid.UUID) (int, error)
	DeleteByFile(ctx context.Context, fileID uuid.UUID) error
	// Provision creates the index and its cosine similarity index. It is an
	// administrative step and is safe to repeat.
	Provision(ctx context.Context) error
	Dimension() int
	Close()
}

func checkDimensions(entries []models.VectorEntry, dim int) error {
	for _, e := range entries {
		if len(e.Embedding) != dim {
			return fmt.Errorf("%w: chunk %d of file %s has dimension %d, index expects %d",
				ErrVectorWrite, e.ChunkIndex, e.FileID, len(e.Embedding), dim)
		}
	}
	return nil
}
