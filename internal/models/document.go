package models

import (
	"time"

	"github.com/google/uuid"
)

// File is an uploaded document. It is owned by the upload collaborator and
// never mutated by the ingestion pipeline.
type File struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Locator   string    `json:"locator" db:"locator"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	MimeType  string    `json:"mime_type" db:"mime_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Chunk is one text window of a file as persisted in the metadata store.
type Chunk struct {
	ID            uuid.UUID `json:"id" db:"id"`
	FileID        uuid.UUID `json:"file_id" db:"file_id"`
	ChunkIndex    int       `json:"chunk_index" db:"chunk_index"`
	Text          string    `json:"text" db:"text"`
	PageNumber    *int      `json:"page_number,omitempty" db:"page_number"`
	ChunkStrategy string    `json:"chunk_strategy" db:"chunk_strategy"`
	StartChar     *int      `json:"start_char,omitempty" db:"start_char"`
	EndChar       *int      `json:"end_char,omitempty" db:"end_char"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// VectorEntry is the vector-store twin of a Chunk. The two are joined by
// value on (FileID, ChunkIndex), never by a foreign key.
type VectorEntry struct {
	ID               string    `json:"id"`
	FileID           uuid.UUID `json:"file_id"`
	ChunkIndex       int       `json:"chunk_index"`
	PageNumber       *int      `json:"page_number,omitempty"`
	ChunkStrategy    string    `json:"chunk_strategy"`
	Embedding        []float32 `json:"-"`
	CreatedAt        int64     `json:"created_at"` // epoch millis
	EmbeddingVersion string    `json:"embedding_version,omitempty"`
}
