package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/metastore"
	"github.com/nikhilbhutani/docingest/internal/models"
)

// ErrItemBusy is returned when a requeue targets an item that is not in a
// terminal state: queued, being processed, or held by another requeue.
var ErrItemBusy = errors.New("queue item is not finished")

var terminal = []models.QueueStatus{models.QueueStatusSuccess, models.QueueStatusError}

type MetadataStore interface {
	GetFile(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetQueueItemByFile(ctx context.Context, fileID uuid.UUID) (*models.QueueItem, error)
	SetQueueStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus, lastError *string) error
	CompareAndSetQueueStatus(ctx context.Context, id uuid.UUID, from []models.QueueStatus, status models.QueueStatus, lastError *string) error
	CountChunksByFile(ctx context.Context, fileID uuid.UUID) (int, error)
	DeleteChunksByFile(ctx context.Context, fileID uuid.UUID) (int64, error)
}

type VectorStore interface {
	CountByFile(ctx context.Context, fileID uuid.UUID) (int, error)
	DeleteByFile(ctx context.Context, fileID uuid.UUID) error
}

type FileStatus struct {
	File *models.File      `json:"file"`
	Item *models.QueueItem `json:"queue_item"`
}

type Consistency struct {
	FileID     uuid.UUID `json:"file_id"`
	Chunks     int       `json:"chunks"`
	Vectors    int       `json:"vectors"`
	Consistent bool      `json:"consistent"`
}

// Service holds the manual operations on processed files: inspecting
// status, comparing chunk and vector counts, and putting a file back in the
// queue.
type Service struct {
	meta    MetadataStore
	vectors VectorStore
	logger  *slog.Logger
}

func NewService(meta MetadataStore, vectors VectorStore) *Service {
	return &Service{
		meta:    meta,
		vectors: vectors,
		logger:  slog.Default().With("component", "admin"),
	}
}

func (s *Service) Status(ctx context.Context, fileID uuid.UUID) (*FileStatus, error) {
	file, err := s.meta.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	item, err := s.meta.GetQueueItemByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return &FileStatus{File: file, Item: item}, nil
}

// Reconcile counts a file's chunks and vector entries. A successfully
// processed file should have equal counts.
func (s *Service) Reconcile(ctx context.Context, fileID uuid.UUID) (*Consistency, error) {
	chunks, err := s.meta.CountChunksByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	vectors, err := s.vectors.CountByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	c := &Consistency{
		FileID:     fileID,
		Chunks:     chunks,
		Vectors:    vectors,
		Consistent: chunks == vectors,
	}
	if !c.Consistent {
		s.logger.Warn("chunk and vector counts differ", "file_id", fileID, "chunks", chunks, "vectors", vectors)
	}
	return c, nil
}

// Requeue clears a file's chunks and vectors and sets its queue item back to
// queued so the worker processes it again. Only success and error items are
// requeued. The item is held in processing while its stores are cleared, so
// neither the worker nor a concurrent requeue touches it in between.
func (s *Service) Requeue(ctx context.Context, fileID uuid.UUID) (*models.QueueItem, error) {
	item, err := s.meta.GetQueueItemByFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !item.Status.Terminal() {
		return nil, fmt.Errorf("%w: file %s is %s", ErrItemBusy, fileID, item.Status)
	}

	err = s.meta.CompareAndSetQueueStatus(ctx, item.ID, terminal, models.QueueStatusProcessing, item.LastError)
	if errors.Is(err, metastore.ErrStatusConflict) {
		return nil, fmt.Errorf("%w: file %s changed status", ErrItemBusy, fileID)
	}
	if err != nil {
		return nil, err
	}

	deleted, err := s.clear(ctx, fileID)
	if err != nil {
		if rerr := s.meta.SetQueueStatus(ctx, item.ID, item.Status, item.LastError); rerr != nil {
			s.logger.Error("failed to restore status after requeue failure",
				"file_id", fileID, "queue_id", item.ID, "status", item.Status, "error", rerr)
		}
		return nil, err
	}
	if err := s.meta.SetQueueStatus(ctx, item.ID, models.QueueStatusQueued, nil); err != nil {
		return nil, err
	}

	s.logger.Info("file requeued", "file_id", fileID, "queue_id", item.ID,
		"previous_status", item.Status, "chunks_deleted", deleted)

	item.Status = models.QueueStatusQueued
	item.LastError = nil
	return item, nil
}

// clear deletes the file's vectors, then its chunks.
func (s *Service) clear(ctx context.Context, fileID uuid.UUID) (int64, error) {
	if err := s.vectors.DeleteByFile(ctx, fileID); err != nil {
		return 0, err
	}
	return s.meta.DeleteChunksByFile(ctx, fileID)
}
