package metastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/docingest/internal/database"
	"github.com/nikhilbhutani/docingest/internal/models"
)

var (
	ErrMetadataWrite     = errors.New("metadata store write failed")
	ErrQueueItemNotFound = errors.New("queue item not found")
	ErrFileNotFound      = errors.New("file not found")
	ErrStatusConflict    = errors.New("queue item status changed")
)

// Store is the PostgreSQL gateway for files, queue items and chunks.
type Store struct {
	db     database.DBTX
	logger *slog.Logger
}

func New(db database.DBTX) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "metastore"),
	}
}

const fileColumns = `id, name, locator, size_bytes, mime_type, created_at`

const queueColumns = `id, file_id, status, last_error, created_at, updated_at`

func (s *Store) GetFile(ctx context.Context, id uuid.UUID) (*models.File, error) {
	var f models.File
	err := s.db.QueryRow(ctx, `SELECT `+fileColumns+` FROM files WHERE id = $1`, id).
		Scan(&f.ID, &f.Name, &f.Locator, &f.SizeBytes, &f.MimeType, &f.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return &f, nil
}

// RegisterFile inserts a file and its queued queue item in one transaction.
// It plays the upload collaborator for local use.
func (s *Store) RegisterFile(ctx context.Context, f *models.File) (*models.QueueItem, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin register tx: %w", ErrMetadataWrite, err)
	}
	defer tx.Rollback(ctx)

	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO files (id, name, locator, size_bytes, mime_type)
		 VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		f.ID, f.Name, f.Locator, f.SizeBytes, f.MimeType,
	).Scan(&f.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert file: %w", ErrMetadataWrite, err)
	}

	item, err := scanQueueItem(tx.QueryRow(ctx,
		`INSERT INTO ingestion_queue (file_id, status) VALUES ($1, $2) RETURNING `+queueColumns,
		f.ID, string(models.QueueStatusQueued),
	))
	if err != nil {
		return nil, fmt.Errorf("%w: insert queue item: %w", ErrMetadataWrite, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit register tx: %w", ErrMetadataWrite, err)
	}

	s.logger.Info("file registered", "file_id", f.ID, "queue_id", item.ID, "mime_type", f.MimeType)
	return item, nil
}

func (s *Store) GetQueueItem(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	item, err := scanQueueItem(s.db.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM ingestion_queue WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item %s: %w", id, err)
	}
	return item, nil
}

func (s *Store) GetQueueItemByFile(ctx context.Context, fileID uuid.UUID) (*models.QueueItem, error) {
	item, err := scanQueueItem(s.db.QueryRow(ctx,
		`SELECT `+queueColumns+` FROM ingestion_queue WHERE file_id = $1`, fileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: file %s", ErrQueueItemNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("get queue item for file %s: %w", fileID, err)
	}
	return item, nil
}

// ListQueued returns every queued item, oldest first.
func (s *Store) ListQueued(ctx context.Context) ([]models.QueueItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+queueColumns+` FROM ingestion_queue
		 WHERE status = $1 ORDER BY created_at, id`,
		string(models.QueueStatusQueued),
	)
	if err != nil {
		return nil, fmt.Errorf("list queued items: %w", err)
	}
	return collectQueueItems(rows)
}

// ListQueueByStatus lists items with the given status, newest update first.
// An empty status lists all items.
func (s *Store) ListQueueByStatus(ctx context.Context, status models.QueueStatus, limit int) ([]models.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+queueColumns+` FROM ingestion_queue
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY updated_at DESC, id LIMIT $2`,
		string(status), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	return collectQueueItems(rows)
}

// SetQueueStatus overwrites the status and last error of a queue item and
// stamps updated_at. Transitions are not validated here.
func (s *Store) SetQueueStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus, lastError *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE ingestion_queue SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		id, string(status), lastError,
	)
	if err != nil {
		return fmt.Errorf("%w: set queue status %s: %w", ErrMetadataWrite, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrQueueItemNotFound, id)
	}
	return nil
}

// CompareAndSetQueueStatus is SetQueueStatus guarded by the current status:
// the row is only updated while its status is one of from. ErrStatusConflict
// is returned when nothing matched.
func (s *Store) CompareAndSetQueueStatus(ctx context.Context, id uuid.UUID, from []models.QueueStatus, status models.QueueStatus, lastError *string) error {
	expected := make([]string, len(from))
	for i, st := range from {
		expected[i] = string(st)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE ingestion_queue SET status = $2, last_error = $3, updated_at = now()
		 WHERE id = $1 AND status = ANY($4)`,
		id, string(status), lastError, expected,
	)
	if err != nil {
		return fmt.Errorf("%w: set queue status %s: %w", ErrMetadataWrite, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s is not %v", ErrStatusConflict, id, from)
	}
	return nil
}

func scanQueueItem(row pgx.Row) (*models.QueueItem, error) {
	var (
		item   models.QueueItem
		status string
	)
	if err := row.Scan(&item.ID, &item.FileID, &status, &item.LastError, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	item.Status = models.QueueStatus(status)
	return &item, nil
}

func collectQueueItems(rows pgx.Rows) ([]models.QueueItem, error) {
	defer rows.Close()

	var items []models.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}
