package metastore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *Store) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, New(mock)
}

func ptr[T any](v T) *T { return &v }

var queueCols = []string{"id", "file_id", "status", "last_error", "created_at", "updated_at"}

func TestCreateChunksBatch_SingleStatement(t *testing.T) {
	mock, store := newMock(t)
	fileID := uuid.New()

	chunks := []models.Chunk{
		{FileID: fileID, ChunkIndex: 0, Text: "alpha", PageNumber: ptr(1), ChunkStrategy: "sliding_window", StartChar: ptr(0), EndChar: ptr(5)},
		{FileID: fileID, ChunkIndex: 1, Text: "beta", ChunkStrategy: "sliding_window", StartChar: ptr(5), EndChar: ptr(9)},
	}

	mock.ExpectExec("INSERT INTO chunks").
		WithArgs(
			[]string{fileID.String(), fileID.String()},
			[]int32{0, 1},
			[]string{"alpha", "beta"},
			[]*int32{ptr(int32(1)), nil},
			[]string{"sliding_window", "sliding_window"},
			[]*int32{ptr(int32(0)), ptr(int32(5))},
			[]*int32{ptr(int32(5)), ptr(int32(9))},
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	n, err := store.CreateChunksBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChunksBatch_DuplicatesSkipped(t *testing.T) {
	mock, store := newMock(t)
	fileID := uuid.New()

	chunks := []models.Chunk{
		{FileID: fileID, ChunkIndex: 0, Text: "a", ChunkStrategy: "sliding_window"},
		{FileID: fileID, ChunkIndex: 1, Text: "b", ChunkStrategy: "sliding_window"},
	}
	mock.ExpectExec("ON CONFLICT \\(file_id, chunk_index\\) DO NOTHING").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	n, err := store.CreateChunksBatch(context.Background(), chunks)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCreateChunksBatch_Empty(t *testing.T) {
	mock, store := newMock(t)

	n, err := store.CreateChunksBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateChunksBatch_Failure(t *testing.T) {
	mock, store := newMock(t)

	mock.ExpectExec("INSERT INTO chunks").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	_, err := store.CreateChunksBatch(context.Background(), []models.Chunk{{FileID: uuid.New(), Text: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadataWrite)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSetQueueStatus(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()
	msg := "boom"

	mock.ExpectExec("UPDATE ingestion_queue SET status").
		WithArgs(id, "error", &msg).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetQueueStatus(context.Background(), id, models.QueueStatusError, &msg))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetQueueStatus_NotFound(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE ingestion_queue SET status").
		WithArgs(id, "success", (*string)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.SetQueueStatus(context.Background(), id, models.QueueStatusSuccess, nil)
	assert.ErrorIs(t, err, ErrQueueItemNotFound)
}

func TestCompareAndSetQueueStatus(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()
	terminal := []models.QueueStatus{models.QueueStatusSuccess, models.QueueStatusError}

	mock.ExpectExec("WHERE id = \\$1 AND status = ANY\\(\\$4\\)").
		WithArgs(id, "processing", pgxmock.AnyArg(), []string{"success", "error"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("WHERE id = \\$1 AND status = ANY\\(\\$4\\)").
		WithArgs(id, "processing", pgxmock.AnyArg(), []string{"success", "error"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.CompareAndSetQueueStatus(context.Background(), id, terminal, models.QueueStatusProcessing, nil))

	err := store.CompareAndSetQueueStatus(context.Background(), id, terminal, models.QueueStatusProcessing, nil)
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListQueued_OldestFirst(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()
	older, newer := uuid.New(), uuid.New()

	mock.ExpectQuery("WHERE status = \\$1 ORDER BY created_at, id").
		WithArgs("queued").
		WillReturnRows(pgxmock.NewRows(queueCols).
			AddRow(older, uuid.New(), "queued", (*string)(nil), now.Add(-time.Minute), now.Add(-time.Minute)).
			AddRow(newer, uuid.New(), "queued", (*string)(nil), now, now))

	items, err := store.ListQueued(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, older, items[0].ID)
	assert.Equal(t, models.QueueStatusQueued, items[0].Status)
	assert.Nil(t, items[0].LastError)
}

func TestGetQueueItem_NotFound(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()

	mock.ExpectQuery("FROM ingestion_queue WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetQueueItem(context.Background(), id)
	assert.ErrorIs(t, err, ErrQueueItemNotFound)
}

func TestGetFile(t *testing.T) {
	mock, store := newMock(t)
	id := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM files WHERE id = \\$1").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "locator", "size_bytes", "mime_type", "created_at"}).
			AddRow(id, "report.pdf", "/data/report.pdf", int64(2048), "application/pdf", now))

	f, err := store.GetFile(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", f.Name)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.EqualValues(t, 2048, f.SizeBytes)
}

func TestRegisterFile(t *testing.T) {
	mock, store := newMock(t)
	now := time.Now()
	f := &models.File{ID: uuid.New(), Name: "notes.txt", Locator: "/tmp/notes.txt", SizeBytes: 12, MimeType: "text/plain"}
	queueID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO files").
		WithArgs(f.ID, f.Name, f.Locator, f.SizeBytes, f.MimeType).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))
	mock.ExpectQuery("INSERT INTO ingestion_queue").
		WithArgs(f.ID, "queued").
		WillReturnRows(pgxmock.NewRows(queueCols).AddRow(queueID, f.ID, "queued", (*string)(nil), now, now))
	mock.ExpectCommit()

	item, err := store.RegisterFile(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, queueID, item.ID)
	assert.Equal(t, models.QueueStatusQueued, item.Status)
	assert.Equal(t, now, f.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterFile_RollsBack(t *testing.T) {
	mock, store := newMock(t)
	f := &models.File{Name: "a.pdf", Locator: "/a.pdf", MimeType: "application/pdf"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO files").
		WithArgs(pgxmock.AnyArg(), f.Name, f.Locator, f.SizeBytes, f.MimeType).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := store.RegisterFile(context.Background(), f)
	assert.ErrorIs(t, err, ErrMetadataWrite)
	assert.NotEqual(t, uuid.Nil, f.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListChunksByFile(t *testing.T) {
	mock, store := newMock(t)
	fileID := uuid.New()
	now := time.Now()

	mock.ExpectQuery("FROM chunks WHERE file_id = \\$1 ORDER BY chunk_index").
		WithArgs(fileID, 100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "file_id", "chunk_index", "text", "page_number", "chunk_strategy", "start_char", "end_char", "created_at"}).
			AddRow(uuid.New(), fileID, 0, "hello", ptr(int32(2)), "sliding_window", ptr(int32(0)), ptr(int32(5)), now).
			AddRow(uuid.New(), fileID, 1, "world", (*int32)(nil), "sliding_window", (*int32)(nil), (*int32)(nil), now))

	chunks, err := store.ListChunksByFile(context.Background(), fileID, 0, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, 2, *chunks[0].PageNumber)
	assert.Equal(t, 5, *chunks[0].EndChar)
	assert.Nil(t, chunks[1].PageNumber)
}

func TestCountAndDeleteChunks(t *testing.T) {
	mock, store := newMock(t)
	fileID := uuid.New()

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM chunks").
		WithArgs(fileID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs(fileID).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := store.CountChunksByFile(context.Background(), fileID)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	deleted, err := store.DeleteChunksByFile(context.Background(), fileID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, deleted)
}
