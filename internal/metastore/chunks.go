package metastore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/models"
)

const insertChunksSQL = `
	INSERT INTO chunks (file_id, chunk_index, text, page_number, chunk_strategy, start_char, end_char)
	SELECT t.file_id::uuid, t.chunk_index, t.text, t.page_number, t.chunk_strategy, t.start_char, t.end_char
	FROM unnest($1::text[], $2::int[], $3::text[], $4::int[], $5::text[], $6::int[], $7::int[])
		AS t(file_id, chunk_index, text, page_number, chunk_strategy, start_char, end_char)
	ON CONFLICT (file_id, chunk_index) DO NOTHING`

// CreateChunksBatch writes all chunks in one statement and returns how many
// rows were inserted. Rows whose (file_id, chunk_index) already exist are
// skipped without error.
func (s *Store) CreateChunksBatch(ctx context.Context, chunks []models.Chunk) (int64, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	n := len(chunks)
	var (
		fileIDs    = make([]string, n)
		indexes    = make([]int32, n)
		texts      = make([]string, n)
		pages      = make([]*int32, n)
		strategies = make([]string, n)
		starts     = make([]*int32, n)
		ends       = make([]*int32, n)
	)
	for i, c := range chunks {
		fileIDs[i] = c.FileID.String()
		indexes[i] = int32(c.ChunkIndex)
		texts[i] = c.Text
		pages[i] = int32Ptr(c.PageNumber)
		strategies[i] = c.ChunkStrategy
		starts[i] = int32Ptr(c.StartChar)
		ends[i] = int32Ptr(c.EndChar)
	}

	tag, err := s.db.Exec(ctx, insertChunksSQL, fileIDs, indexes, texts, pages, strategies, starts, ends)
	if err != nil {
		return 0, fmt.Errorf("%w: insert %d chunks: %w", ErrMetadataWrite, n, err)
	}

	inserted := tag.RowsAffected()
	if skipped := int64(n) - inserted; skipped > 0 {
		s.logger.Warn("duplicate chunks skipped", "file_id", chunks[0].FileID, "skipped", skipped)
	}
	return inserted, nil
}

func (s *Store) CountChunksByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM chunks WHERE file_id = $1`, fileID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks for %s: %w", fileID, err)
	}
	return n, nil
}

func (s *Store) ListChunksByFile(ctx context.Context, fileID uuid.UUID, limit, offset int) ([]models.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, file_id, chunk_index, text, page_number, chunk_strategy, start_char, end_char, created_at
		 FROM chunks WHERE file_id = $1 ORDER BY chunk_index LIMIT $2 OFFSET $3`,
		fileID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunks for %s: %w", fileID, err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			c                models.Chunk
			page, start, end *int32
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.ChunkIndex, &c.Text, &page, &c.ChunkStrategy, &start, &end, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.PageNumber, c.StartChar, c.EndChar = intPtr(page), intPtr(start), intPtr(end)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}

func (s *Store) DeleteChunksByFile(ctx context.Context, fileID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete chunks for %s: %w", ErrMetadataWrite, fileID, err)
	}
	return tag.RowsAffected(), nil
}

func int32Ptr(v *int) *int32 {
	if v == nil {
		return nil
	}
	n := int32(*v)
	return &n
}

func intPtr(v *int32) *int {
	if v == nil {
		return nil
	}
	n := int(*v)
	return &n
}
