package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nikhilbhutani/docingest/internal/database"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/pgvector/pgvector-go"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

type PgVectorStore struct {
	db        database.DBTX
	table     string
	ident     string
	dimension int
	closeFn   func()
	logger    *slog.Logger
}

// NewPgVectorStore returns a store backed by table. closeFn, when not nil, is
// called by Close and should release db.
func NewPgVectorStore(db database.DBTX, table string, dimension int, closeFn func()) (*PgVectorStore, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid vector table name %q", table)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &PgVectorStore{
		db:        db,
		table:     table,
		ident:     pgx.Identifier{table}.Sanitize(),
		dimension: dimension,
		closeFn:   closeFn,
		logger:    slog.Default().With("component", "vectorstore", "backend", "pgvector"),
	}, nil
}

func (s *PgVectorStore) Dimension() int { return s.dimension }

func (s *PgVectorStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func (s *PgVectorStore) Provision(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS ` + s.ident + ` (
			id BIGSERIAL PRIMARY KEY,
			file_id UUID NOT NULL,
			chunk_index INT NOT NULL,
			page_number INT,
			chunk_strategy TEXT NOT NULL,
			embedding vector(` + strconv.Itoa(s.dimension) + `) NOT NULL,
			created_at BIGINT NOT NULL,
			embedding_version TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{s.table + "_file_idx"}.Sanitize() +
			` ON ` + s.ident + ` (file_id, chunk_index)`,
		`CREATE INDEX IF NOT EXISTS ` + pgx.Identifier{s.table + "_embedding_hnsw"}.Sanitize() +
			` ON ` + s.ident + ` USING hnsw (embedding vector_cosine_ops)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("provision %s: %w", s.table, err)
		}
	}
	s.logger.Info("vector table provisioned", "table", s.table, "dimension", s.dimension)
	return nil
}

func (s *PgVectorStore) ready(ctx context.Context) error {
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, s.table).Scan(&exists); err != nil {
		return fmt.Errorf("%w: check table %s: %w", ErrVectorWrite, s.table, err)
	}
	if !exists {
		return fmt.Errorf("%w: table %s does not exist", ErrCollectionNotReady, s.table)
	}
	return nil
}

// Insert writes all entries in a single transaction.
func (s *PgVectorStore) Insert(ctx context.Context, entries []models.VectorEntry) (*InsertResult, error) {
	if len(entries) == 0 {
		return &InsertResult{}, nil
	}
	if err := checkDimensions(entries, s.dimension); err != nil {
		return nil, err
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", ErrVectorWrite, err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO ` + s.ident + ` (file_id, chunk_index, page_number, chunk_strategy, embedding, created_at, embedding_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		var version *string
		if e.EmbeddingVersion != "" {
			version = &e.EmbeddingVersion
		}
		var id int64
		err := tx.QueryRow(ctx, query,
			e.FileID, e.ChunkIndex, e.PageNumber, e.ChunkStrategy,
			pgvector.NewVector(e.Embedding), e.CreatedAt, version,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("%w: insert chunk %d: %w", ErrVectorWrite, e.ChunkIndex, err)
		}
		ids = append(ids, strconv.FormatInt(id, 10))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: commit: %w", ErrVectorWrite, err)
	}

	return &InsertResult{InsertedCount: len(ids), InsertedIDs: ids}, nil
}

func (s *PgVectorStore) SearchByFile(ctx context.Context, fileID uuid.UUID, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(query), s.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, chunk_index, page_number, 1 - (embedding <=> $2) AS score
		 FROM `+s.ident+`
		 WHERE file_id = $1
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		fileID, pgvector.NewVector(query), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r    = SearchResult{FileID: fileID}
			id   int64
			page *int32
		)
		if err := rows.Scan(&id, &r.ChunkIndex, &page, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.ID = strconv.FormatInt(id, 10)
		if page != nil {
			p := int(*page)
			r.PageNumber = &p
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

func (s *PgVectorStore) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT count(*) FROM `+s.ident+` WHERE file_id = $1`, fileID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vectors for %s: %w", fileID, err)
	}
	return n, nil
}

func (s *PgVectorStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.ident+` WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("%w: delete vectors for %s: %w", ErrVectorWrite, fileID, err)
	}
	return nil
}
