package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/qdrant/go-client/qdrant"
)

// qdrantAPI is the part of *qdrant.Client the store uses.
type qdrantAPI interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Count(ctx context.Context, request *qdrant.CountPoints) (uint64, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

type QdrantStore struct {
	client     qdrantAPI
	collection string
	dimension  int
	logger     *slog.Logger
}

func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	return newQdrantStore(client, cfg.Collection, cfg.Dimension)
}

func newQdrantStore(client qdrantAPI, collection string, dimension int) (*QdrantStore, error) {
	if collection == "" {
		return nil, fmt.Errorf("empty qdrant collection name")
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid vector dimension %d", dimension)
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
		dimension:  dimension,
		logger:     slog.Default().With("component", "vectorstore", "backend", "qdrant"),
	}, nil
}

func (s *QdrantStore) Dimension() int { return s.dimension }

func (s *QdrantStore) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Error("close qdrant client", "error", err)
	}
}

func (s *QdrantStore) Provision(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", s.collection, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection %s: %w", s.collection, err)
	}
	s.logger.Info("collection provisioned", "collection", s.collection, "dimension", s.dimension)
	return nil
}

// Insert upserts all entries in one request and waits for it to be applied.
// Point ids are random UUIDs.
func (s *QdrantStore) Insert(ctx context.Context, entries []models.VectorEntry) (*InsertResult, error) {
	if len(entries) == 0 {
		return &InsertResult{}, nil
	}
	if err := checkDimensions(entries, s.dimension); err != nil {
		return nil, err
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return nil, fmt.Errorf("%w: check collection %s: %w", ErrVectorWrite, s.collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: collection %s does not exist", ErrCollectionNotReady, s.collection)
	}

	points := make([]*qdrant.PointStruct, len(entries))
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = uuid.NewString()
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(ids[i]),
			Vectors: qdrant.NewVectors(e.Embedding...),
			Payload: qdrant.NewValueMap(entryPayload(e)),
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert %d points: %w", ErrVectorWrite, len(points), err)
	}

	return &InsertResult{InsertedCount: len(ids), InsertedIDs: ids}, nil
}

func (s *QdrantStore) SearchByFile(ctx context.Context, fileID uuid.UUID, query []float32, topK int) ([]SearchResult, error) {
	if len(query) != s.dimension {
		return nil, fmt.Errorf("query dimension %d, index expects %d", len(query), s.dimension)
	}
	if topK <= 0 {
		topK = 10
	}

	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         fileFilter(fileID),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		r := SearchResult{
			ID:         hit.GetId().GetUuid(),
			FileID:     fileID,
			ChunkIndex: int(hit.Payload["chunk_index"].GetIntegerValue()),
			Score:      float64(hit.GetScore()),
		}
		if v, ok := hit.Payload["page_number"]; ok {
			p := int(v.GetIntegerValue())
			r.PageNumber = &p
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *QdrantStore) CountByFile(ctx context.Context, fileID uuid.UUID) (int, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Filter:         fileFilter(fileID),
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count vectors for %s: %w", fileID, err)
	}
	return int(n), nil
}

func (s *QdrantStore) DeleteByFile(ctx context.Context, fileID uuid.UUID) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(fileFilter(fileID)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("%w: delete vectors for %s: %w", ErrVectorWrite, fileID, err)
	}
	return nil
}

func entryPayload(e models.VectorEntry) map[string]any {
	payload := map[string]any{
		"file_id":        e.FileID.String(),
		"chunk_index":    int64(e.ChunkIndex),
		"chunk_strategy": e.ChunkStrategy,
		"created_at":     e.CreatedAt,
	}
	if e.PageNumber != nil {
		payload["page_number"] = int64(*e.PageNumber)
	}
	if e.EmbeddingVersion != "" {
		payload["embedding_version"] = e.EmbeddingVersion
	}
	return payload
}

func fileFilter(fileID uuid.UUID) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("file_id", fileID.String()),
		},
	}
}
