// Package cli implements the ingestctl operator commands.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/docingest/internal/admin"
	"github.com/nikhilbhutani/docingest/internal/embedding"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/vectorstore"
)

type Registrar interface {
	RegisterFile(ctx context.Context, f *models.File) (*models.QueueItem, error)
}

type AdminService interface {
	Status(ctx context.Context, fileID uuid.UUID) (*admin.FileStatus, error)
	Reconcile(ctx context.Context, fileID uuid.UUID) (*admin.Consistency, error)
	Requeue(ctx context.Context, fileID uuid.UUID) (*models.QueueItem, error)
}

type TaskEnqueuer interface {
	EnqueueRequeue(ctx context.Context, fileID uuid.UUID) (string, error)
	EnqueueReconcile(ctx context.Context, fileID uuid.UUID) (string, error)
}

type VectorIndex interface {
	Provision(ctx context.Context) error
	SearchByFile(ctx context.Context, fileID uuid.UUID, query []float32, topK int) ([]vectorstore.SearchResult, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) (*embedding.BatchResult, error)
}

// Services is what the commands operate on. Fields a command does not use
// may be nil.
type Services struct {
	Files    Registrar
	Admin    AdminService
	Tasks    TaskEnqueuer
	Vectors  VectorIndex
	Embedder Embedder
	Migrate  func(ctx context.Context) ([]string, error)
	Close    func()
}

// Opener connects to the backing stores. It runs once, on the first command
// that needs them.
type Opener func(ctx context.Context) (*Services, error)

var (
	opener    Opener
	svc       *Services
	jwtSecret string
)

var rootCmd = &cobra.Command{
	Use:           "ingestctl",
	Short:         "Operate the document ingestion pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. open is called lazily; secret signs tokens
// for the token command.
func Execute(open Opener, secret string) error {
	opener = open
	jwtSecret = secret
	svc = nil
	defer func() {
		if svc != nil && svc.Close != nil {
			svc.Close()
		}
		svc = nil
	}()
	return rootCmd.Execute()
}

func services(ctx context.Context) (*Services, error) {
	if svc != nil {
		return svc, nil
	}
	if opener == nil {
		return nil, errors.New("services not configured")
	}
	s, err := opener(ctx)
	if err != nil {
		return nil, err
	}
	svc = s
	return svc, nil
}

func parseFileID(arg string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid file ID %q", arg)
	}
	return id, nil
}
