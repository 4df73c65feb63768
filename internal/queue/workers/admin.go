package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/nikhilbhutani/docingest/internal/admin"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/queue"
)

type AdminService interface {
	Reconcile(ctx context.Context, fileID uuid.UUID) (*admin.Consistency, error)
	Requeue(ctx context.Context, fileID uuid.UUID) (*models.QueueItem, error)
}

// AdminWorker runs admin tasks enqueued by the API and CLI.
type AdminWorker struct {
	svc    AdminService
	logger *slog.Logger
}

func NewAdminWorker(svc AdminService) *AdminWorker {
	return &AdminWorker{
		svc:    svc,
		logger: slog.Default().With("component", "admin_tasks"),
	}
}

// Register adds the admin handlers to r.
func (w *AdminWorker) Register(r *queue.HandlersRegistry) {
	r.Register(queue.TypeFileRequeue, w.ProcessRequeue)
	r.Register(queue.TypeFileReconcile, w.ProcessReconcile)
}

func (w *AdminWorker) ProcessRequeue(ctx context.Context, t *asynq.Task) error {
	fileID, err := queue.ParseFilePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	item, err := w.svc.Requeue(ctx, fileID)
	if err != nil {
		return fmt.Errorf("requeue file %s: %w", fileID, err)
	}

	w.logger.Info("requeue task done", "file_id", fileID, "queue_id", item.ID)
	return nil
}

func (w *AdminWorker) ProcessReconcile(ctx context.Context, t *asynq.Task) error {
	fileID, err := queue.ParseFilePayload(t)
	if err != nil {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	c, err := w.svc.Reconcile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("reconcile file %s: %w", fileID, err)
	}

	w.logger.Info("reconcile task done",
		"file_id", fileID,
		"chunks", c.Chunks,
		"vectors", c.Vectors,
		"consistent", c.Consistent,
	)
	return nil
}
