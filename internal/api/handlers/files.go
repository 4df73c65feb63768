package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/admin"
	"github.com/nikhilbhutani/docingest/internal/metastore"
	"github.com/nikhilbhutani/docingest/internal/models"
)

type QueueReader interface {
	ListQueueByStatus(ctx context.Context, status models.QueueStatus, limit int) ([]models.QueueItem, error)
	ListChunksByFile(ctx context.Context, fileID uuid.UUID, limit, offset int) ([]models.Chunk, error)
}

type AdminService interface {
	Status(ctx context.Context, fileID uuid.UUID) (*admin.FileStatus, error)
	Reconcile(ctx context.Context, fileID uuid.UUID) (*admin.Consistency, error)
}

type TaskEnqueuer interface {
	EnqueueRequeue(ctx context.Context, fileID uuid.UUID) (string, error)
}

type FileHandler struct {
	store  QueueReader
	admin  AdminService
	tasks  TaskEnqueuer
	logger *slog.Logger
}

func NewFileHandler(store QueueReader, adminSvc AdminService, tasks TaskEnqueuer) *FileHandler {
	return &FileHandler{
		store:  store,
		admin:  adminSvc,
		tasks:  tasks,
		logger: slog.Default().With("component", "api"),
	}
}

func (h *FileHandler) ListQueue(w http.ResponseWriter, r *http.Request) {
	var status models.QueueStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed, err := models.ParseQueueStatus(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		status = parsed
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	items, err := h.store.ListQueueByStatus(r.Context(), status, limit)
	if err != nil {
		h.internalError(w, "list queue", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	st, err := h.admin.Status(r.Context(), id)
	if err != nil {
		h.storeError(w, "file status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *FileHandler) Chunks(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	chunks, err := h.store.ListChunksByFile(r.Context(), id, limit, offset)
	if err != nil {
		h.internalError(w, "list chunks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": chunks, "count": len(chunks)})
}

func (h *FileHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	c, err := h.admin.Reconcile(r.Context(), id)
	if err != nil {
		h.internalError(w, "reconcile", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// Requeue schedules the requeue as an admin task and answers 202.
func (h *FileHandler) Requeue(w http.ResponseWriter, r *http.Request) {
	id, ok := fileID(w, r)
	if !ok {
		return
	}
	st, err := h.admin.Status(r.Context(), id)
	if err != nil {
		h.storeError(w, "file status", err)
		return
	}
	if !st.Item.Status.Terminal() {
		writeError(w, http.StatusConflict, "file is "+string(st.Item.Status))
		return
	}

	taskID, err := h.tasks.EnqueueRequeue(r.Context(), id)
	if err != nil {
		h.internalError(w, "enqueue requeue", err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "file_id": id.String()})
}

func fileID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file ID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *FileHandler) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, metastore.ErrFileNotFound) || errors.Is(err, metastore.ErrQueueItemNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	h.internalError(w, op, err)
}

func (h *FileHandler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
