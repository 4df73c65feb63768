package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	TypeFileRequeue   = "file:requeue"
	TypeFileReconcile = "file:reconcile"
)

type FilePayload struct {
	FileID string `json:"file_id"`
}

func NewRequeueTask(fileID uuid.UUID) (*asynq.Task, error) {
	return newFileTask(TypeFileRequeue, fileID)
}

func NewReconcileTask(fileID uuid.UUID) (*asynq.Task, error) {
	return newFileTask(TypeFileReconcile, fileID)
}

func newFileTask(taskType string, fileID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(FilePayload{FileID: fileID.String()})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(taskType, data), nil
}

// ParseFilePayload decodes the file id carried by an admin task.
func ParseFilePayload(t *asynq.Task) (uuid.UUID, error) {
	var p FilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	id, err := uuid.Parse(p.FileID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse file ID: %w", err)
	}
	return id, nil
}
