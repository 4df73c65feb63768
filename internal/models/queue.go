package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusSuccess    QueueStatus = "success"
	QueueStatusError      QueueStatus = "error"
)

var ErrIllegalTransition = errors.New("illegal queue status transition")

// QueueItem tracks a single file through ingestion. There is exactly one per File.
type QueueItem struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	FileID    uuid.UUID   `json:"file_id" db:"file_id"`
	Status    QueueStatus `json:"status" db:"status"`
	LastError *string     `json:"last_error,omitempty" db:"last_error"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

func (s QueueStatus) Valid() bool {
	switch s {
	case QueueStatusQueued, QueueStatusProcessing, QueueStatusSuccess, QueueStatusError:
		return true
	}
	return false
}

// Terminal reports whether no worker transition leaves s.
func (s QueueStatus) Terminal() bool {
	return s == QueueStatusSuccess || s == QueueStatusError
}

// Transition validates a worker-driven status change. Only
// queued -> processing and processing -> success|error are legal; nothing
// returns to queued automatically.
func Transition(from, to QueueStatus) error {
	switch {
	case from == QueueStatusQueued && to == QueueStatusProcessing:
		return nil
	case from == QueueStatusProcessing && to.Terminal():
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}

func ParseQueueStatus(s string) (QueueStatus, error) {
	st := QueueStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown queue status %q", s)
	}
	return st, nil
}
