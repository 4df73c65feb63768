package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/metrics"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/pipeline"
	"github.com/nikhilbhutani/docingest/internal/webhook"
)

type QueueStore interface {
	ListQueued(ctx context.Context) ([]models.QueueItem, error)
	GetQueueItem(ctx context.Context, id uuid.UUID) (*models.QueueItem, error)
	SetQueueStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus, lastError *string) error
}

type Processor interface {
	ProcessDocument(ctx context.Context, item models.QueueItem) (*pipeline.Result, error)
}

// Notifier is told about every recorded outcome. It must not block.
type Notifier interface {
	Notify(ev webhook.Event)
}

// Worker is a single polling loop. Each iteration claims at most one queued
// item, processes it to completion and records the outcome, then sleeps.
type Worker struct {
	store     QueueStore
	processor Processor
	claimer   Claimer
	notifier  Notifier
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func New(store QueueStore, processor Processor, claimer Claimer, interval time.Duration) *Worker {
	if claimer == nil {
		claimer = LocalClaimer{}
	}
	return &Worker{
		store:     store,
		processor: processor,
		claimer:   claimer,
		interval:  interval,
		logger:    slog.Default().With("component", "worker"),
	}
}

// WithNotifier sets the outcome notifier. Call before Start.
func (w *Worker) WithNotifier(n Notifier) *Worker {
	w.notifier = n
	return w
}

// Start launches the loop. It returns false if the worker is already running.
// The loop exits on Stop or when ctx is cancelled, but never in the middle of
// an item.
func (w *Worker) Start(ctx context.Context) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	w.stop = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx, w.stop, w.done)
	w.logger.Info("worker started", "poll_interval", w.interval)
	return true
}

// Stop signals the loop and waits for it to exit. An idle worker exits at
// once; a busy one finishes its current item first.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stop)
	done := w.done
	w.running = false
	w.mu.Unlock()

	<-done
	w.logger.Info("worker stopped")
}

func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		w.PollOnce(context.WithoutCancel(ctx))
		timer.Reset(w.interval)
	}
}

// PollOnce runs one iteration: it processes the oldest queued item this
// worker can claim and reports whether an item was processed.
func (w *Worker) PollOnce(ctx context.Context) bool {
	items, err := w.store.ListQueued(ctx)
	if err != nil {
		w.logger.Error("list queued items", "error", err)
		return false
	}
	metrics.SetQueueDepth(len(items))

	for _, item := range items {
		ok, err := w.claimer.Claim(ctx, item.ID)
		if err != nil {
			w.logger.Error("claim queue item", "queue_id", item.ID, "error", err)
			return false
		}
		if !ok {
			continue
		}

		current, err := w.store.GetQueueItem(ctx, item.ID)
		if err != nil || current.Status != models.QueueStatusQueued {
			if err != nil {
				w.logger.Error("re-read queue item", "queue_id", item.ID, "error", err)
			}
			w.release(ctx, item.ID)
			continue
		}

		w.process(ctx, *current)
		w.release(ctx, item.ID)
		return true
	}
	return false
}

func (w *Worker) process(ctx context.Context, item models.QueueItem) {
	log := w.logger.With("queue_id", item.ID, "file_id", item.FileID)
	start := time.Now()

	if err := models.Transition(item.Status, models.QueueStatusProcessing); err != nil {
		log.Error("refusing to process", "error", err)
		return
	}
	if err := w.store.SetQueueStatus(ctx, item.ID, models.QueueStatusProcessing, nil); err != nil {
		log.Error("mark processing", "error", err)
		return
	}
	item.Status = models.QueueStatusProcessing
	log.Info("processing started")

	res, err := w.safeProcess(ctx, item)
	if err != nil {
		msg := err.Error()
		if w.finish(ctx, log, item, models.QueueStatusError, &msg) {
			w.notify(webhook.Event{Type: webhook.EventFileFailed, Error: msg}, item, models.QueueStatusError)
		}
		metrics.CaptureItem("error", time.Since(start))
		log.Error("processing failed", "error", err, "elapsed", time.Since(start))
		return
	}

	if w.finish(ctx, log, item, models.QueueStatusSuccess, nil) {
		w.notify(webhook.Event{
			Type:            webhook.EventFileIngested,
			ChunksCreated:   res.ChunksCreated,
			VectorsInserted: res.VectorsInserted,
		}, item, models.QueueStatusSuccess)
	}
	metrics.CaptureItem("success", time.Since(start))
	log.Info("processing succeeded",
		"chunks", res.ChunksCreated,
		"vectors", res.VectorsInserted,
		"elapsed", res.Elapsed,
	)
}

func (w *Worker) finish(ctx context.Context, log *slog.Logger, item models.QueueItem, status models.QueueStatus, lastError *string) bool {
	if err := models.Transition(item.Status, status); err != nil {
		log.Error("record outcome", "error", err)
		return false
	}
	if err := w.store.SetQueueStatus(ctx, item.ID, status, lastError); err != nil {
		log.Error("record outcome", "status", status, "error", err)
		return false
	}
	return true
}

func (w *Worker) notify(ev webhook.Event, item models.QueueItem, status models.QueueStatus) {
	if w.notifier == nil {
		return
	}
	ev.FileID = item.FileID
	ev.QueueID = item.ID
	ev.Status = string(status)
	ev.At = time.Now().UTC()
	w.notifier.Notify(ev)
}

func (w *Worker) safeProcess(ctx context.Context, item models.QueueItem) (res *pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during processing: %v", r)
		}
	}()
	return w.processor.ProcessDocument(ctx, item)
}

func (w *Worker) release(ctx context.Context, id uuid.UUID) {
	if err := w.claimer.Release(ctx, id); err != nil {
		w.logger.Warn("release claim", "queue_id", id, "error", err)
	}
}
