package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/nikhilbhutani/docingest/internal/cache"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/pipeline"
	"github.com/nikhilbhutani/docingest/internal/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	items   []*models.QueueItem
	history map[uuid.UUID][]models.QueueStatus
}

func newMemStore(n int) *memStore {
	s := &memStore{history: map[uuid.UUID][]models.QueueStatus{}}
	base := time.Now().Add(-time.Hour)
	for i := 0; i < n; i++ {
		s.items = append(s.items, &models.QueueItem{
			ID:        uuid.New(),
			FileID:    uuid.New(),
			Status:    models.QueueStatusQueued,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return s
}

func (s *memStore) ListQueued(ctx context.Context) ([]models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.QueueItem
	for _, it := range s.items {
		if it.Status == models.QueueStatusQueued {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (s *memStore) GetQueueItem(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			cp := *it
			return &cp, nil
		}
	}
	return nil, errors.New("not found")
}

func (s *memStore) SetQueueStatus(ctx context.Context, id uuid.UUID, status models.QueueStatus, lastError *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range s.items {
		if it.ID == id {
			it.Status = status
			it.LastError = lastError
			s.history[id] = append(s.history[id], status)
			return nil
		}
	}
	return errors.New("not found")
}

func (s *memStore) get(i int) models.QueueItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.items[i]
}

type funcProcessor func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error)

func (f funcProcessor) ProcessDocument(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
	return f(ctx, item)
}

func succeed(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
	return &pipeline.Result{ChunksCreated: 3, VectorsInserted: 3}, nil
}

func TestPollOnce_Success(t *testing.T) {
	store := newMemStore(2)
	var seen []uuid.UUID
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		seen = append(seen, item.ID)
		assert.Equal(t, models.QueueStatusProcessing, item.Status)
		return succeed(ctx, item)
	}), nil, time.Second)

	assert.True(t, w.PollOnce(context.Background()))

	first := store.get(0)
	assert.Equal(t, models.QueueStatusSuccess, first.Status)
	assert.Nil(t, first.LastError)
	assert.Equal(t, []models.QueueStatus{models.QueueStatusProcessing, models.QueueStatusSuccess}, store.history[first.ID])
	assert.Equal(t, []uuid.UUID{first.ID}, seen)
	assert.Equal(t, models.QueueStatusQueued, store.get(1).Status)
}

func TestPollOnce_FailureRecordsMessage(t *testing.T) {
	store := newMemStore(1)
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		return nil, errors.New(`unsupported document type "image/png" (supported: application/pdf)`)
	}), nil, time.Second)

	assert.True(t, w.PollOnce(context.Background()))

	item := store.get(0)
	assert.Equal(t, models.QueueStatusError, item.Status)
	require.NotNil(t, item.LastError)
	assert.Contains(t, *item.LastError, "image/png")
}

type recordingNotifier struct {
	events []webhook.Event
}

func (n *recordingNotifier) Notify(ev webhook.Event) { n.events = append(n.events, ev) }

func TestPollOnce_NotifiesOutcome(t *testing.T) {
	store := newMemStore(2)
	calls := 0
	n := &recordingNotifier{}
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("embedding provider failed")
		}
		return succeed(ctx, item)
	}), nil, time.Second).WithNotifier(n)

	assert.True(t, w.PollOnce(context.Background()))
	assert.True(t, w.PollOnce(context.Background()))

	require.Len(t, n.events, 2)
	first, second := store.get(0), store.get(1)

	assert.Equal(t, webhook.EventFileIngested, n.events[0].Type)
	assert.Equal(t, first.FileID, n.events[0].FileID)
	assert.Equal(t, "success", n.events[0].Status)
	assert.Equal(t, 3, n.events[0].VectorsInserted)

	assert.Equal(t, webhook.EventFileFailed, n.events[1].Type)
	assert.Equal(t, second.ID, n.events[1].QueueID)
	assert.Equal(t, "embedding provider failed", n.events[1].Error)
}

func TestPollOnce_PanicRecordedAsError(t *testing.T) {
	store := newMemStore(2)
	calls := 0
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		calls++
		if calls == 1 {
			panic("nil map write")
		}
		return succeed(ctx, item)
	}), nil, time.Second)

	assert.True(t, w.PollOnce(context.Background()))
	assert.True(t, w.PollOnce(context.Background()))

	failed := store.get(0)
	assert.Equal(t, models.QueueStatusError, failed.Status)
	require.NotNil(t, failed.LastError)
	assert.Contains(t, *failed.LastError, "nil map write")
	assert.Equal(t, models.QueueStatusSuccess, store.get(1).Status)
}

func TestPollOnce_EmptyQueue(t *testing.T) {
	store := newMemStore(0)
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}), nil, time.Second)

	assert.False(t, w.PollOnce(context.Background()))
}

// staleStore reports items as queued in the listing but as already taken on
// the re-read, like a second worker winning the race.
type staleStore struct {
	*memStore
}

func (s staleStore) GetQueueItem(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	item, err := s.memStore.GetQueueItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Status = models.QueueStatusProcessing
	return item, nil
}

func TestPollOnce_SkipsItemTakenElsewhere(t *testing.T) {
	store := newMemStore(1)
	w := New(staleStore{store}, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		t.Fatal("processor must not be called")
		return nil, nil
	}), nil, time.Second)

	assert.False(t, w.PollOnce(context.Background()))
	assert.Empty(t, store.history)
}

func TestPollOnce_RedisClaimSkipsLockedItem(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	store := newMemStore(2)
	first := store.get(0)

	other := cache.NewLocker(client, "docingest:claim:", time.Minute)
	ok, err := other.Acquire(ctx, first.ID.String())
	require.NoError(t, err)
	require.True(t, ok)

	var seen []uuid.UUID
	claimer := NewRedisClaimer(cache.NewLocker(client, "docingest:claim:", time.Minute))
	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		seen = append(seen, item.ID)
		return succeed(ctx, item)
	}), claimer, time.Second)

	assert.True(t, w.PollOnce(ctx))

	second := store.get(1)
	assert.Equal(t, []uuid.UUID{second.ID}, seen)
	assert.Equal(t, models.QueueStatusQueued, store.get(0).Status)
	assert.False(t, mr.Exists("docingest:claim:"+second.ID.String()))
	assert.True(t, mr.Exists("docingest:claim:"+first.ID.String()))
}

func TestStartStop_Idle(t *testing.T) {
	w := New(newMemStore(0), funcProcessor(succeed), nil, time.Hour)

	require.True(t, w.Start(context.Background()))
	assert.False(t, w.Start(context.Background()))
	assert.True(t, w.Running())

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("idle worker did not stop")
	}
	assert.False(t, w.Running())

	w.Stop()
}

func TestStop_WaitsForInFlightItem(t *testing.T) {
	store := newMemStore(1)
	started := make(chan struct{})
	proceed := make(chan struct{})
	var stageCtxErr error

	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		close(started)
		<-proceed
		stageCtxErr = ctx.Err()
		return succeed(ctx, item)
	}), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, w.Start(ctx))
	<-started

	stopped := make(chan struct{})
	go func() {
		cancel()
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("worker stopped during an in-flight item")
	case <-time.After(100 * time.Millisecond):
	}

	close(proceed)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after the item finished")
	}

	assert.NoError(t, stageCtxErr)
	assert.Equal(t, models.QueueStatusSuccess, store.get(0).Status)
}

func TestLoop_ProcessesQueueOldestFirst(t *testing.T) {
	store := newMemStore(3)
	var mu sync.Mutex
	var order []uuid.UUID
	all := make(chan struct{})

	w := New(store, funcProcessor(func(ctx context.Context, item models.QueueItem) (*pipeline.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, item.ID)
		if len(order) == 3 {
			close(all)
		}
		return succeed(ctx, item)
	}), nil, time.Millisecond)

	require.True(t, w.Start(context.Background()))
	defer w.Stop()

	select {
	case <-all:
	case <-time.After(2 * time.Second):
		t.Fatal("queue not drained")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{store.get(0).ID, store.get(1).ID, store.get(2).ID}, order)
}
