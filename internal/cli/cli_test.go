package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/docingest/internal/admin"
	"github.com/nikhilbhutani/docingest/internal/auth"
	"github.com/nikhilbhutani/docingest/internal/embedding"
	"github.com/nikhilbhutani/docingest/internal/models"
	"github.com/nikhilbhutani/docingest/internal/vectorstore"
)

type fakeFiles struct {
	registered []*models.File
}

func (f *fakeFiles) RegisterFile(ctx context.Context, file *models.File) (*models.QueueItem, error) {
	file.ID = uuid.New()
	f.registered = append(f.registered, file)
	return &models.QueueItem{ID: uuid.New(), FileID: file.ID, Status: models.QueueStatusQueued}, nil
}

type fakeAdmin struct {
	requeued   []uuid.UUID
	requeueErr error
}

func (a *fakeAdmin) Status(ctx context.Context, id uuid.UUID) (*admin.FileStatus, error) {
	msg := "embedding provider failed"
	return &admin.FileStatus{
		File: &models.File{ID: id, Name: "a.pdf", MimeType: "application/pdf"},
		Item: &models.QueueItem{FileID: id, Status: models.QueueStatusError, LastError: &msg},
	}, nil
}

func (a *fakeAdmin) Reconcile(ctx context.Context, id uuid.UUID) (*admin.Consistency, error) {
	return &admin.Consistency{FileID: id, Chunks: 7, Vectors: 0}, nil
}

func (a *fakeAdmin) Requeue(ctx context.Context, id uuid.UUID) (*models.QueueItem, error) {
	if a.requeueErr != nil {
		return nil, a.requeueErr
	}
	a.requeued = append(a.requeued, id)
	return &models.QueueItem{ID: uuid.New(), FileID: id, Status: models.QueueStatusQueued}, nil
}

type fakeTasks struct {
	types []string
}

func (f *fakeTasks) EnqueueRequeue(ctx context.Context, id uuid.UUID) (string, error) {
	f.types = append(f.types, "requeue")
	return "t-1", nil
}

func (f *fakeTasks) EnqueueReconcile(ctx context.Context, id uuid.UUID) (string, error) {
	f.types = append(f.types, "reconcile")
	return "t-2", nil
}

type fakeIndex struct {
	provisioned int
	query       []float32
}

func (f *fakeIndex) Provision(ctx context.Context) error {
	f.provisioned++
	return nil
}

func (f *fakeIndex) SearchByFile(ctx context.Context, id uuid.UUID, q []float32, k int) ([]vectorstore.SearchResult, error) {
	f.query = q
	page := 2
	return []vectorstore.SearchResult{{FileID: id, ChunkIndex: 3, PageNumber: &page, Score: 0.91}}, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) (*embedding.BatchResult, error) {
	return &embedding.BatchResult{Vectors: [][]float32{{0.1, 0.2}}, Dimension: 2}, nil
}

type harness struct {
	files  *fakeFiles
	admin  *fakeAdmin
	tasks  *fakeTasks
	index  *fakeIndex
	opened int
	closed int
}

func newHarness() *harness {
	return &harness{files: &fakeFiles{}, admin: &fakeAdmin{}, tasks: &fakeTasks{}, index: &fakeIndex{}}
}

func (h *harness) open(ctx context.Context) (*Services, error) {
	h.opened++
	return &Services{
		Files:    h.files,
		Admin:    h.admin,
		Tasks:    h.tasks,
		Vectors:  h.index,
		Embedder: fakeEmbedder{},
		Migrate: func(ctx context.Context) ([]string, error) {
			return []string{"001_ingestion"}, nil
		},
		Close: func() { h.closed++ },
	}, nil
}

func run(t *testing.T, h *harness, secret string, args ...string) (string, error) {
	t.Helper()
	asyncAdmin, addName, addMime, topK = false, "", "", 5
	tokenRole, tokenTTL = auth.RoleViewer, 24*time.Hour

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := Execute(h.open, secret)
	return buf.String(), err
}

func TestAdd(t *testing.T) {
	h := newHarness()
	path := filepath.Join(t.TempDir(), "Report.PDF")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o600))

	out, err := run(t, h, "", "add", path)
	require.NoError(t, err)
	require.Len(t, h.files.registered, 1)

	f := h.files.registered[0]
	assert.Equal(t, "Report.PDF", f.Name)
	assert.Equal(t, "application/pdf", f.MimeType)
	assert.Equal(t, int64(8), f.SizeBytes)
	assert.Contains(t, out, "queued")
	assert.Equal(t, 1, h.closed)
}

func TestAdd_RemoteWithOverrides(t *testing.T) {
	h := newHarness()

	_, err := run(t, h, "", "add", "supabase://docs/x", "--name", "Policy", "--mime", "text/plain")
	require.NoError(t, err)

	f := h.files.registered[0]
	assert.Equal(t, "Policy", f.Name)
	assert.Equal(t, "text/plain", f.MimeType)
	assert.Zero(t, f.SizeBytes)
}

func TestAdd_MissingLocalFile(t *testing.T) {
	h := newHarness()

	_, err := run(t, h, "", "add", filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
	assert.Zero(t, h.opened)
}

func TestStatusAndReconcile(t *testing.T) {
	h := newHarness()
	id := uuid.NewString()

	out, err := run(t, h, "", "status", id)
	require.NoError(t, err)
	assert.Contains(t, out, "error")
	assert.Contains(t, out, "embedding provider failed")

	out, err = run(t, h, "", "reconcile", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Inconsistent")

	_, err = run(t, h, "", "status", "not-a-uuid")
	assert.Error(t, err)
}

func TestRequeue(t *testing.T) {
	h := newHarness()
	id := uuid.New()

	_, err := run(t, h, "", "requeue", id.String())
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, h.admin.requeued)

	out, err := run(t, h, "", "requeue", id.String(), "--async")
	require.NoError(t, err)
	assert.Contains(t, out, "t-1")
	assert.Equal(t, []string{"requeue"}, h.tasks.types)
	assert.Len(t, h.admin.requeued, 1)

	h.admin.requeueErr = admin.ErrItemBusy
	_, err = run(t, h, "", "requeue", id.String())
	assert.ErrorIs(t, err, admin.ErrItemBusy)
}

func TestProvisionAndMigrate(t *testing.T) {
	h := newHarness()

	_, err := run(t, h, "", "provision")
	require.NoError(t, err)
	assert.Equal(t, 1, h.index.provisioned)

	out, err := run(t, h, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "001_ingestion")
}

func TestSearch(t *testing.T) {
	h := newHarness()

	out, err := run(t, h, "", "search", uuid.NewString(), "refund policy", "-k", "3")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, h.index.query)
	assert.Contains(t, out, "chunk 3")
	assert.Contains(t, out, "0.9100")
}

func TestToken(t *testing.T) {
	h := newHarness()

	out, err := run(t, h, "s3cret", "token", "ops", "--role", "operator")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."))
	assert.Zero(t, h.opened)

	_, err = run(t, h, "", "token", "ops")
	assert.Error(t, err)

	_, err = run(t, h, "s3cret", "token", "ops", "--role", "root")
	assert.Error(t, err)
}

func TestOpenFailure(t *testing.T) {
	failing := func(ctx context.Context) (*Services, error) {
		return nil, errors.New("connection refused")
	}
	rootCmd.SetArgs([]string{"provision"})
	defer rootCmd.SetArgs(nil)

	err := Execute(failing, "")
	assert.ErrorContains(t, err, "connection refused")
}
