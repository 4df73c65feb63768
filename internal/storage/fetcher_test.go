package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_Local(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o600))

	f := NewFetcher(nil)

	data, err := f.Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	data, err = f.Fetch(context.Background(), "file://"+path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("remote bytes"))
	}))
	defer srv.Close()

	f := NewFetcher(nil)

	data, err := f.Fetch(context.Background(), srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "remote bytes", string(data))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestFetch_Supabase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/documents/a/b.pdf", r.URL.Path)
		assert.Equal(t, "Bearer service-key", r.Header.Get("Authorization"))
		w.Write([]byte("object"))
	}))
	defer srv.Close()

	f := NewFetcher(NewSupabaseStorage(srv.URL, "service-key"))

	data, err := f.Fetch(context.Background(), "supabase://documents/a/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, "object", string(data))

	_, err = f.Fetch(context.Background(), "supabase://documents")
	assert.Error(t, err)

	_, err = NewFetcher(nil).Fetch(context.Background(), "supabase://documents/a.pdf")
	assert.ErrorContains(t, err, "not configured")
}
