package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Fetcher resolves a file locator to its bytes. Supported forms:
//
//	supabase://<bucket>/<path>
//	http://... and https://...
//	file:///abs/path or a plain filesystem path
type Fetcher interface {
	Fetch(ctx context.Context, locator string) ([]byte, error)
}

type fetcher struct {
	supabase   *SupabaseStorage
	httpClient *http.Client
}

// NewFetcher builds a Fetcher. supabase may be nil, in which case
// supabase:// locators are rejected.
func NewFetcher(supabase *SupabaseStorage) Fetcher {
	return &fetcher{
		supabase:   supabase,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (f *fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	switch {
	case strings.HasPrefix(locator, "supabase://"):
		return f.fetchSupabase(ctx, strings.TrimPrefix(locator, "supabase://"))
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return f.fetchHTTP(ctx, locator)
	case strings.HasPrefix(locator, "file://"):
		u, err := url.Parse(locator)
		if err != nil {
			return nil, fmt.Errorf("parse locator: %w", err)
		}
		return readLocal(u.Path)
	default:
		return readLocal(locator)
	}
}

func (f *fetcher) fetchSupabase(ctx context.Context, rest string) ([]byte, error) {
	if f.supabase == nil {
		return nil, fmt.Errorf("supabase storage not configured")
	}
	bucket, path, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || path == "" {
		return nil, fmt.Errorf("invalid supabase locator %q", rest)
	}

	body, err := f.supabase.Download(ctx, bucket, path)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

func (f *fetcher) fetchHTTP(ctx context.Context, locator string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", locator, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", locator, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return data, nil
}

func readLocal(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
