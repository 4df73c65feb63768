package document

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path"
	"strings"

	"github.com/nikhilbhutani/docingest/internal/storage"
)

var (
	ErrUnsupportedDocumentType = errors.New("unsupported document type")
	ErrDocumentLoad            = errors.New("document load failed")
)

// UnsupportedTypeError is returned by Registry.Resolve when no loader
// handles a MIME type.
type UnsupportedTypeError struct {
	MimeType  string
	Supported []string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type %q (supported: %s)", e.MimeType, strings.Join(e.Supported, ", "))
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedDocumentType
}

// LoadError wraps any failure to read or parse a document.
type LoadError struct {
	Locator string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load document %s: %v", e.Locator, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func (e *LoadError) Is(target error) bool {
	return target == ErrDocumentLoad
}

// Result is the extracted text of a document plus structural metadata.
// PageOffsets[i] is the rune offset where page i+1 starts; nil when the
// format has no pages.
type Result struct {
	Text        string
	PageCount   int
	PageOffsets []int
	Metadata    map[string]string
}

// PageAt returns the 1-based page containing rune offset pos, or nil when
// the document carries no page offsets.
func (r *Result) PageAt(pos int) *int {
	if len(r.PageOffsets) == 0 {
		return nil
	}
	page := 1
	for i, off := range r.PageOffsets {
		if off > pos {
			break
		}
		page = i + 1
	}
	return &page
}

type Loader interface {
	Name() string
	Supports(mimeType string) bool
	MimeTypes() []string
	Load(ctx context.Context, locator string) (*Result, error)
}

// Registry is the fixed set of loaders known to the pipeline.
type Registry struct {
	loaders []Loader
}

// NewRegistry returns every supported loader backed by fetcher.
func NewRegistry(fetcher storage.Fetcher) *Registry {
	return NewRegistryWith(
		NewPDFLoader(fetcher),
		NewDocxLoader(fetcher),
		NewODTLoader(fetcher),
		NewRTFLoader(fetcher),
		NewTextLoader(fetcher),
	)
}

// NewRegistryWith builds a registry from an explicit loader list. Order
// matters: Resolve returns the first match.
func NewRegistryWith(loaders ...Loader) *Registry {
	return &Registry{loaders: loaders}
}

// Resolve picks the first loader that supports mimeType.
func (r *Registry) Resolve(mimeType string) (Loader, error) {
	for _, l := range r.loaders {
		if l.Supports(mimeType) {
			return l, nil
		}
	}
	return nil, &UnsupportedTypeError{MimeType: mimeType, Supported: r.SupportedTypes()}
}

func (r *Registry) SupportedTypes() []string {
	var types []string
	for _, l := range r.loaders {
		types = append(types, l.MimeTypes()...)
	}
	return types
}

// normalizeMime lowercases a MIME type and strips parameters such as charset.
func normalizeMime(mimeType string) string {
	mt, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mt
}

func supports(types []string, mimeType string) bool {
	mt := normalizeMime(mimeType)
	for _, t := range types {
		if t == mt {
			return true
		}
	}
	return false
}

var extensionTypes = map[string]string{
	".pdf":      "application/pdf",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".odt":      "application/vnd.oasis.opendocument.text",
	".rtf":      "application/rtf",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// MimeTypeFor guesses a MIME type from a file name's extension. Unknown
// extensions fall back to the system table and then to
// application/octet-stream.
func MimeTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return normalizeMime(mt)
	}
	return "application/octet-stream"
}
