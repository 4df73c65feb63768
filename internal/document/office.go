package document

import (
	"context"

	"github.com/nikhilbhutani/docingest/internal/storage"
	"github.com/nikhilbhutani/docingest/pkg/textextract"
)

// OfficeLoader handles one word-processor format (docx, odt or rtf).
type OfficeLoader struct {
	fetcher storage.Fetcher
	ext     string
	types   []string
}

func NewDocxLoader(fetcher storage.Fetcher) *OfficeLoader {
	return &OfficeLoader{
		fetcher: fetcher,
		ext:     ".docx",
		types:   []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	}
}

func NewODTLoader(fetcher storage.Fetcher) *OfficeLoader {
	return &OfficeLoader{
		fetcher: fetcher,
		ext:     ".odt",
		types:   []string{"application/vnd.oasis.opendocument.text"},
	}
}

func NewRTFLoader(fetcher storage.Fetcher) *OfficeLoader {
	return &OfficeLoader{
		fetcher: fetcher,
		ext:     ".rtf",
		types:   []string{"application/rtf", "text/rtf"},
	}
}

func (l *OfficeLoader) Name() string { return l.ext[1:] }

func (l *OfficeLoader) MimeTypes() []string { return l.types }

func (l *OfficeLoader) Supports(mimeType string) bool {
	return supports(l.types, mimeType)
}

func (l *OfficeLoader) Load(ctx context.Context, locator string) (*Result, error) {
	data, err := l.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}

	extracted, err := textextract.Office(data, l.ext)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}

	return &Result{
		Text:      extracted.Content,
		PageCount: extracted.Pages,
		Metadata:  extracted.Metadata,
	}, nil
}

var textTypes = []string{"text/plain", "text/markdown"}

// TextLoader returns plain text files as-is.
type TextLoader struct {
	fetcher storage.Fetcher
}

func NewTextLoader(fetcher storage.Fetcher) *TextLoader {
	return &TextLoader{fetcher: fetcher}
}

func (l *TextLoader) Name() string { return "text" }

func (l *TextLoader) MimeTypes() []string { return textTypes }

func (l *TextLoader) Supports(mimeType string) bool {
	return supports(textTypes, mimeType)
}

func (l *TextLoader) Load(ctx context.Context, locator string) (*Result, error) {
	data, err := l.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}

	return &Result{
		Text:      string(data),
		PageCount: 1,
		Metadata:  map[string]string{"type": "txt"},
	}, nil
}
