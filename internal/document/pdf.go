package document

import (
	"bytes"
	"context"

	"github.com/nikhilbhutani/docingest/internal/storage"
	"github.com/nikhilbhutani/docingest/pkg/textextract"
)

var pdfTypes = []string{"application/pdf", "application/x-pdf"}

type PDFLoader struct {
	fetcher storage.Fetcher
}

func NewPDFLoader(fetcher storage.Fetcher) *PDFLoader {
	return &PDFLoader{fetcher: fetcher}
}

func (l *PDFLoader) Name() string { return "pdf" }

func (l *PDFLoader) MimeTypes() []string { return pdfTypes }

func (l *PDFLoader) Supports(mimeType string) bool {
	return supports(pdfTypes, mimeType)
}

func (l *PDFLoader) Load(ctx context.Context, locator string) (*Result, error) {
	data, err := l.fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}

	extracted, err := textextract.PDF(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &LoadError{Locator: locator, Err: err}
	}

	return &Result{
		Text:        extracted.Content,
		PageCount:   extracted.Pages,
		PageOffsets: extracted.PageOffsets,
		Metadata:    extracted.Metadata,
	}, nil
}
