package textextract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/lu4p/cat"
)

// ExtractedText is the plain text of a document. PageOffsets[i] is the rune
// offset in Content where page i+1 begins; it is empty for formats without
// pages.
type ExtractedText struct {
	Content     string
	Pages       int
	PageOffsets []int
	Metadata    map[string]string
}

// PDF extracts the text of every page, joining pages with a newline. Any
// page that fails to decode fails the whole extraction.
func PDF(data io.ReaderAt, size int64) (result *ExtractedText, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(data, size)
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	var buf strings.Builder
	numPages := reader.NumPage()
	offsets := make([]int, 0, numPages)
	runes := 0

	for i := 1; i <= numPages; i++ {
		offsets = append(offsets, runes)

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", i, err)
		}
		buf.WriteString(text)
		buf.WriteString("\n")
		runes += utf8.RuneCountInString(text) + 1
	}

	return &ExtractedText{
		Content:     buf.String(),
		Pages:       numPages,
		PageOffsets: offsets,
		Metadata: map[string]string{
			"type": "pdf",
		},
	}, nil
}

// Office extracts text from docx, odt, rtf or plain text bytes. ext selects
// the format (".docx", ".odt", ".rtf", ".txt").
func Office(data []byte, ext string) (*ExtractedText, error) {
	tmp, err := os.CreateTemp("", "textextract-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ext, err)
	}

	return &ExtractedText{
		Content: text,
		Pages:   1,
		Metadata: map[string]string{
			"type": strings.TrimPrefix(filepath.Ext(tmp.Name()), "."),
		},
	}, nil
}
