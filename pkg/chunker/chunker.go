package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidConfiguration = errors.New("invalid chunking configuration")

// Strategy names a chunking algorithm. The set is closed; see ParseStrategy.
type Strategy string

const (
	SlidingWindow  Strategy = "sliding_window"
	SentenceWindow Strategy = "sentence_window"
)

var strategies = []Strategy{SlidingWindow, SentenceWindow}

// ParseStrategy resolves a configured strategy name. An empty name selects
// SlidingWindow.
func ParseStrategy(name string) (Strategy, error) {
	if name == "" {
		return SlidingWindow, nil
	}
	for _, s := range strategies {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: unknown strategy %q (supported: %s)", ErrInvalidConfiguration, name, strings.Join(Strategies(), ", "))
}

// Strategies lists the supported strategy names.
func Strategies() []string {
	names := make([]string, len(strategies))
	for i, s := range strategies {
		names[i] = string(s)
	}
	return names
}

type Options struct {
	WindowSize int // window length in characters
	Overlap    int // characters shared by consecutive windows
	Strategy   Strategy
}

// Window is one emitted chunk. StartChar/EndChar are rune offsets into the
// source text, EndChar exclusive.
type Window struct {
	Text      string
	Index     int
	StartChar int
	EndChar   int
	Strategy  Strategy
}

func DefaultOptions() Options {
	return Options{
		WindowSize: 1000,
		Overlap:    200,
		Strategy:   SlidingWindow,
	}
}

func (o Options) Validate() error {
	if o.WindowSize <= 0 {
		return fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidConfiguration, o.WindowSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfiguration, o.Overlap)
	}
	if o.Overlap >= o.WindowSize {
		return fmt.Errorf("%w: overlap %d must be smaller than window size %d", ErrInvalidConfiguration, o.Overlap, o.WindowSize)
	}
	if _, err := ParseStrategy(string(o.Strategy)); err != nil {
		return err
	}
	return nil
}

// Chunk splits text into ordered, overlapping windows. Whitespace-only text
// yields no windows. The result depends only on text and opts.
func Chunk(text string, opts Options) ([]Window, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Strategy == "" {
		opts.Strategy = SlidingWindow
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	runes := []rune(text)
	switch opts.Strategy {
	case SentenceWindow:
		return chunkSentenceWindow(runes, opts), nil
	default:
		return chunkSlidingWindow(runes, opts), nil
	}
}

func chunkSlidingWindow(runes []rune, opts Options) []Window {
	var chunks []Window
	step := opts.WindowSize - opts.Overlap

	// A window cut short by the end of the text is the last one, so only the
	// final window can be shorter than WindowSize.
	for start := 0; start < len(runes); start += step {
		end := min(start+opts.WindowSize, len(runes))
		chunks = appendWindow(chunks, runes, start, end, opts.Strategy)
		if start+opts.WindowSize > len(runes) {
			break
		}
	}

	return chunks
}

// chunkSentenceWindow steps like the sliding window but pulls each window end
// back to the last sentence or line break in its second half.
func chunkSentenceWindow(runes []rune, opts Options) []Window {
	var chunks []Window

	for start := 0; start < len(runes); {
		end := min(start+opts.WindowSize, len(runes))
		if end < len(runes) {
			end = snapToBoundary(runes, start, end)
		}
		chunks = appendWindow(chunks, runes, start, end, opts.Strategy)
		if end == len(runes) {
			break
		}

		next := end - opts.Overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

func snapToBoundary(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for p := end; p > floor; p-- {
		prev := runes[p-1]
		if prev == '\n' {
			return p
		}
		if (prev == '.' || prev == '!' || prev == '?') && unicode.IsSpace(runes[p]) {
			return p
		}
	}
	return end
}

func appendWindow(chunks []Window, runes []rune, start, end int, strategy Strategy) []Window {
	content := string(runes[start:end])
	if strings.TrimSpace(content) == "" {
		return chunks
	}
	return append(chunks, Window{
		Text:      content,
		Index:     len(chunks),
		StartChar: start,
		EndChar:   end,
		Strategy:  strategy,
	})
}
