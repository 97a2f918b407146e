// Package textsplit partitions extracted document text into overlapping
// fixed-size chunks and filters near-duplicate chunks before embedding.
package textsplit

import (
	"regexp"
	"strings"
)

// Default window parameters, tuned for embedding models with a few
// thousand token context.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
)

// maxWindows caps the number of windows produced for a single text.
// Exceeding the cap truncates the tail of the document instead of
// failing the whole ingestion.
const maxWindows = 100_000

var (
	spaceRuns   = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRuns = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace to a single space
// and 3+ consecutive newlines to 2. Splitting always operates on
// normalized text so chunk boundaries are stable across re-ingestion.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRuns.ReplaceAllString(text, " ")
	text = newlineRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk is one window of the source text together with its byte offset
// into the normalized text. The offset lets callers map a chunk back to
// a source location (e.g. a PDF page).
type Chunk struct {
	Text   string
	Offset int
}

// Split slides a window of size chunkSize over text, advancing by
// chunkSize-chunkOverlap each step. Each window is trimmed and emitted
// as one chunk. When chunkOverlap >= chunkSize the step is forced to 1
// so the window always advances.
//
// The returned bool reports truncation: true means the window cap was
// reached and the tail of text was dropped.
func Split(text string, chunkSize, chunkOverlap int) ([]Chunk, bool) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, false
	}

	step := chunkSize - chunkOverlap
	if step <= 0 {
		step = 1
	}

	chunks := make([]Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		if len(chunks) >= maxWindows {
			return chunks, true
		}

		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, Chunk{Text: window, Offset: start})
		}

		if end >= len(runes) {
			break
		}
	}

	return chunks, false
}
