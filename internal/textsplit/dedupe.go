package textsplit

import (
	"strings"
	"unicode"
)

// minChunkLen is the minimum trimmed length for a chunk to be worth
// indexing. Shorter chunks carry too little signal to embed.
const minChunkLen = 50

// signatureLen is the number of leading characters (after lowering and
// stripping whitespace) used as the near-duplicate signature. Two
// chunks that differ only beyond this window are treated as duplicates;
// that is a documented approximation, not exact duplicate detection.
const signatureLen = 100

// Dedupe removes near-duplicate chunks, keeping the first occurrence in
// order. Chunks shorter than minChunkLen are dropped outright. The
// second return value is the number of discarded chunks.
func Dedupe(chunks []Chunk) ([]Chunk, int) {
	seen := make(map[string]struct{}, len(chunks))
	kept := make([]Chunk, 0, len(chunks))
	dropped := 0

	for _, c := range chunks {
		if len(strings.TrimSpace(c.Text)) < minChunkLen {
			dropped++
			continue
		}

		sig := signature(c.Text)
		if _, ok := seen[sig]; ok {
			dropped++
			continue
		}
		seen[sig] = struct{}{}
		kept = append(kept, c)
	}

	return kept, dropped
}

// signature computes the lowercase, whitespace-stripped prefix used for
// near-duplicate detection.
func signature(text string) string {
	var b strings.Builder
	b.Grow(signatureLen)

	n := 0
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
		n++
		if n >= signatureLen {
			break
		}
	}
	return b.String()
}
