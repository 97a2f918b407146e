package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"github.com/ragline/ragline/internal/embedding"
)

// StaticEmbedder produces deterministic, content-dependent vectors
// without any network access. Identical text always yields an
// identical unit-length vector, so similarity tests behave
// predictably. It satisfies the Embedder interfaces of the ingest and
// retrieval packages.
type StaticEmbedder struct{}

// Embed derives a unit vector from a SHA-256 expansion of text.
func (StaticEmbedder) Embed(_ context.Context, text string) []float32 {
	v := make([]float32, embedding.Dimension)

	sum := sha256.Sum256([]byte(text))
	var norm float64
	for i := range v {
		// Re-hash with the index to stretch 32 bytes of digest over
		// the full dimensionality.
		var idx [8]byte
		binary.LittleEndian.PutUint64(idx[:], uint64(i))
		h := sha256.Sum256(append(sum[:], idx[:]...))
		bits := binary.LittleEndian.Uint32(h[:4])
		f := float64(bits)/float64(math.MaxUint32)*2 - 1
		v[i] = float32(f)
		norm += f * f
	}

	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// MocksServed always reports zero; every vector this embedder serves
// is a real one.
func (StaticEmbedder) MocksServed() uint64 { return 0 }
