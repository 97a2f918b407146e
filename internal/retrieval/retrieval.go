// Package retrieval answers similarity queries over ingested documents.
//
// The primary path embeds the query and searches the vector index,
// over-fetching to survive tenant filtering. When the index is
// unavailable or the search fails, retrieval degrades to a metadata
// scan that returns chunks in document order with a fixed neutral
// score, so callers always get an answer while the index is down.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/docstore"
	"github.com/ragline/ragline/internal/vecindex"
)

// DefaultTopK is the result count used when the caller does not set one.
const DefaultTopK = 8

// fallbackScore is assigned to every match served from the metadata
// scan. Distance is unknown there; 0.5 keeps the matches usable
// without ranking them above genuine vector hits.
const fallbackScore = 0.5

// VectorQuerier is the similarity-index surface the engine needs.
type VectorQuerier interface {
	Available() bool
	Query(ctx context.Context, vector []float32, k int) ([]vecindex.Hit, error)
}

// DocumentLister is the metadata-store surface the engine needs.
type DocumentLister interface {
	ListByBot(ctx context.Context, botID string) ([]docstore.Document, error)
}

// QueryEmbedder turns query text into a vector. It never fails.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Match is one retrieved chunk, ordered best-first.
type Match struct {
	Text         string
	Score        float64 // 1 - cosine distance, or fallbackScore
	Source       docstore.SourceType
	DocumentID   uuid.UUID
	DocumentName string
	ChunkIndex   int
}

// Option adjusts a single Retrieve call.
type Option func(*options)

type options struct {
	topK int
}

// WithTopK sets the maximum number of matches to return.
func WithTopK(k int) Option {
	return func(o *options) {
		if k > 0 {
			o.topK = k
		}
	}
}

// Engine executes retrievals. Safe for concurrent use.
type Engine struct {
	index    VectorQuerier
	store    DocumentLister
	embedder QueryEmbedder
	logger   *slog.Logger
}

// New creates an Engine.
func New(index VectorQuerier, store DocumentLister, embedder QueryEmbedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{index: index, store: store, embedder: embedder, logger: logger}
}

// Retrieve returns the chunks most relevant to query among botID's
// documents. Results never include another bot's content.
func (e *Engine) Retrieve(ctx context.Context, botID, query string, opts ...Option) ([]Match, error) {
	o := options{topK: DefaultTopK}
	for _, opt := range opts {
		opt(&o)
	}

	// The ownership set doubles as the tenant filter for vector hits
	// and as the source of fallback matches.
	docs, err := e.store.ListByBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("retrieval: listing documents: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	if e.index.Available() {
		matches, err := e.searchIndex(ctx, docs, query, o.topK)
		if err == nil && len(matches) > 0 {
			return matches, nil
		}
		if err != nil {
			e.logger.Warn("vector search failed, serving metadata fallback", "error", err)
		} else {
			e.logger.Warn("vector search yielded no usable hits, serving metadata fallback")
		}
	} else {
		e.logger.Warn("vector index unavailable, serving metadata fallback")
	}

	return fallbackMatches(docs, o.topK), nil
}

// searchIndex runs the vector path. The index holds every tenant's
// vectors, so it over-fetches by a factor of two and filters hits down
// to the caller's documents before truncating to topK.
func (e *Engine) searchIndex(ctx context.Context, docs []docstore.Document, query string, topK int) ([]Match, error) {
	owned := make(map[uuid.UUID]docstore.Document, len(docs))
	for _, d := range docs {
		owned[d.ID] = d
	}

	vector := e.embedder.Embed(ctx, query)

	hits, err := e.index.Query(ctx, vector, topK*2)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, topK)
	for _, h := range hits {
		d, ok := owned[h.DocumentID]
		if !ok {
			continue
		}
		matches = append(matches, Match{
			Text:         h.Content,
			Score:        1 - h.Distance,
			Source:       d.Source,
			DocumentID:   h.DocumentID,
			DocumentName: d.Name,
			ChunkIndex:   h.ChunkIndex,
		})
		if len(matches) == topK {
			break
		}
	}
	return matches, nil
}

// fallbackMatches serves chunks in document order with a fixed score.
func fallbackMatches(docs []docstore.Document, topK int) []Match {
	matches := make([]Match, 0, topK)
	for _, d := range docs {
		for _, c := range d.Chunks {
			matches = append(matches, Match{
				Text:         c.Content,
				Score:        fallbackScore,
				Source:       d.Source,
				DocumentID:   d.ID,
				DocumentName: d.Name,
				ChunkIndex:   c.Index,
			})
			if len(matches) == topK {
				return matches
			}
		}
	}
	return matches
}
