// Package ingest orchestrates the document ingestion pipeline:
// extraction, splitting, de-duplication, embedding, and dual
// persistence into the metadata store and the vector index.
//
// The two persistence phases are deliberately not transactional. The
// metadata store write is the commit point: once it succeeds the
// document exists and is retrievable. The vector index write that
// follows is best-effort; its failure opens a documented inconsistency
// window in which retrieval serves the document through the metadata
// fallback only.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ragline/ragline/internal/docstore"
	"github.com/ragline/ragline/internal/extract"
	"github.com/ragline/ragline/internal/textsplit"
	"github.com/ragline/ragline/internal/vecindex"
)

// ErrNoContent is returned when extraction and filtering leave nothing
// worth indexing. No document record is created in that case.
var ErrNoContent = errors.New("ingest: document produced no indexable chunks")

// embedBatchSize groups chunks for progress logging. Batching has no
// semantic effect; embedding is still strictly sequential to respect
// the single upstream rate limit.
const embedBatchSize = 10

// DocumentStore is the metadata-store surface the pipeline needs.
type DocumentStore interface {
	Create(ctx context.Context, doc docstore.Document) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID, userID string) (int64, error)
}

// VectorIndex is the similarity-index surface the pipeline needs.
type VectorIndex interface {
	Available() bool
	Upsert(ctx context.Context, docID uuid.UUID, sourceType string, entries []vecindex.Entry) error
	DeleteByDocument(ctx context.Context, docID uuid.UUID) error
}

// Embedder converts chunk text to vectors. Embed never fails; quality
// degradation is observable through the MocksServed counter, which the
// pipeline snapshots around its embedding loop.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
	MocksServed() uint64
}

// URLFetcher extracts text from a remote page.
type URLFetcher interface {
	FromURL(ctx context.Context, rawURL string) (*extract.Result, error)
}

// Request identifies one source to ingest. Data carries PDF bytes; URL
// carries the page address. Name is the display name and defaults to
// the page title for URL sources.
type Request struct {
	BotID  string
	UserID string
	Name   string
	Data   []byte
	URL    string
}

// Receipt summarizes a completed ingestion.
type Receipt struct {
	DocumentID uuid.UUID
	ChunkCount int
	Dropped    int  // chunks removed by the near-duplicate filter
	Truncated  bool // splitter hit its window cap
	Degraded   bool // one or more chunks carry mock embeddings
}

// Config tunes the splitter. Zero values take the package defaults.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Pipeline runs ingestions. One logical pipeline per request; the only
// shared mutable state lives inside the Embedder.
type Pipeline struct {
	store    DocumentStore
	index    VectorIndex
	embedder Embedder
	fetcher  URLFetcher
	logger   *slog.Logger
	cfg      Config
}

// New creates a Pipeline.
func New(store DocumentStore, index VectorIndex, embedder Embedder, fetcher URLFetcher, logger *slog.Logger, cfg Config) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = textsplit.DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = textsplit.DefaultChunkOverlap
	}

	return &Pipeline{
		store:    store,
		index:    index,
		embedder: embedder,
		fetcher:  fetcher,
		logger:   logger,
		cfg:      cfg,
	}
}

// IngestPDF extracts, chunks, embeds, and persists a PDF document.
func (p *Pipeline) IngestPDF(ctx context.Context, req Request) (*Receipt, error) {
	res, err := extract.FromPDF(req.Data)
	if err != nil {
		return nil, err
	}
	return p.ingest(ctx, req, res, docstore.SourcePDF, int64(len(req.Data)))
}

// IngestURL fetches, extracts, chunks, embeds, and persists a web page.
func (p *Pipeline) IngestURL(ctx context.Context, req Request) (*Receipt, error) {
	res, err := p.fetcher.FromURL(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		if res.Title != "" {
			req.Name = res.Title
		} else {
			req.Name = req.URL
		}
	}
	return p.ingest(ctx, req, res, docstore.SourceURL, int64(len(res.Text)))
}

// ingest runs the shared tail of the pipeline. Steps are strictly
// sequential; each depends on the previous step's output.
func (p *Pipeline) ingest(ctx context.Context, req Request, res *extract.Result, source docstore.SourceType, sizeBytes int64) (*Receipt, error) {
	windows, truncated := textsplit.Split(res.Text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if truncated {
		p.logger.Warn("splitter window cap reached, tail truncated",
			"name", req.Name, "windows", len(windows))
	}

	kept, dropped := textsplit.Dedupe(windows)
	if len(kept) == 0 {
		return nil, ErrNoContent
	}

	// Degraded means at least one chunk of this run got a mock vector,
	// whatever the cause (quota, upstream failure, offline mode).
	mocksBefore := p.embedder.MocksServed()
	vectors, err := p.embedAll(ctx, req.Name, kept)
	if err != nil {
		return nil, err
	}
	degraded := p.embedder.MocksServed() > mocksBefore

	chunks := make([]docstore.Chunk, len(kept))
	for i, w := range kept {
		chunks[i] = docstore.Chunk{
			Index:   i,
			Content: w.Text,
			Page:    res.PageFor(w.Offset),
		}
	}

	// Commit point: the document record (with all chunk texts) is
	// written only after every chunk has been embedded-or-attempted.
	docID, err := p.store.Create(ctx, docstore.Document{
		BotID:      req.BotID,
		UserID:     req.UserID,
		Name:       req.Name,
		Source:     source,
		SizeBytes:  sizeBytes,
		Chunks:     chunks,
		ChunkCount: len(chunks),
		Processed:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: persisting document: %w", err)
	}

	p.indexVectors(ctx, docID, source, chunks, vectors)

	p.logger.Info("document ingested",
		"document_id", docID,
		"bot_id", req.BotID,
		"name", req.Name,
		"chunks", len(chunks),
		"dropped", dropped,
		"degraded", degraded)

	return &Receipt{
		DocumentID: docID,
		ChunkCount: len(chunks),
		Dropped:    dropped,
		Truncated:  truncated,
		Degraded:   degraded,
	}, nil
}

// embedAll embeds chunks sequentially, logging progress per batch.
// Individual embedding failures are absorbed by the provider's mock
// fallback; only caller cancellation stops the loop.
func (p *Pipeline) embedAll(ctx context.Context, name string, chunks []textsplit.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest: canceled after %d of %d chunks: %w", i, len(chunks), err)
		}

		vectors[i] = p.embedder.Embed(ctx, c.Text)

		if (i+1)%embedBatchSize == 0 || i == len(chunks)-1 {
			p.logger.Debug("embedding progress",
				"name", name, "done", i+1, "total", len(chunks))
		}
	}
	return vectors, nil
}

// indexVectors writes embeddings to the vector index, best-effort.
func (p *Pipeline) indexVectors(ctx context.Context, docID uuid.UUID, source docstore.SourceType, chunks []docstore.Chunk, vectors [][]float32) {
	if !p.index.Available() {
		p.logger.Warn("vector index unavailable, document searchable via metadata fallback only",
			"document_id", docID)
		return
	}

	entries := make([]vecindex.Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = vecindex.Entry{
			ChunkIndex: c.Index,
			Content:    c.Content,
			Vector:     vectors[i],
		}
	}

	if err := p.index.Upsert(ctx, docID, string(source), entries); err != nil {
		p.logger.Warn("vector index write failed, document searchable via metadata fallback only",
			"document_id", docID, "error", err)
	}
}

// Delete removes a document for userID from the metadata store and
// invalidates its vector index entries. Returns true when a document
// was deleted.
func (p *Pipeline) Delete(ctx context.Context, docID uuid.UUID, userID string) (bool, error) {
	deleted, err := p.store.Delete(ctx, docID, userID)
	if err != nil {
		return false, fmt.Errorf("ingest: deleting document: %w", err)
	}
	if deleted == 0 {
		return false, nil
	}

	if p.index.Available() {
		if err := p.index.DeleteByDocument(ctx, docID); err != nil {
			p.logger.Warn("vector index cleanup failed, stale entries remain",
				"document_id", docID, "error", err)
		}
	}
	return true, nil
}
