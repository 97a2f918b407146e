// Package vecindex is the similarity-search half of the dual-store
// design: per-chunk embedding vectors in a pgvector table, queryable by
// nearest neighbor. The index is optional. It may be unreachable or
// not configured at all, and every operation here is best-effort.
// Callers treat failures as degradation, never as fatal errors.
package vecindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// ErrUnavailable is returned by every operation when the index has no
// backing connection.
var ErrUnavailable = errors.New("vecindex: index unavailable")

// Entry is one chunk to be indexed.
type Entry struct {
	ChunkIndex int
	Content    string
	Vector     []float32
}

// Hit is one nearest-neighbor result. Distance is cosine distance;
// callers convert to a similarity score as 1 - Distance.
type Hit struct {
	ID         string
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Distance   float64
}

// Index stores and queries chunk vectors. A nil pool yields a valid but
// permanently unavailable index, which keeps the rest of the system
// working in metadata-only mode.
//
// Index is safe for concurrent use.
type Index struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates an Index over pool. pool may be nil.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{pool: pool, logger: logger}
}

// Available reports whether the index has a backing connection.
func (ix *Index) Available() bool {
	return ix != nil && ix.pool != nil
}

// entryID builds the synthetic per-chunk key "{documentID}_chunk_{index}".
func entryID(docID uuid.UUID, chunkIndex int) string {
	return fmt.Sprintf("%s_chunk_%d", docID, chunkIndex)
}

const upsertVectorSQL = `INSERT INTO chunk_vectors
	(id, document_id, chunk_index, content, source_type, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		content = EXCLUDED.content,
		source_type = EXCLUDED.source_type,
		embedding = EXCLUDED.embedding`

// Upsert writes one vector entry per chunk, keyed by the synthetic
// chunk ID so re-ingestion overwrites rather than duplicates.
func (ix *Index) Upsert(ctx context.Context, docID uuid.UUID, sourceType string, entries []Entry) error {
	if !ix.Available() {
		return ErrUnavailable
	}

	tx, err := ix.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("vecindex: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, e := range entries {
		vec := pgvector.NewVector(e.Vector)
		_, err := tx.Exec(ctx, upsertVectorSQL,
			entryID(docID, e.ChunkIndex), docID, e.ChunkIndex, e.Content, sourceType, vec)
		if err != nil {
			return fmt.Errorf("vecindex: upsert chunk %d: %w", e.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("vecindex: commit: %w", err)
	}

	ix.logger.Debug("vectors indexed", "document_id", docID, "count", len(entries))
	return nil
}

// Query returns the k nearest entries to vector by cosine distance,
// closest first.
func (ix *Index) Query(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if !ix.Available() {
		return nil, ErrUnavailable
	}
	if k <= 0 {
		return nil, nil
	}

	qv := pgvector.NewVector(vector)
	rows, err := ix.pool.Query(ctx,
		`SELECT id, document_id, chunk_index, content, embedding <=> $1 AS distance
		 FROM chunk_vectors
		 ORDER BY embedding <=> $1
		 LIMIT $2`, qv, k)
	if err != nil {
		return nil, fmt.Errorf("vecindex: query: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.ChunkIndex, &h.Content, &h.Distance); err != nil {
			return nil, fmt.Errorf("vecindex: scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// DeleteByDocument removes every entry belonging to docID. Entries are
// only ever deleted at document granularity, never individually.
func (ix *Index) DeleteByDocument(ctx context.Context, docID uuid.UUID) error {
	if !ix.Available() {
		return ErrUnavailable
	}

	tag, err := ix.pool.Exec(ctx,
		`DELETE FROM chunk_vectors WHERE document_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("vecindex: delete by document: %w", err)
	}

	ix.logger.Debug("vectors deleted", "document_id", docID, "count", tag.RowsAffected())
	return nil
}
