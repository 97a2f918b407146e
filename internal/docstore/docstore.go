// Package docstore is the metadata store: the durable record of every
// ingested document and its ordered chunk texts. It is the always-on
// half of the dual-store design; retrieval falls back to it when the
// vector index is unavailable.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceType identifies the kind of source a document was ingested from.
type SourceType string

const (
	SourcePDF SourceType = "pdf"
	SourceURL SourceType = "url"
)

// ErrNotFound is returned when a document does not exist or is not
// visible to the requesting user.
var ErrNotFound = errors.New("docstore: document not found")

// Chunk is one immutable slice of a document's extracted text. Chunks
// are never re-split or merged after ingestion.
type Chunk struct {
	Index   int
	Content string
	Page    int // 1-based source page, 0 when unknown (URL sources)
}

// Document is one ingested source and its ordered chunks.
// Invariant: ChunkCount == len(Chunks) for fully loaded documents;
// Processed is true only after every chunk was embedded-or-attempted
// and persisted.
type Document struct {
	ID         uuid.UUID
	BotID      string
	UserID     string
	Name       string
	Source     SourceType
	SizeBytes  int64
	Chunks     []Chunk
	ChunkCount int
	Processed  bool
	CreatedAt  time.Time
}

const insertDocumentSQL = `INSERT INTO documents
	(id, bot_id, user_id, name, source_type, size_bytes, chunk_count, processed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

const insertChunkSQL = `INSERT INTO document_chunks
	(document_id, chunk_index, content, page)
	VALUES ($1, $2, $3, $4)`

const documentCols = `id, bot_id, user_id, name, source_type, size_bytes,
	chunk_count, processed, created_at`

// Store persists documents in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New creates a document Store.
func New(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("docstore: pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create persists a document and all of its chunks in one transaction,
// so a document is either fully visible or absent, never partial.
// The document ID is generated here and returned.
func (s *Store) Create(ctx context.Context, doc Document) (uuid.UUID, error) {
	if doc.BotID == "" || doc.UserID == "" {
		return uuid.Nil, fmt.Errorf("docstore: bot and user IDs are required")
	}
	if doc.ChunkCount != len(doc.Chunks) {
		return uuid.Nil, fmt.Errorf("docstore: chunk count %d does not match %d chunks",
			doc.ChunkCount, len(doc.Chunks))
	}

	id := uuid.New()
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("docstore: begin: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, insertDocumentSQL,
		id, doc.BotID, doc.UserID, doc.Name, string(doc.Source),
		doc.SizeBytes, doc.ChunkCount, doc.Processed, createdAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("docstore: insert document: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range doc.Chunks {
		batch.Queue(insertChunkSQL, id, c.Index, c.Content, nullablePage(c.Page))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, fmt.Errorf("docstore: insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("docstore: commit: %w", err)
	}

	s.logger.Debug("document created",
		"id", id, "bot_id", doc.BotID, "chunks", doc.ChunkCount)
	return id, nil
}

// ListByBot returns all processed documents owned by botID, chunks
// loaded in stored order, newest document first.
func (s *Store) ListByBot(ctx context.Context, botID string) ([]Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents
		 WHERE bot_id = $1 AND processed = true
		 ORDER BY created_at DESC`, botID)
	if err != nil {
		return nil, fmt.Errorf("docstore: list documents: %w", err)
	}

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}

	for i := range docs {
		if err := s.loadChunks(ctx, &docs[i]); err != nil {
			return nil, err
		}
	}
	return docs, nil
}

// Get returns one document with its chunks, regardless of owner.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("docstore: get document: %w", err)
	}

	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}

	doc := docs[0]
	if err := s.loadChunks(ctx, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document owned by userID. Chunk rows cascade.
// Returns the number of deleted documents (0 or 1).
func (s *Store) Delete(ctx context.Context, id uuid.UUID, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return 0, fmt.Errorf("docstore: delete document: %w", err)
	}

	if tag.RowsAffected() > 0 {
		s.logger.Debug("document deleted", "id", id, "user_id", userID)
	}
	return tag.RowsAffected(), nil
}

// loadChunks fills doc.Chunks in index order.
func (s *Store) loadChunks(ctx context.Context, doc *Document) error {
	rows, err := s.pool.Query(ctx,
		`SELECT chunk_index, content, COALESCE(page, 0)
		 FROM document_chunks WHERE document_id = $1
		 ORDER BY chunk_index`, doc.ID)
	if err != nil {
		return fmt.Errorf("docstore: load chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Index, &c.Content, &c.Page); err != nil {
			return fmt.Errorf("docstore: scan chunk: %w", err)
		}
		doc.Chunks = append(doc.Chunks, c)
	}
	return rows.Err()
}

func scanDocuments(rows pgx.Rows) ([]Document, error) {
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			d   Document
			src string
		)
		if err := rows.Scan(&d.ID, &d.BotID, &d.UserID, &d.Name, &src,
			&d.SizeBytes, &d.ChunkCount, &d.Processed, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("docstore: scan document: %w", err)
		}
		d.Source = SourceType(src)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// nullablePage maps page 0 (unknown) to SQL NULL.
func nullablePage(page int) any {
	if page <= 0 {
		return nil
	}
	return page
}
