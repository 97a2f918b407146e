package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ragline/ragline/db"
	"github.com/ragline/ragline/internal/config"
	"github.com/ragline/ragline/internal/database"
	"github.com/ragline/ragline/internal/docstore"
	"github.com/ragline/ragline/internal/embedding"
	"github.com/ragline/ragline/internal/extract"
	"github.com/ragline/ragline/internal/ingest"
	"github.com/ragline/ragline/internal/log"
	"github.com/ragline/ragline/internal/retrieval"
	"github.com/ragline/ragline/internal/vecindex"
)

// app bundles the wired components behind the CLI commands.
type app struct {
	cfg       *config.Config
	store     *docstore.Store
	index     *vecindex.Index
	provider  *embedding.Provider
	pipeline  *ingest.Pipeline
	retriever *retrieval.Engine
	logger    log.Logger

	close func()
}

// newApp loads configuration, migrates the database, and wires every
// component. The vector index degrades to unavailable instead of
// failing setup; the metadata store is required.
func newApp(ctx context.Context, logger log.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := database.NewPool(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	store, err := docstore.New(pool, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	index := vecindex.New(nil, logger)
	if cfg.VectorIndexEnabled {
		index = vecindex.New(pool, logger)
	}

	provider := newProvider(ctx, cfg, logger)

	fetcher := extract.NewFetcher()
	pipeline := ingest.New(store, index, provider, fetcher, logger, ingest.Config{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	retriever := retrieval.New(index, store, provider, logger)

	return &app{
		cfg:       cfg,
		store:     store,
		index:     index,
		provider:  provider,
		pipeline:  pipeline,
		retriever: retriever,
		logger:    logger,
		close:     pool.Close,
	}, nil
}

// newProvider builds the embedding provider. Without GEMINI_API_KEY
// the provider runs in offline mock mode, which keeps every command
// usable but marks ingested content as degraded.
func newProvider(ctx context.Context, cfg *config.Config, logger log.Logger) *embedding.Provider {
	interval := time.Duration(cfg.EmbedIntervalMS) * time.Millisecond

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, embeddings will be mocked")
		return embedding.NewProvider(nil, logger, embedding.WithMinInterval(interval))
	}

	client, err := embedding.NewGeminiClient(ctx, apiKey, cfg.EmbedderModel)
	if err != nil {
		logger.Warn("Gemini client setup failed, embeddings will be mocked", "error", err)
		return embedding.NewProvider(nil, logger, embedding.WithMinInterval(interval))
	}
	return embedding.NewProvider(client, logger, embedding.WithMinInterval(interval))
}
