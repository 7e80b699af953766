package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/balkanpress/rassegna/internal/config"
	"github.com/balkanpress/rassegna/internal/embed"
	"github.com/balkanpress/rassegna/internal/search"
	"github.com/balkanpress/rassegna/internal/store"
)

// appStack bundles the wired components a command needs, with a single
// Close tearing everything down.
type appStack struct {
	Config   *config.Config
	Engine   *search.Engine
	Articles *store.SQLiteArticleStore

	vectorPath string
	vectors    *store.HNSWStore
}

// Close persists the vector index and closes the engine (which owns the
// remaining stores).
func (a *appStack) Close() error {
	if a.vectors != nil && a.vectors.Count() > 0 {
		if err := a.vectors.Save(a.vectorPath); err != nil {
			slog.Warn("vector_save_failed", slog.String("error", err.Error()))
		}
	}
	return a.Engine.Close()
}

// buildStack wires the full search stack from configuration: stores under
// the data directory, the configured embedder, the tiered reranker, and
// the orchestrator on top.
func buildStack(ctx context.Context, opts ...search.EngineOption) (*appStack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lexical, err := store.NewBleveLexicalIndex(filepath.Join(cfg.DataDir, "lexical.bleve"))
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.FactoryConfig{
		Provider:   cfg.Embeddings.Provider,
		Model:      cfg.Embeddings.Model,
		Host:       cfg.Embeddings.OllamaHost,
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
	})
	if err != nil {
		_ = lexical.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vectorPath := filepath.Join(cfg.DataDir, "vectors.hnsw")
	dimensions := embedder.Dimensions()
	if stored, err := store.ReadStoredDimensions(vectorPath); err == nil && stored > 0 {
		dimensions = stored
	}
	vectors, err := store.NewHNSWStore(store.VectorStoreConfig{Dimensions: dimensions})
	if err != nil {
		_ = lexical.Close()
		_ = embedder.Close()
		return nil, fmt.Errorf("create vector store: %w", err)
	}
	if _, err := os.Stat(vectorPath); err == nil {
		if err := vectors.Load(vectorPath); err != nil {
			slog.Warn("vector_load_failed", slog.String("error", err.Error()))
		}
	}

	articles, err := store.NewSQLiteArticleStore(filepath.Join(cfg.DataDir, "articles.db"))
	if err != nil {
		_ = lexical.Close()
		_ = embedder.Close()
		_ = vectors.Close()
		return nil, fmt.Errorf("open article store: %w", err)
	}

	reranker := search.NewTieredReranker(search.TieredConfig{
		ModelPath:  cfg.Rerank.ModelPath,
		Endpoint:   cfg.Rerank.RemoteEndpoint,
		Model:      cfg.Rerank.RemoteModel,
		MaxTextLen: cfg.Rerank.MaxTextLen,
		BatchSize:  cfg.Rerank.BatchSize,
		Timeout:    cfg.Rerank.Timeout,
	})

	engineOpts := append([]search.EngineOption{search.WithReranker(reranker)}, opts...)
	engine := search.NewEngine(lexical, vectors, embedder, articles, search.EngineConfig{
		Weights: search.Weights{
			Lexical:  cfg.Search.LexicalWeight,
			Semantic: cfg.Search.SemanticWeight,
		},
		RRFConstant:      cfg.Search.RRFConstant,
		CandidatePool:    cfg.Search.CandidatePool,
		MaxLimit:         cfg.Search.MaxLimit,
		RerankPool:       cfg.Rerank.Pool,
		RerankMaxTextLen: cfg.Rerank.MaxTextLen,
		RerankTimeout:    cfg.Rerank.Timeout,
	}, engineOpts...)

	return &appStack{
		Config:     cfg,
		Engine:     engine,
		Articles:   articles,
		vectorPath: vectorPath,
		vectors:    vectors,
	}, nil
}
