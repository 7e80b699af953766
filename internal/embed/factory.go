package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Providers selectable in configuration. Empty means auto-detect.
const (
	ProviderOllama = "ollama"
	ProviderStatic = "static"
)

// FactoryConfig selects and configures the embedding provider.
type FactoryConfig struct {
	Provider   string        // "ollama", "static" or "" for auto
	Model      string        // ollama model name
	Host       string        // ollama host
	Dimensions int           // 0 = auto-detect
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int // 0 = default
}

// NewEmbedder creates the configured embedder wrapped in an LRU cache.
//
// With an empty provider it auto-detects: Ollama when reachable, otherwise
// the static hash embedder so indexing and search still work offline.
func NewEmbedder(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	var inner Embedder

	switch cfg.Provider {
	case ProviderOllama:
		e, err := newOllama(ctx, cfg)
		if err != nil {
			return nil, err
		}
		inner = e

	case ProviderStatic:
		inner = NewStaticEmbedder()

	case "":
		e, err := newOllama(ctx, cfg)
		if err != nil {
			slog.Warn("embedder_fallback_static",
				slog.String("reason", err.Error()))
			inner = NewStaticEmbedder()
		} else {
			inner = e
		}

	default:
		return nil, fmt.Errorf("unknown embedding provider: %q", cfg.Provider)
	}

	slog.Info("embedder_ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newOllama(ctx context.Context, cfg FactoryConfig) (*OllamaEmbedder, error) {
	return NewOllamaEmbedder(ctx, OllamaConfig{
		Host:       cfg.Host,
		Model:      cfg.Model,
		Dimensions: cfg.Dimensions,
		BatchSize:  cfg.BatchSize,
		Timeout:    cfg.Timeout,
	})
}
