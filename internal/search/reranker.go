package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RerankResult is a single reranked entry.
type RerankResult struct {
	// Index is the original position in the input documents slice.
	Index int
	// Score is the model-native relevance score, comparable only within
	// one call.
	Score float64
}

// Reranker re-scores (query, document) pairs with a cross-encoder and
// returns results sorted by score descending.
type Reranker interface {
	// Rerank scores documents against the query. topK of 0 returns all.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available checks if the reranker is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// NoOpReranker preserves the input order. Used when reranking is disabled.
type NoOpReranker struct{}

var _ Reranker = (*NoOpReranker)(nil)

// Rerank returns documents in original order with decreasing scores.
func (n *NoOpReranker) Rerank(_ context.Context, _ string, documents []string, topK int) ([]RerankResult, error) {
	results := make([]RerankResult, len(documents))
	for i := range documents {
		results[i] = RerankResult{Index: i, Score: 1.0 - float64(i)*0.01}
	}
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (n *NoOpReranker) Available(_ context.Context) bool { return true }
func (n *NoOpReranker) Close() error                     { return nil }

// tier identifies the resolved reranking backend. Transitions are one-way:
// once a tier has failed it is never retried for the process lifetime,
// avoiding repeated expensive failed model loads. A transient fix (say the
// remote service coming back) requires a restart to win back its tier.
type tier int

const (
	tierUnresolved tier = iota
	tierONNX
	tierRemote
	tierHeuristic
)

func (t tier) String() string {
	switch t {
	case tierONNX:
		return "onnx"
	case tierRemote:
		return "remote"
	case tierHeuristic:
		return "heuristic"
	default:
		return "unresolved"
	}
}

// TieredConfig configures the fallback chain.
type TieredConfig struct {
	// ModelPath is the ONNX cross-encoder model file. Empty skips tier 1.
	ModelPath string

	// Endpoint is the remote rerank service URL. Empty skips tier 2.
	Endpoint string
	Model    string

	// MaxTextLen truncates each document before scoring.
	MaxTextLen int

	// BatchSize bounds ONNX inference batches.
	BatchSize int

	Timeout time.Duration
}

// TieredReranker resolves a reranking backend lazily on first use and
// caches the choice process-wide:
//
//	tier 1: local ONNX cross-encoder
//	tier 2: remote rerank HTTP service
//	tier 3: lexical-overlap heuristic (never fails)
//
// Safe for concurrent use; resolution happens at most once even under
// concurrent first calls.
type TieredReranker struct {
	config TieredConfig

	mu      sync.Mutex
	current tier
	active  Reranker
	closed  bool
}

var _ Reranker = (*TieredReranker)(nil)

// NewTieredReranker creates an unresolved tiered reranker. No model is
// loaded until the first Rerank call.
func NewTieredReranker(cfg TieredConfig) *TieredReranker {
	return &TieredReranker{config: cfg, current: tierUnresolved}
}

// resolve picks the highest working tier. Caller holds r.mu.
func (r *TieredReranker) resolve(ctx context.Context) {
	if r.current != tierUnresolved {
		return
	}

	if r.config.ModelPath != "" {
		onnx, err := NewONNXReranker(r.config.ModelPath, r.config.BatchSize, r.config.MaxTextLen)
		if err == nil {
			r.current = tierONNX
			r.active = onnx
			slog.Info("reranker_resolved", slog.String("tier", r.current.String()))
			return
		}
		slog.Warn("reranker_tier_failed",
			slog.String("tier", tierONNX.String()),
			slog.String("error", err.Error()))
	}

	if r.config.Endpoint != "" {
		remote, err := NewRemoteReranker(ctx, RemoteRerankerConfig{
			Endpoint: r.config.Endpoint,
			Model:    r.config.Model,
			Timeout:  r.config.Timeout,
		})
		if err == nil {
			r.current = tierRemote
			r.active = remote
			slog.Info("reranker_resolved", slog.String("tier", r.current.String()))
			return
		}
		slog.Warn("reranker_tier_failed",
			slog.String("tier", tierRemote.String()),
			slog.String("error", err.Error()))
	}

	r.current = tierHeuristic
	r.active = NewHeuristicReranker()
	slog.Info("reranker_resolved", slog.String("tier", r.current.String()))
}

// demote moves past the current tier after a runtime failure. Caller holds
// r.mu. The heuristic tier never demotes.
func (r *TieredReranker) demote() {
	if r.current == tierHeuristic {
		return
	}
	if r.active != nil {
		_ = r.active.Close()
		r.active = nil
	}
	failed := r.current

	switch r.current {
	case tierONNX:
		// Try the remote tier next; resolve() handles an empty endpoint
		// by landing on the heuristic.
		r.current = tierUnresolved
		r.config.ModelPath = ""
	default:
		r.current = tierHeuristic
		r.active = NewHeuristicReranker()
	}

	slog.Warn("reranker_tier_demoted", slog.String("failed_tier", failed.String()))
}

// Rerank scores documents with the resolved tier, demoting on failure
// until the heuristic answers. It only returns an error after the
// reranker is closed or the context is done.
//
// The mutex guards resolution and demotion only; the inference call runs
// outside it so concurrent searches rerank in parallel. Each tier backend
// is internally synchronized.
func (r *TieredReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return nil, fmt.Errorf("reranker is closed")
		}
		r.resolve(ctx)
		active, current := r.active, r.current
		r.mu.Unlock()

		results, err := active.Rerank(ctx, query, documents, topK)
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		slog.Warn("rerank_call_failed",
			slog.String("tier", current.String()),
			slog.String("error", err.Error()))

		r.mu.Lock()
		// Another caller may have demoted this tier already.
		if r.current == current {
			r.demote()
		}
		r.mu.Unlock()
	}
}

// Tier returns the resolved tier name, "unresolved" before first use.
func (r *TieredReranker) Tier() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current.String()
}

// Available reports whether reranking can serve; the heuristic floor makes
// this true until Close.
func (r *TieredReranker) Available(_ context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// Close releases the active backend.
func (r *TieredReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if r.active != nil {
		err := r.active.Close()
		r.active = nil
		return err
	}
	return nil
}
