package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/balkanpress/rassegna/internal/errors"
	"github.com/balkanpress/rassegna/internal/embed"
	"github.com/balkanpress/rassegna/internal/store"
	"github.com/balkanpress/rassegna/internal/telemetry"
)

// EngineConfig carries the orchestrator's tunables. Zero values fall back
// to defaults.
type EngineConfig struct {
	Weights       Weights
	RRFConstant   int
	CandidatePool int // candidates fetched per source in hybrid mode
	MaxLimit      int // upper bound on per-request limit

	RerankPool       int // candidates fed to the reranker
	RerankMaxTextLen int // characters of article text per rerank document
	RerankTimeout    time.Duration
}

// DefaultEngineConfig returns production defaults. The candidate pool of
// 50 gives fusion enough material independent of the final limit.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Weights:          DefaultWeights(),
		RRFConstant:      DefaultRRFConstant,
		CandidatePool:    50,
		MaxLimit:         100,
		RerankPool:       50,
		RerankMaxTextLen: 500,
		RerankTimeout:    10 * time.Second,
	}
}

func (c *EngineConfig) applyDefaults() {
	d := DefaultEngineConfig()
	if c.Weights == (Weights{}) {
		c.Weights = d.Weights
	}
	if c.RRFConstant <= 0 {
		c.RRFConstant = d.RRFConstant
	}
	if c.CandidatePool <= 0 {
		c.CandidatePool = d.CandidatePool
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.RerankPool <= 0 {
		c.RerankPool = d.RerankPool
	}
	if c.RerankMaxTextLen <= 0 {
		c.RerankMaxTextLen = d.RerankMaxTextLen
	}
	if c.RerankTimeout <= 0 {
		c.RerankTimeout = d.RerankTimeout
	}
}

// Engine orchestrates hybrid article search: it fans out to the lexical
// and semantic sources, fuses their rankings, optionally reranks, and
// enriches results with article text for direct rendering.
type Engine struct {
	lexIndex store.LexicalIndex
	vectors  store.VectorStore
	embedder embed.Embedder
	articles store.ArticleStore

	lexSource LexicalSource
	semSource SemanticSource

	fusion   *Fusion
	reranker Reranker
	metrics  *telemetry.SearchMetrics
	config   EngineConfig
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithReranker attaches a reranker for opt-in result refinement.
func WithReranker(r Reranker) EngineOption {
	return func(e *Engine) { e.reranker = r }
}

// WithMetrics attaches query telemetry.
func WithMetrics(m *telemetry.SearchMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithSources replaces the adapters built from the stores. Used by tests
// to inject failing sources.
func WithSources(lex LexicalSource, sem SemanticSource) EngineOption {
	return func(e *Engine) {
		if lex != nil {
			e.lexSource = lex
		}
		if sem != nil {
			e.semSource = sem
		}
	}
}

// NewEngine builds the orchestrator over the three stores and the
// embedder.
func NewEngine(
	lexical store.LexicalIndex,
	vectors store.VectorStore,
	embedder embed.Embedder,
	articles store.ArticleStore,
	cfg EngineConfig,
	opts ...EngineOption,
) *Engine {
	cfg.applyDefaults()

	e := &Engine{
		lexIndex:  lexical,
		vectors:   vectors,
		embedder:  embedder,
		articles:  articles,
		lexSource: NewLexicalAdapter(lexical),
		semSource: NewSemanticAdapter(vectors, embedder),
		fusion:    NewFusion(cfg.RRFConstant),
		config:    cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search runs one search request. Limit must be positive; unknown modes
// and non-positive limits are rejected before any source is called.
func (e *Engine) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	start := time.Now()

	if query == "" {
		return nil, apperrors.InvalidArgument("query must not be empty")
	}
	if opts.Limit <= 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidLimit,
			"limit must be positive, got %d", opts.Limit)
	}
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if !opts.Mode.Valid() {
		return nil, apperrors.Newf(apperrors.ErrCodeInvalidMode,
			"unknown search mode %q", opts.Mode)
	}
	if opts.Limit > e.config.MaxLimit {
		opts.Limit = e.config.MaxLimit
	}

	weights := e.config.Weights
	if opts.Weights != nil {
		if err := opts.Weights.Validate(); err != nil {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid fusion weights", err)
		}
		weights = *opts.Weights
	}

	fusion := e.fusion
	if opts.RRFConstant > 0 && opts.RRFConstant != e.fusion.K {
		fusion = NewFusion(opts.RRFConstant)
	}

	pool := e.config.CandidatePool
	if opts.CandidatePool > 0 {
		pool = opts.CandidatePool
	}
	if pool < opts.Limit {
		pool = opts.Limit
	}

	fused, degradedReason, err := e.retrieve(ctx, query, opts.Mode, pool, weights, fusion)
	if err != nil {
		return nil, err
	}

	resp, err := e.buildResponse(ctx, query, fused, opts)
	if err != nil {
		return nil, err
	}
	resp.Degraded = degradedReason != ""
	resp.DegradedReason = degradedReason

	latency := time.Since(start)
	slog.Debug("search_completed",
		slog.String("mode", string(resp.Mode)),
		slog.Int("results", len(resp.Results)),
		slog.Bool("degraded", resp.Degraded),
		slog.Bool("reranked", resp.Reranked),
		slog.Duration("latency", latency))

	if e.metrics != nil {
		e.metrics.Record(telemetry.SearchEvent{
			Mode:        string(resp.Mode),
			ResultCount: len(resp.Results),
			Latency:     latency,
			Degraded:    resp.Degraded,
			Reranked:    resp.Reranked,
			Timestamp:   time.Now(),
		})
	}

	return resp, nil
}

// retrieve fans out to the sources for the requested mode and returns
// fused candidates plus a degraded reason when a source failed and the
// other one answered.
func (e *Engine) retrieve(
	ctx context.Context,
	query string,
	mode Mode,
	pool int,
	weights Weights,
	fusion *Fusion,
) ([]*FusedResult, string, error) {
	switch mode {
	case ModeKeyword:
		candidates, err := e.lexSource.Search(ctx, query, pool)
		if err == nil {
			return fusion.SingleSource(candidates, ModeKeyword), "", nil
		}
		slog.Warn("lexical_adapter_failed",
			slog.String("code", apperrors.ErrCodeAdapterUnavailable),
			slog.String("error", err.Error()))
		fallback, semErr := e.semSource.Search(ctx, query, pool)
		if semErr != nil {
			return nil, "", apperrors.SearchUnavailable(errors.Join(err, semErr))
		}
		return fusion.SingleSource(fallback, ModeSemantic), DegradedLexicalDown, nil

	case ModeSemantic:
		candidates, err := e.semSource.Search(ctx, query, pool)
		if err == nil {
			return fusion.SingleSource(candidates, ModeSemantic), "", nil
		}
		slog.Warn("semantic_adapter_failed",
			slog.String("code", apperrors.ErrCodeAdapterUnavailable),
			slog.String("error", err.Error()))
		fallback, lexErr := e.lexSource.Search(ctx, query, pool)
		if lexErr != nil {
			return nil, "", apperrors.SearchUnavailable(errors.Join(err, lexErr))
		}
		return fusion.SingleSource(fallback, ModeKeyword), DegradedSemanticDown, nil

	default: // ModeHybrid
		lexResults, semResults, lexErr, semErr := e.parallelSearch(ctx, query, pool)
		if lexErr != nil && semErr != nil {
			return nil, "", apperrors.SearchUnavailable(errors.Join(lexErr, semErr))
		}
		if lexErr != nil {
			slog.Warn("lexical_adapter_failed",
				slog.String("code", apperrors.ErrCodeAdapterUnavailable),
				slog.String("error", lexErr.Error()))
			return fusion.SingleSource(semResults, ModeSemantic), DegradedLexicalDown, nil
		}
		if semErr != nil {
			slog.Warn("semantic_adapter_failed",
				slog.String("code", apperrors.ErrCodeAdapterUnavailable),
				slog.String("error", semErr.Error()))
			return fusion.SingleSource(lexResults, ModeKeyword), DegradedSemanticDown, nil
		}
		return fusion.Fuse(lexResults, semResults, weights), "", nil
	}
}

// parallelSearch runs both sources concurrently. Source failures are
// captured, not returned through the group, so one failing source never
// cancels the other.
func (e *Engine) parallelSearch(ctx context.Context, query string, pool int) (
	lexResults, semResults []*Candidate,
	lexErr, semErr error,
) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lexResults, lexErr = e.lexSource.Search(gctx, query, pool)
		return nil
	})
	g.Go(func() error {
		semResults, semErr = e.semSource.Search(gctx, query, pool)
		return nil
	})

	// The goroutines capture their errors instead of returning them, so
	// Wait only synchronizes.
	_ = g.Wait()
	return lexResults, semResults, lexErr, semErr
}

// buildResponse enriches fused candidates with article text, applies the
// metadata filter, optionally reranks and truncates to the limit.
func (e *Engine) buildResponse(ctx context.Context, query string, fused []*FusedResult, opts Options) (*Response, error) {
	mode := ModeHybrid
	if len(fused) > 0 {
		mode = fused[0].SearchType
	} else if opts.Mode != "" {
		mode = opts.Mode
	}

	resp := &Response{Results: []*Result{}, Mode: mode}
	if len(fused) == 0 {
		return resp, nil
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.DocumentID
	}
	arts, err := e.articles.GetArticles(ctx, ids)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeStoreFailed,
			"failed to load articles for results", err)
	}
	byID := make(map[string]*store.Article, len(arts))
	for _, a := range arts {
		byID[a.ID] = a
	}

	// Candidates without stored metadata (index drift) or outside the
	// filter drop out before ranking positions are assigned.
	results := make([]*Result, 0, len(fused))
	for _, f := range fused {
		a, ok := byID[f.DocumentID]
		if !ok || !opts.Filter.Matches(a) {
			continue
		}
		results = append(results, &Result{
			FusedResult: *f,
			Title:       a.Title(),
			Snippet:     makeSnippet(a.Content()),
			Source:      a.Source,
			Sector:      a.Sector,
		})
	}

	if opts.ApplyReranking {
		results, resp.Reranked = e.rerank(ctx, query, results)
	}

	if len(results) > opts.Limit {
		results = results[:opts.Limit]
	}
	for i, r := range results {
		r.FinalRank = i + 1
	}
	resp.Results = results
	return resp, nil
}

// rerank reorders results by cross-encoder score. It never fails the
// request: any reranker error or timeout falls back to the incoming order
// with a warning.
func (e *Engine) rerank(ctx context.Context, query string, results []*Result) ([]*Result, bool) {
	if e.reranker == nil || len(results) < 2 {
		return results, false
	}
	if !e.reranker.Available(ctx) {
		slog.Warn("reranker_unavailable",
			slog.String("code", apperrors.ErrCodeRerankUnavailable))
		return results, false
	}

	pool := results
	if len(pool) > e.config.RerankPool {
		pool = pool[:e.config.RerankPool]
	}

	documents := make([]string, len(pool))
	for i, r := range pool {
		documents[i] = rerankText(r.Title, r.Snippet, e.config.RerankMaxTextLen)
	}

	rerankCtx, cancel := context.WithTimeout(ctx, e.config.RerankTimeout)
	defer cancel()

	scored, err := e.reranker.Rerank(rerankCtx, query, documents, 0)
	if err != nil {
		slog.Warn("rerank_failed_using_original_order",
			slog.String("code", apperrors.ErrCodeRerankUnavailable),
			slog.String("error", err.Error()))
		return results, false
	}

	reordered := make([]*Result, 0, len(results))
	seen := make(map[int]bool, len(scored))
	for _, rr := range scored {
		if rr.Index < 0 || rr.Index >= len(pool) || seen[rr.Index] {
			slog.Warn("rerank_invalid_index", slog.Int("index", rr.Index))
			continue
		}
		seen[rr.Index] = true
		r := pool[rr.Index]
		r.RerankScore = rr.Score
		reordered = append(reordered, r)
	}
	// Pool members the service failed to score keep their fused order
	// after the scored block; a short or malformed response must not
	// shrink the result set.
	for i, r := range pool {
		if !seen[i] {
			reordered = append(reordered, r)
		}
	}
	// Anything beyond the rerank pool keeps its fused order at the tail.
	reordered = append(reordered, results[len(pool):]...)
	return reordered, true
}

// rerankText assembles the document fed to the cross-encoder: title and
// content joined by a newline, truncated to bound latency.
func rerankText(title, content string, maxLen int) string {
	text := title + "\n" + content
	runes := []rune(text)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return text
}

// Index adds or updates articles across all three stores: metadata first,
// then the lexical index, then embeddings into the vector store.
func (e *Engine) Index(ctx context.Context, articles []*store.Article) error {
	if len(articles) == 0 {
		return nil
	}

	start := time.Now()

	if err := e.articles.SaveArticles(ctx, articles); err != nil {
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to save articles", err)
	}
	if err := e.lexIndex.Index(ctx, articles); err != nil {
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to index articles", err)
	}

	ids := make([]string, len(articles))
	texts := make([]string, len(articles))
	for i, a := range articles {
		ids[i] = a.ID
		texts[i] = a.SearchText()
	}
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeEmbeddingFailed, "failed to embed articles", err)
	}
	if err := e.vectors.Add(ctx, ids, vectors); err != nil {
		var dimErr store.ErrDimensionMismatch
		if errors.As(err, &dimErr) {
			return apperrors.New(apperrors.ErrCodeDimensionMismatch, dimErr.Error(), err)
		}
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to store vectors", err)
	}

	slog.Info("articles_indexed",
		slog.Int("count", len(articles)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// Delete removes articles from all three stores.
func (e *Engine) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := e.lexIndex.Delete(ctx, ids); err != nil {
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to delete from lexical index", err)
	}
	if err := e.vectors.Delete(ctx, ids); err != nil {
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to delete vectors", err)
	}
	if err := e.articles.DeleteArticles(ctx, ids); err != nil {
		return apperrors.New(apperrors.ErrCodeStoreFailed, "failed to delete articles", err)
	}
	return nil
}

// EngineStats summarizes index sizes for diagnostics.
type EngineStats struct {
	Articles int    `json:"articles"`
	Indexed  int    `json:"indexed"`
	Vectors  int    `json:"vectors"`
	Embedder string `json:"embedder"`
}

// Stats reports store sizes. Count errors degrade to zero rather than
// failing diagnostics.
func (e *Engine) Stats(ctx context.Context) *EngineStats {
	stats := &EngineStats{
		Vectors:  e.vectors.Count(),
		Embedder: e.embedder.ModelName(),
	}
	if n, err := e.articles.Count(ctx); err == nil {
		stats.Articles = n
	}
	if n, err := e.lexIndex.Count(); err == nil {
		stats.Indexed = n
	}
	return stats
}

// Close closes every owned component, joining errors.
func (e *Engine) Close() error {
	var errs []error
	if e.reranker != nil {
		if err := e.reranker.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close reranker: %w", err))
		}
	}
	if err := e.lexIndex.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close lexical index: %w", err))
	}
	if err := e.vectors.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close vector store: %w", err))
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close embedder: %w", err))
	}
	if err := e.articles.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close article store: %w", err))
	}
	return errors.Join(errs...)
}
