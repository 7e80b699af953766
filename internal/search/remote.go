package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Remote reranker defaults.
const (
	DefaultRemoteEndpoint = "http://localhost:9659"
	DefaultRemoteModel    = "mixedbread-ai/mxbai-rerank-xsmall-v1"
	DefaultRemoteTimeout  = 10 * time.Second
)

// RemoteRerankerConfig configures the HTTP rerank client.
type RemoteRerankerConfig struct {
	Endpoint string
	Model    string
	Timeout  time.Duration

	// SkipHealthCheck skips the startup probe, for tests.
	SkipHealthCheck bool
}

// RemoteReranker scores (query, document) pairs through an external rerank
// service speaking a simple JSON protocol.
type RemoteReranker struct {
	client *http.Client
	config RemoteRerankerConfig

	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*RemoteReranker)(nil)

type remoteRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model,omitempty"`
	TopK      int      `json:"top_k,omitempty"`
}

type remoteRerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"score"`
	} `json:"results"`
}

// NewRemoteReranker creates a rerank client and verifies the service
// responds unless the health check is skipped.
func NewRemoteReranker(ctx context.Context, cfg RemoteRerankerConfig) (*RemoteReranker, error) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultRemoteEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultRemoteModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
	}

	r := &RemoteReranker{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := r.healthCheck(checkCtx); err != nil {
			return nil, fmt.Errorf("rerank service health check: %w", err)
		}
	}

	return r, nil
}

func (r *RemoteReranker) healthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.config.Endpoint+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("connect to rerank service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("rerank service unhealthy (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Rerank posts the batch to the service and returns its scored ordering.
func (r *RemoteReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, fmt.Errorf("reranker is closed")
	}
	r.mu.RUnlock()

	if len(documents) == 0 {
		return []RerankResult{}, nil
	}

	reqBody := remoteRerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.config.Model,
	}
	if topK > 0 {
		reqBody.TopK = topK
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost,
		r.config.Endpoint+"/rerank", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("rerank failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result remoteRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode rerank response: %w", err)
	}

	results := make([]RerankResult, len(result.Results))
	for i, entry := range result.Results {
		results[i] = RerankResult{Index: entry.Index, Score: entry.Score}
	}
	return results, nil
}

// Available probes the service health endpoint.
func (r *RemoteReranker) Available(ctx context.Context) bool {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return false
	}
	r.mu.RUnlock()

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return r.healthCheck(checkCtx) == nil
}

// Close releases idle connections.
func (r *RemoteReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	if transport, ok := r.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
	return nil
}
