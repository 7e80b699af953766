package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRerankService scores documents by length, longest first, so tests
// can predict the ordering without a real model.
func fakeRerankService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/rerank", func(w http.ResponseWriter, r *http.Request) {
		var req remoteRerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type entry struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		}
		entries := make([]entry, len(req.Documents))
		for i, doc := range req.Documents {
			entries[i] = entry{Index: i, Score: float64(len(doc))}
		}
		for i := 0; i < len(entries); i++ {
			for j := i + 1; j < len(entries); j++ {
				if entries[j].Score > entries[i].Score {
					entries[i], entries[j] = entries[j], entries[i]
				}
			}
		}
		if req.TopK > 0 && req.TopK < len(entries) {
			entries = entries[:req.TopK]
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"results": entries})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteRerank(t *testing.T) {
	srv := fakeRerankService(t)

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{
		Endpoint: srv.URL,
	})
	require.NoError(t, err)
	defer r.Close()

	docs := []string{"breve", "un documento molto più lungo degli altri", "medio testo"}
	results, err := r.Rerank(context.Background(), "query", docs, 0)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	assert.Equal(t, 0, results[2].Index)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestRemoteRerankTopK(t *testing.T) {
	srv := fakeRerankService(t)

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "query", []string{"a", "bbb", "cc"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
}

func TestRemoteRerankEmptyDocuments(t *testing.T) {
	srv := fakeRerankService(t)

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	results, err := r.Rerank(context.Background(), "query", nil, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRemoteHealthCheckFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading model", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "health check")
}

func TestRemoteUnreachable(t *testing.T) {
	_, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{
		Endpoint: "http://127.0.0.1:1",
	})
	assert.Error(t, err)
}

func TestRemoteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "internal", http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "query", []string{"doc"}, 0)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestRemoteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{
		Endpoint: srv.URL,
		Timeout:  50 * time.Millisecond,
	})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Rerank(context.Background(), "query", []string{"doc"}, 0)
	assert.Error(t, err)
}

func TestRemoteClosed(t *testing.T) {
	srv := fakeRerankService(t)

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	require.NoError(t, r.Close())

	assert.False(t, r.Available(context.Background()))
	_, err = r.Rerank(context.Background(), "query", []string{"doc"}, 0)
	assert.Error(t, err)

	assert.NoError(t, r.Close(), "double close is a no-op")
}

func TestRemoteAvailable(t *testing.T) {
	srv := fakeRerankService(t)

	r, err := NewRemoteReranker(context.Background(), RemoteRerankerConfig{Endpoint: srv.URL})
	require.NoError(t, err)
	defer r.Close()

	assert.True(t, r.Available(context.Background()))
}
