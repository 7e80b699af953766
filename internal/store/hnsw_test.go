package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVectorStore(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWAddAndSearch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	err := s.Add(ctx,
		[]string{"a1", "a2", "a3"},
		[][]float32{
			{1, 0, 0, 0},
			{0, 1, 0, 0},
			{0.9, 0.1, 0, 0},
		})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count())

	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a1", results[0].ID)
	assert.Equal(t, "a3", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestHNSWDimensionMismatch(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	err := s.Add(ctx, []string{"a1"}, [][]float32{{1, 0}})
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search(ctx, []float32{1, 0}, 5)
	require.Error(t, err)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWUpdateExisting(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []string{"a1"}, [][]float32{{1, 0, 0, 0}}))
	require.NoError(t, s.Add(ctx, []string{"a1"}, [][]float32{{0, 1, 0, 0}}))
	assert.Equal(t, 1, s.Count())

	results, err := s.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
}

func TestHNSWDelete(t *testing.T) {
	s := newTestVectorStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx,
		[]string{"a1", "a2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))

	require.NoError(t, s.Delete(ctx, []string{"a1", "missing"}))
	assert.Equal(t, 1, s.Count())

	// The deleted vector must never surface, even as nearest neighbour.
	results, err := s.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a2", results[0].ID)
}

func TestHNSWEmptySearch(t *testing.T) {
	s := newTestVectorStore(t)

	results, err := s.Search(context.Background(), []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWSaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.hnsw")
	ctx := context.Background()

	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx,
		[]string{"a1", "a2"},
		[][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}))
	require.NoError(t, s.Save(path))
	require.NoError(t, s.Close())

	dims, err := ReadStoredDimensions(path)
	require.NoError(t, err)
	assert.Equal(t, 4, dims)

	loaded, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	defer loaded.Close()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search(ctx, []float32{1, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a1", results[0].ID)
}

func TestReadStoredDimensionsFresh(t *testing.T) {
	dims, err := ReadStoredDimensions(filepath.Join(t.TempDir(), "missing.hnsw"))
	require.NoError(t, err)
	assert.Equal(t, 0, dims)
}

func TestHNSWClosedStore(t *testing.T) {
	s, err := NewHNSWStore(VectorStoreConfig{Dimensions: 4})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.Error(t, s.Add(ctx, []string{"a1"}, [][]float32{{1, 0, 0, 0}}))
	_, err = s.Search(ctx, []float32{1, 0, 0, 0}, 1)
	assert.Error(t, err)
	assert.Equal(t, 0, s.Count())
	// Close is idempotent.
	assert.NoError(t, s.Close())
}
