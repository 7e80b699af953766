package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps StaticEmbedder and counts inner calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls      atomic.Int64
	embedBatchTexts atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.embedBatchTexts.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedHitsCache(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()
	ctx := context.Background()

	v1, err := c.Embed(ctx, "notizia")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "notizia")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int64(1), inner.embedCalls.Load())
}

func TestCachedEmbedBatchOnlyForwardsMisses(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()
	ctx := context.Background()

	_, err := c.Embed(ctx, "a")
	require.NoError(t, err)

	vectors, err := c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, int64(2), inner.embedBatchTexts.Load())

	// All cached now.
	_, err = c.EmbedBatch(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inner.embedBatchTexts.Load())
}

func TestCachedPassthrough(t *testing.T) {
	c := NewCachedEmbedder(NewStaticEmbedder(), 0)
	defer c.Close()

	assert.Equal(t, StaticDimensions, c.Dimensions())
	assert.Equal(t, "static", c.ModelName())
	assert.True(t, c.Available(context.Background()))
}
