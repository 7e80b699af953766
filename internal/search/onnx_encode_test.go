package search

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePairLayout(t *testing.T) {
	ids, mask, types := encodePair("governo serbia", "elezioni a belgrado", onnxMaxTokens)
	require.Len(t, ids, onnxMaxTokens)

	// [CLS] governo serbia [SEP] elezioni a belgrado [SEP]
	assert.EqualValues(t, onnxClsToken, ids[0])
	assert.EqualValues(t, onnxSepToken, ids[3])
	assert.EqualValues(t, onnxSepToken, ids[7])

	for pos := 0; pos <= 3; pos++ {
		assert.EqualValues(t, 0, types[pos], "query segment at %d", pos)
	}
	for pos := 4; pos <= 7; pos++ {
		assert.EqualValues(t, 1, types[pos], "document segment at %d", pos)
	}
	for pos := 0; pos <= 7; pos++ {
		assert.EqualValues(t, 1, mask[pos])
	}

	// Padding past the sequence stays masked out.
	assert.EqualValues(t, 0, ids[8])
	assert.EqualValues(t, 0, mask[8])
}

func TestEncodePairStableTokenIDs(t *testing.T) {
	a, _, _ := encodePair("inflazione", "banca centrale", onnxMaxTokens)
	b, _, _ := encodePair("inflazione", "banca centrale", onnxMaxTokens)
	assert.Equal(t, a, b)
}

func TestPackEncodedBatchRows(t *testing.T) {
	const batch = 4
	ids := make([]int64, batch*onnxMaxTokens)
	mask := make([]int64, batch*onnxMaxTokens)
	types := make([]int64, batch*onnxMaxTokens)

	docs := []string{"elezioni a belgrado", "banca centrale"}
	packEncodedBatch("governo", docs, 500, onnxMaxTokens, ids, mask, types)

	// Each document lands in its own row.
	for row := range docs {
		off := row * onnxMaxTokens
		assert.EqualValues(t, onnxClsToken, ids[off], "row %d", row)
		assert.EqualValues(t, 1, mask[off], "row %d", row)
	}
	wantRow, _, _ := encodePair("governo", docs[1], onnxMaxTokens)
	assert.Equal(t, wantRow, ids[onnxMaxTokens:2*onnxMaxTokens])
}

func TestPackEncodedBatchZeroesTail(t *testing.T) {
	const batch = 3
	ids := make([]int64, batch*onnxMaxTokens)
	mask := make([]int64, batch*onnxMaxTokens)
	types := make([]int64, batch*onnxMaxTokens)

	// Fill all rows, then pack a shorter batch: stale rows from the
	// previous call must not survive as attended input.
	packEncodedBatch("governo", []string{"uno", "due", "tre"}, 500, onnxMaxTokens, ids, mask, types)
	packEncodedBatch("governo", []string{"solo"}, 500, onnxMaxTokens, ids, mask, types)

	for i := onnxMaxTokens; i < len(ids); i++ {
		require.EqualValues(t, 0, ids[i], "stale id at %d", i)
		require.EqualValues(t, 0, mask[i], "stale mask at %d", i)
		require.EqualValues(t, 0, types[i], "stale type at %d", i)
	}
}

func TestPackEncodedBatchTruncatesLongDocuments(t *testing.T) {
	ids := make([]int64, onnxMaxTokens)
	mask := make([]int64, onnxMaxTokens)
	types := make([]int64, onnxMaxTokens)

	long := strings.Repeat("parola ", 100) + "finale"
	packEncodedBatch("governo", []string{long}, 20, onnxMaxTokens, ids, mask, types)

	// "parola parola parola" fits in 20 bytes; the tail never encodes.
	want, _, _ := encodePair("governo", long[:20], onnxMaxTokens)
	assert.Equal(t, want, ids)
}
