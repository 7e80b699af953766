package search

const (
	// onnxMaxTokens is the sequence length the cross-encoder sees per
	// (query, document) pair.
	onnxMaxTokens = 256

	// BERT special token IDs.
	onnxClsToken = 101
	onnxSepToken = 102

	// onnxVocabBuckets hashes words into the model vocabulary range.
	onnxVocabBuckets = 30000
)

// encodePair builds BERT-style inputs: [CLS] query [SEP] document [SEP],
// token type 0 for the query segment and 1 for the document segment.
func encodePair(query, document string, maxTokens int) (ids, mask, types []int64) {
	ids = make([]int64, maxTokens)
	mask = make([]int64, maxTokens)
	types = make([]int64, maxTokens)

	pos := 0
	put := (func(id, typeID int64) bool {
		if pos >= maxTokens {
			return false
		}
		ids[pos] = id
		mask[pos] = 1
		types[pos] = typeID
		pos++
		return true
	})

	put(onnxClsToken, 0)
	for _, word := range heuristicTokens(query) {
		if pos >= maxTokens/2 {
			break
		}
		put(hashTokenID(word), 0)
	}
	put(onnxSepToken, 0)
	for _, word := range heuristicTokens(document) {
		if pos >= maxTokens-1 {
			break
		}
		put(hashTokenID(word), 1)
	}
	put(onnxSepToken, 1)

	return ids, mask, types
}

// packEncodedBatch encodes one batch of documents into the flat
// (batch, maxTokens) tensor buffers, one row per document. Rows past the
// batch tail are zeroed so padding never attends.
func packEncodedBatch(query string, documents []string, maxTextLen, maxTokens int, ids, mask, types []int64) {
	for i := range ids {
		ids[i], mask[i], types[i] = 0, 0, 0
	}
	for row, doc := range documents {
		if len(doc) > maxTextLen {
			doc = doc[:maxTextLen]
		}
		rowIDs, rowMask, rowTypes := encodePair(query, doc, maxTokens)
		off := row * maxTokens
		copy(ids[off:off+maxTokens], rowIDs)
		copy(mask[off:off+maxTokens], rowMask)
		copy(types[off:off+maxTokens], rowTypes)
	}
}

// hashTokenID maps a word to a stable pseudo-vocabulary ID.
func hashTokenID(word string) int64 {
	h := 0
	for _, c := range word {
		h = 31*h + int(c)
	}
	if h < 0 {
		h = -h
	}
	return int64(h % onnxVocabBuckets)
}
