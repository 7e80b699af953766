//go:build cgo
// +build cgo

package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXReranker runs a cross-encoder reranking model through ONNX Runtime.
// Requires CGO and the onnxruntime shared library.
type ONNXReranker struct {
	session    *ort.AdvancedSession
	batchSize  int
	maxTextLen int

	// Pre-allocated (batchSize, onnxMaxTokens) tensors reused across Run
	// calls; each batch overwrites the input rows and reads the logits
	// back per row.
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]

	mu     sync.Mutex
	closed bool
}

var _ Reranker = (*ONNXReranker)(nil)

// NewONNXReranker loads the cross-encoder model at modelPath. The ONNX
// environment is initialized on first use.
func NewONNXReranker(modelPath string, batchSize, maxTextLen int) (*ONNXReranker, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("model path is empty")
	}
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxTextLen <= 0 {
		maxTextLen = 500
	}

	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
	}

	shape := ort.NewShape(int64(batchSize), int64(onnxMaxTokens))
	inputIDs, err := ort.NewTensor(shape, make([]int64, batchSize*onnxMaxTokens))
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(shape, make([]int64, batchSize*onnxMaxTokens))
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	tokenTypeIDs, err := ort.NewTensor(shape, make([]int64, batchSize*onnxMaxTokens))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(int64(batchSize), 1), make([]float32, batchSize))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}

	return &ONNXReranker{
		session:       session,
		batchSize:     batchSize,
		maxTextLen:    maxTextLen,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		tokenTypeIDs:  tokenTypeIDs,
		output:        output,
	}, nil
}

// Rerank scores (query, document) pairs through the cross-encoder in
// batches of batchSize and sorts by logit descending. A short tail batch
// runs with its padding rows masked out.
func (r *ONNXReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("reranker is closed")
	}

	results := make([]RerankResult, len(documents))
	for start := 0; start < len(documents); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + r.batchSize
		if end > len(documents) {
			end = len(documents)
		}

		packEncodedBatch(query, documents[start:end], r.maxTextLen, onnxMaxTokens,
			r.inputIDs.GetData(), r.attentionMask.GetData(), r.tokenTypeIDs.GetData())

		if err := r.session.Run(); err != nil {
			return nil, fmt.Errorf("inference failed: %w", err)
		}

		logits := r.output.GetData()
		for row := 0; row < end-start; row++ {
			results[start+row] = RerankResult{Index: start + row, Score: float64(logits[row])}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Available reports whether the session is open.
func (r *ONNXReranker) Available(_ context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.closed
}

// Close destroys the session and tensors.
func (r *ONNXReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.session != nil {
		err = r.session.Destroy()
		r.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{r.inputIDs, r.attentionMask, r.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if r.output != nil {
		_ = r.output.Destroy()
	}
	r.inputIDs, r.attentionMask, r.tokenTypeIDs, r.output = nil, nil, nil, nil
	return err
}
