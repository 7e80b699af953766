//go:build !cgo
// +build !cgo

package search

import (
	"context"
	"errors"
)

// ONNXReranker stub when built without CGO; see onnx.go for the real
// implementation.
type ONNXReranker struct{}

// NewONNXReranker fails when built without CGO, which pushes the tiered
// reranker to the next tier.
func NewONNXReranker(_ string, _, _ int) (*ONNXReranker, error) {
	return nil, errors.New("ONNX reranker requires CGO; build with CGO_ENABLED=1 and onnxruntime")
}

func (r *ONNXReranker) Rerank(_ context.Context, _ string, _ []string, _ int) ([]RerankResult, error) {
	return nil, errors.New("ONNX reranker unavailable")
}

func (r *ONNXReranker) Available(_ context.Context) bool { return false }

func (r *ONNXReranker) Close() error { return nil }
