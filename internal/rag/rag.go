// Package rag defines the opaque retrieval-augmented-generation capability
// the orchestrator's RAGHandler depends on. The core never knows how answers
// are retrieved — file parsing, chunking, and vector-store administration
// are out of core scope; ragstub provides one concrete, pgvector-backed
// exerciser of this interface.
package rag

import (
	"context"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Result is one RAG pipeline answer plus the sources it was grounded on.
type Result struct {
	Answer  string
	Sources []model.Source
}

// Service is the opaque RAG capability: ask a question, or search the
// knowledge base directly without generating an answer.
type Service interface {
	Ask(ctx context.Context, query string) (Result, error)
	Search(ctx context.Context, query string, topK int) ([]model.Source, error)
}
