// Package ragstub is a minimal, Postgres/pgvector-backed implementation of
// rag.Service. It has no ingestion pipeline of its own (parsing/chunking is
// explicitly out of core scope) — callers insert rows into document_chunk
// directly or through a future ingestion job; this package only answers
// Ask/Search over whatever is already indexed. Grounded on the teacher's
// store/db/postgres/episodic_memory_embedding.go pgvector usage.
package ragstub

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/rag"
)

// Embedder is the narrow embedding capability this package depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Completer is the narrow chat capability used to synthesize an answer from
// retrieved chunks.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Service answers rag.Service by running a cosine-distance nearest-neighbor
// search over document_chunk, then asking the LLM to compose an answer
// grounded in the retrieved text.
type Service struct {
	db        *sql.DB
	embedder  Embedder
	completer Completer
}

// New builds a ragstub.Service over an existing Postgres connection. db must
// have the pgvector extension enabled and a document_chunk table created by
// EnsureSchema.
func New(db *sql.DB, embedder Embedder, completer Completer) *Service {
	return &Service{db: db, embedder: embedder, completer: completer}
}

// EnsureSchema creates the knowledge-base tables if they do not already
// exist. Separate from internal/store's EnsureSchema since a deployment may
// run without RAG enabled at all.
func (s *Service) EnsureSchema(ctx context.Context, dimensions int) error {
	_, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return errors.Wrap(err, "ragstub: enable pgvector extension")
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS knowledge_document (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			source TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS document_chunk (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES knowledge_document(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		);
	`, dimensions))
	if err != nil {
		return errors.Wrap(err, "ragstub: create knowledge-base tables")
	}
	return nil
}

// UpsertChunk indexes one chunk of a document, embedding its content.
func (s *Service) UpsertChunk(ctx context.Context, documentID, chunkID string, chunkIndex int, content string) error {
	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return errors.Wrap(err, "ragstub: embed chunk")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO document_chunk (id, document_id, chunk_index, content, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET content = excluded.content, embedding = excluded.embedding
	`, chunkID, documentID, chunkIndex, content, pgvector.NewVector(vec))
	if err != nil {
		return errors.Wrap(err, "ragstub: upsert chunk")
	}
	return nil
}

// Search returns the topK chunks whose embedding is nearest query's
// embedding by cosine distance.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]model.Source, error) {
	if topK <= 0 {
		topK = 5
	}
	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "ragstub: embed query")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.title, c.document_id, c.chunk_index, c.content, 1 - (c.embedding <=> $1) AS score
		FROM document_chunk c
		JOIN knowledge_document d ON d.id = c.document_id
		ORDER BY c.embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(queryVec), topK)
	if err != nil {
		return nil, errors.Wrap(err, "ragstub: nearest-neighbor search")
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		var (
			title      string
			documentID string
			chunkIndex int
			content    string
			score      float64
		)
		if err := rows.Scan(&title, &documentID, &chunkIndex, &content, &score); err != nil {
			return nil, errors.Wrap(err, "ragstub: scan search row")
		}
		out = append(out, model.Source{
			Title:   title,
			Content: content,
			Score:   score,
			Extra: map[string]any{
				"document_id": documentID,
				"chunk_index": chunkIndex,
			},
		})
	}
	return out, rows.Err()
}

// Ask retrieves the top sources for query and asks the LLM to compose an
// answer grounded only in their content. Returns an empty Answer (not an
// error) when nothing relevant is indexed, so the orchestrator's
// rag-to-direct fallback can take over.
func (s *Service) Ask(ctx context.Context, query string) (rag.Result, error) {
	sources, err := s.Search(ctx, query, 5)
	if err != nil {
		return rag.Result{}, err
	}
	if len(sources) == 0 {
		return rag.Result{}, nil
	}

	var context strings.Builder
	for i, src := range sources {
		fmt.Fprintf(&context, "[%d] %s\n%s\n\n", i+1, src.Title, src.Content)
	}

	prompt := "Answer the user's question using only the context below. " +
		"If the context does not contain the answer, say you don't know.\n\n" +
		"Context:\n" + context.String() + "\nQuestion: " + query

	answer, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		return rag.Result{}, errors.Wrap(err, "ragstub: synthesize answer")
	}

	return rag.Result{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}
