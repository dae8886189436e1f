package llmclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// EmbeddingClient generates vectors for the classifier cascade's Layer 2
// (embedding-prototype cosine similarity) and any knowledge-base retrieval
// the RAG handler performs.
type EmbeddingClient struct {
	openai     *openai.Client
	model      string
	dimensions int
}

// NewEmbeddingClient builds the embedding client for the configured provider.
func NewEmbeddingClient(cfg Config) (*EmbeddingClient, error) {
	baseURL, err := providerBaseURL(cfg.Provider, cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if baseURL != "" {
		clientConfig.BaseURL = baseURL
	}

	return &EmbeddingClient{
		openai:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.EmbeddingModel,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed returns the vector for a single text.
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, errors.New("llmclient: empty embedding result")
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per input text, in order.
func (e *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("llmclient: no texts provided for embedding")
	}

	resp, err := e.openai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: create embeddings failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("llmclient: empty embedding response")
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the configured vector dimension.
func (e *EmbeddingClient) Dimensions() int { return e.dimensions }
