package classify

import (
	"context"
	"math"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Embedder is the narrow capability Layer 2 needs — satisfied by
// internal/llmclient.EmbeddingClient.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PrototypeSet is a curated list of example queries for one intent, embedded
// once at startup.
type PrototypeSet struct {
	Intent  model.Intent
	Queries []string
}

// DefaultPrototypes is the out-of-the-box example set per intent, covering
// Turkish and English phrasing. Deployments may override via configuration.
var DefaultPrototypes = []PrototypeSet{
	{Intent: model.IntentRAG, Queries: []string{
		"çalışma saatleriniz nedir", "hizmetleriniz hakkında bilgi alabilir miyim",
		"what are your business hours", "tell me about your services",
	}},
	{Intent: model.IntentDirect, Queries: []string{
		"merhaba", "nasılsın", "teşekkürler", "hello", "thank you", "how are you",
	}},
	{Intent: model.IntentRule, Queries: []string{
		"randevu almak istiyorum", "sipariş vermek istiyorum", "i want to book an appointment",
	}},
	{Intent: model.IntentTool, Queries: []string{
		"randevumu iptal et", "siparişimi takip et", "cancel my appointment", "track my order",
	}},
}

// EmbeddingClassifier is Layer 2: mean cosine similarity against per-intent
// prototype vectors, embedded once at construction time.
type EmbeddingClassifier struct {
	embedder   Embedder
	prototypes map[model.Intent][][]float32
}

// NewEmbeddingClassifier warms up the prototype cache by embedding every
// prototype query concurrently, one goroutine per intent set, so Classify
// only needs to embed the incoming query. A single bad prototype query
// fails the whole warmup — there's no degraded mode for a classifier with
// missing prototype vectors.
func NewEmbeddingClassifier(ctx context.Context, embedder Embedder, sets []PrototypeSet) (*EmbeddingClassifier, error) {
	prototypes := make(map[model.Intent][][]float32, len(sets))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, set := range sets {
		set := set
		g.Go(func() error {
			vectors := make([][]float32, 0, len(set.Queries))
			for _, q := range set.Queries {
				v, err := embedder.Embed(ctx, q)
				if err != nil {
					return err
				}
				vectors = append(vectors, v)
			}
			mu.Lock()
			prototypes[set.Intent] = vectors
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &EmbeddingClassifier{embedder: embedder, prototypes: prototypes}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func meanSimilarity(query []float32, prototypes [][]float32) float64 {
	if len(prototypes) == 0 {
		return 0
	}
	var sum float64
	for _, p := range prototypes {
		sum += cosineSimilarity(query, p)
	}
	return sum / float64(len(prototypes))
}

// Classify embeds the query and returns the argmax intent by mean cosine
// similarity against each intent's prototypes. Callers apply the
// embedding_confidence_threshold gate themselves (the orchestrator's
// cascade policy), since this layer always returns its best guess.
func (e *EmbeddingClassifier) Classify(ctx context.Context, query string) (*Result, error) {
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	var bestIntent model.Intent
	var best, second float64
	first := true
	for intent, protos := range e.prototypes {
		sim := meanSimilarity(vec, protos)
		if first || sim > best {
			second = best
			best = sim
			bestIntent = intent
			first = false
		} else if sim > second {
			second = sim
		}
	}

	return &Result{
		Intent:     bestIntent,
		Confidence: best,
		Layer:      model.LayerEmbedding,
		Reasoning:  "embedding prototype margin " + strconv.FormatFloat(math.Max(best-second, 0), 'f', 3, 64),
	}, nil
}
