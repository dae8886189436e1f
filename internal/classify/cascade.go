package classify

import (
	"context"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Cascade runs Layer 1 -> Layer 2 -> Layer 3 in order, stopping at the
// first layer whose confidence meets its floor. Embedding may be nil (no
// prototypes configured); LLM is required.
type Cascade struct {
	Keyword                    *KeywordClassifier
	Embedding                  *EmbeddingClassifier
	LLM                        *LLMClassifier
	EmbeddingConfidenceThreshold float64
}

// Classify runs the cascade for one query. hasHistory controls whether
// Layer 3's cache is consulted (see LLMClassifier.Classify).
func (c *Cascade) Classify(ctx context.Context, in PromptInputs, hasHistory bool) Result {
	if c.Keyword != nil {
		if r := c.Keyword.Classify(in.Query); r != nil {
			return *r
		}
	}

	if c.Embedding != nil {
		if r, err := c.Embedding.Classify(ctx, in.Query); err == nil && r.Confidence >= c.EmbeddingConfidenceThreshold {
			return *r
		}
	}

	return c.LLM.Classify(ctx, in, hasHistory)
}

// ApplyLowConfidenceStrategy implements the cascade's final confidence
// gate: when the result is still below minConfidence, fallback rewrites
// the intent to defaultIntent; ask_user signals the caller to return a
// clarification prompt instead of dispatching a handler.
func ApplyLowConfidenceStrategy(result Result, minConfidence float64, strategy model.LowConfidenceStrategy, defaultIntent model.Intent) (final Result, needsClarification bool) {
	if result.Confidence >= minConfidence {
		return result, false
	}
	if strategy == model.StrategyAskUser {
		return result, true
	}
	result.Intent = defaultIntent
	return result, false
}
