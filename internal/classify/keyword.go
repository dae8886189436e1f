// Package classify implements the three-layer intent classification cascade:
// keyword/pattern pre-classifier, embedding-prototype similarity classifier,
// and a cached LLM classifier. Each layer returns a Result or nil; the
// Cascade applies them in order and stops at the first confident hit.
package classify

import (
	"strings"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Result is what any cascade layer (or the cascade itself) produces.
type Result struct {
	Intent     model.Intent
	Confidence float64
	Layer      model.ClassifierLayer
	Reasoning  string
}

const (
	ruleHitConfidence = 0.95
	toolHitConfidence = 0.90
	ragHitConfidence  = 0.85
)

// KeywordClassifier is Layer 1: fast substring matching against three
// harvested keyword sets. A rule-keyword hit takes precedence over a RAG
// signal hit when both match in the same query, since rule_keywords is
// checked first.
type KeywordClassifier struct {
	ruleKeywords []string
	ragSignals   []string
	toolTriggers map[string][]string // tool name -> trigger phrases
}

// NewKeywordClassifier builds Layer 1 from the rule engine's harvested
// keywords (see internal/ruleengine.Engine.Keywords), a RAG signal phrase
// list, and a tool-name -> trigger-phrase map.
func NewKeywordClassifier(ruleKeywords, ragSignals []string, toolTriggers map[string][]string) *KeywordClassifier {
	return &KeywordClassifier{
		ruleKeywords: lowerAll(ruleKeywords),
		ragSignals:   lowerAll(ragSignals),
		toolTriggers: toolTriggers,
	}
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// DefaultRAGSignals is the out-of-the-box RAG-signal phrase list, covering
// Turkish and English knowledge-base query patterns.
var DefaultRAGSignals = []string{
	"nedir", "nasıl", "ne zaman", "nerede", "kaç", "fiyat", "fiyatı", "ücret",
	"hakkında bilgi", "detay", "açıklama",
	"what is", "how do", "how does", "when is", "where is", "how much", "tell me about",
}

// Classify returns a Result at a fixed confidence floor for the first
// matching keyword set, in precedence order: rule keywords, then tool
// triggers, then RAG signals. Returns nil on no match.
func (k *KeywordClassifier) Classify(query string) *Result {
	qLower := strings.ToLower(query)

	for _, kw := range k.ruleKeywords {
		if kw != "" && strings.Contains(qLower, kw) {
			return &Result{Intent: model.IntentRule, Confidence: ruleHitConfidence, Layer: model.LayerKeyword, Reasoning: "rule keyword match: " + kw}
		}
	}

	for tool, triggers := range k.toolTriggers {
		for _, t := range triggers {
			if t != "" && strings.Contains(qLower, strings.ToLower(t)) {
				return &Result{Intent: model.IntentTool, Confidence: toolHitConfidence, Layer: model.LayerKeyword, Reasoning: "tool trigger match: " + tool}
			}
		}
	}

	for _, sig := range k.ragSignals {
		if sig != "" && strings.Contains(qLower, sig) {
			return &Result{Intent: model.IntentRAG, Confidence: ragHitConfidence, Layer: model.LayerKeyword, Reasoning: "rag signal match: " + sig}
		}
	}

	return nil
}
