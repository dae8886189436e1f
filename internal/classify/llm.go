package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Completer is the narrow LLM capability Layer 3 needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// PromptInputs carries everything the Layer 3 prompt builder needs to bias
// classification toward the right intent.
type PromptInputs struct {
	Query            string
	RuleDescriptions []string
	ToolDescriptions []string
	RecentTurns      []string // last N "role: content" lines, oldest first
	PreviousIntent   *model.Intent
	ActiveFlowID     string
}

const llmClassifyPromptTemplate = `You are an intent classifier for a conversational assistant. Classify the user's message into exactly one of: rag, direct, rule, tool.

Active rules:
%s

Available tools:
%s

Recent conversation:
%s

Previous assistant intent: %s
Active flow: %s

User message: %q

Think step by step inside <thinking>...</thinking> tags, then respond with exactly one line of JSON after the closing tag:
{"intent": "<rag|direct|rule|tool>", "confidence": 0.0-1.0, "reasoning": "<one sentence>"}`

func buildLLMClassifyPrompt(in PromptInputs) string {
	rules := "(none)"
	if len(in.RuleDescriptions) > 0 {
		rules = strings.Join(in.RuleDescriptions, "\n")
	}
	tools := "(none)"
	if len(in.ToolDescriptions) > 0 {
		tools = strings.Join(in.ToolDescriptions, "\n")
	}
	turns := "(none)"
	if len(in.RecentTurns) > 0 {
		turns = strings.Join(in.RecentTurns, "\n")
	}
	prevIntent := "(none)"
	if in.PreviousIntent != nil {
		prevIntent = string(*in.PreviousIntent)
	}
	flow := "(none)"
	if in.ActiveFlowID != "" {
		flow = in.ActiveFlowID + " — bias toward rule"
	}

	return fmt.Sprintf(llmClassifyPromptTemplate, rules, tools, turns, prevIntent, flow, in.Query)
}

var fencePattern = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
var jsonLinePattern = regexp.MustCompile(`(?s)\{[^{}]*\}`)

type llmClassifyResponse struct {
	Intent     model.Intent `json:"intent"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
}

// parseLLMClassifyResponse tolerantly extracts the trailing JSON object: it
// strips <thinking>...</thinking>, strips markdown code fences if present,
// then finds the last {...} blob and decodes it. On any failure it returns
// (direct, 0, "parse error") per the cascade policy.
func parseLLMClassifyResponse(raw string, defaultIntent model.Intent) Result {
	text := raw
	if idx := strings.LastIndex(text, "</thinking>"); idx != -1 {
		text = text[idx+len("</thinking>"):]
	}
	text = strings.TrimSpace(text)

	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}

	candidate := text
	if matches := jsonLinePattern.FindAllString(text, -1); len(matches) > 0 {
		candidate = matches[len(matches)-1]
	}

	var parsed llmClassifyResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(candidate)), &parsed); err != nil {
		return Result{Intent: model.IntentDirect, Confidence: 0, Layer: model.LayerLLM, Reasoning: "parse error: " + err.Error()}
	}
	if parsed.Intent == "" {
		parsed.Intent = defaultIntent
	}
	return Result{Intent: parsed.Intent, Confidence: parsed.Confidence, Layer: model.LayerLLM, Reasoning: parsed.Reasoning}
}

// LLMClassifier is Layer 3: a cached, prompt-driven classifier invoked only
// when Layers 1 and 2 fail to meet their confidence floors.
type LLMClassifier struct {
	llm           Completer
	cache         *Cache
	timeout       time.Duration
	defaultIntent model.Intent
}

// NewLLMClassifier builds Layer 3. cache may be nil to disable caching.
func NewLLMClassifier(llm Completer, cache *Cache, timeout time.Duration, defaultIntent model.Intent) *LLMClassifier {
	return &LLMClassifier{llm: llm, cache: cache, timeout: timeout, defaultIntent: defaultIntent}
}

// Classify runs the cached LLM classification. The cache is bypassed when
// hasHistory is true, since conversation context changes the right answer
// for an otherwise-identical query string.
func (l *LLMClassifier) Classify(ctx context.Context, in PromptInputs, hasHistory bool) Result {
	normalized := strings.ToLower(strings.TrimSpace(in.Query))

	if !hasHistory && l.cache != nil {
		if cached, ok := l.cache.Get(normalized); ok {
			cached.Layer = model.LayerCache
			return cached
		}
	}

	callCtx := ctx
	var cancel context.CancelFunc
	if l.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	raw, err := l.llm.Complete(callCtx, buildLLMClassifyPrompt(in))
	if err != nil {
		return Result{Intent: l.defaultIntent, Confidence: 0, Layer: model.LayerLLM, Reasoning: "llm error: " + err.Error()}
	}

	result := parseLLMClassifyResponse(raw, l.defaultIntent)

	if !hasHistory && l.cache != nil {
		l.cache.Set(normalized, result)
	}
	return result
}
