package ruleengine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vidinsight-tech/queryon/internal/model"
)

// Completer is the narrow capability the rule engine needs from an LLM
// client: a single-shot text completion. Satisfied by internal/llmclient.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const llmRuleMatchPrompt = "You are a rule matcher. Given the user message and a list of rules, " +
	"determine which rule (if any) best matches the user's intent.\n\n" +
	"Rules:\n%s\n\n" +
	"User message: \"%s\"\n\n" +
	"If a rule matches, respond with ONLY the JSON: {\"rule_id\": \"<id>\", \"confidence\": 0.0-1.0}\n" +
	"If no rule matches, respond with: {\"rule_id\": null, \"confidence\": 0.0}"

type llmRuleMatchResponse struct {
	RuleID     *string `json:"rule_id"`
	Confidence float64 `json:"confidence"`
}

// MatchWithLLM tries the deterministic match first; only on a miss does it
// ask the LLM to pick among active standalone (non-flow) rules by name and
// description, gated by confidenceThreshold.
func (e *Engine) MatchWithLLM(ctx context.Context, query string, llm Completer, confidenceThreshold float64, timeout time.Duration, flowCtx *model.FlowContext) *Match {
	if m := e.Match(query, flowCtx); m != nil {
		return m
	}

	var active []*model.Rule
	for _, rule := range e.rules {
		if rule.IsActive && !rule.IsFlowBound() {
			active = append(active, rule)
		}
	}
	if len(active) == 0 {
		return nil
	}

	var b strings.Builder
	for _, r := range active {
		fmt.Fprintf(&b, "- id=%s | name=%q | description=%q\n", r.ID, r.Name, r.Description)
	}
	prompt := fmt.Sprintf(llmRuleMatchPrompt, b.String(), query)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := llm.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("rule engine: LLM rule matching failed", "error", err)
		return nil
	}

	var parsed llmRuleMatchResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		slog.Warn("rule engine: LLM rule matching returned unparsable JSON", "error", err)
		return nil
	}
	if parsed.RuleID == nil || parsed.Confidence < confidenceThreshold {
		return nil
	}

	var matched *model.Rule
	for _, r := range active {
		if r.ID == *parsed.RuleID {
			matched = r
			break
		}
	}
	if matched == nil {
		slog.Debug("rule engine: LLM returned unknown rule_id", "rule_id", *parsed.RuleID)
		return nil
	}

	return &Match{
		Rule:            matched,
		RenderedAnswer:  e.render(matched),
		NextFlowContext: e.buildNextCtx(matched, query, flowCtx),
	}
}
