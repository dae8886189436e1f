package handlers

import (
	"context"
	"time"

	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/ruleengine"
)

// RuleHandler answers by matching the deterministic rule table. When an LLM
// is configured it falls back to Engine.MatchWithLLM on a deterministic
// miss; otherwise it only ever does an exact/regex/flow match. Grounded on
// rule_handler.py's match vs match_with_llm branching.
type RuleHandler struct {
	engine               *ruleengine.Engine
	llm                  ruleengine.Completer
	timeoutSeconds       int
	llmConfidenceThreshold float64
}

// NewRuleHandler builds a RuleHandler. Pass a nil llm to disable the
// LLM-assisted fallback entirely.
func NewRuleHandler(engine *ruleengine.Engine, llm ruleengine.Completer, timeoutSeconds int, llmConfidenceThreshold float64) *RuleHandler {
	return &RuleHandler{engine: engine, llm: llm, timeoutSeconds: timeoutSeconds, llmConfidenceThreshold: llmConfidenceThreshold}
}

func (h *RuleHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	var flowCtx *model.FlowContext
	if in.Conversation.FlowState != nil {
		flowCtx = in.Conversation.FlowState.Flow
	}

	var match *ruleengine.Match
	if h.llm != nil {
		timeout := time.Duration(h.timeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		match = h.engine.MatchWithLLM(ctx, in.Query, h.llm, h.llmConfidenceThreshold, timeout, flowCtx)
	} else {
		match = h.engine.Match(in.Query, flowCtx)
	}

	if match == nil {
		return orchestrator.HandlerOutput{}, nil
	}

	out := orchestrator.HandlerOutput{
		Answer:      match.RenderedAnswer,
		RuleMatched: &match.Rule.Name,
	}
	if !flowCtx.IsEmpty() || match.NextFlowContext != nil {
		flow := cloneFlowState(in.Conversation.FlowState)
		flow.Flow = match.NextFlowContext
		out.FlowState = flow
	}
	return out, nil
}
