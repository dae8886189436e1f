// Package orchestrator runs the per-turn pipeline: load conversation state,
// compute the active mode context, classify intent, dispatch to a handler,
// persist the turn, and record turn metrics. Grounded on
// original_source/backend/orchestrator/orchestrator.py's nine-step flow.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vidinsight-tech/queryon/internal/classify"
	"github.com/vidinsight-tech/queryon/internal/metrics"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/modeengine"
	"github.com/vidinsight-tech/queryon/internal/ruleengine"
	"github.com/vidinsight-tech/queryon/internal/store"
)

// Handler answers a classified turn. Exactly one Handler runs per turn,
// selected by the resolved model.Intent.
type Handler interface {
	Handle(ctx context.Context, in HandlerInput) (HandlerOutput, error)
}

// HandlerInput carries everything a Handler needs to answer one turn.
type HandlerInput struct {
	Conversation *model.Conversation
	Config       *model.OrchestratorConfig
	Query        string
	History      []*model.Message
	ActiveMode   *model.ActiveMode
	ModeContext  string
	Classifier   classify.Result
}

// HandlerOutput is a Handler's answer plus any side effects the
// orchestrator must apply afterward.
type HandlerOutput struct {
	Answer      string
	Sources     []model.Source
	ToolCalled  *string
	RuleMatched *string
	FlowState   *model.FlowState // set to replace the conversation's flow state, e.g. on save/confirm
}

// TurnResult is what Orchestrator.HandleTurn returns to the calling channel
// adapter.
type TurnResult struct {
	Answer             string
	Intent             model.Intent
	Confidence         float64
	NeedsClarification bool
	Sources            []model.Source
	TotalDuration       time.Duration
	UserMessageID      string // id of the just-persisted inbound message, for correlating a MessageEvent
}

// Orchestrator wires the rule engine, mode engine, classifier cascade, and
// store into the per-turn pipeline. Outbound webhook delivery is owned by
// the handler that triggers it (see handlers.CharacterHandler), since only
// that handler knows the per-deployment webhook URL/secret and the payload
// shape for the event it just caused.
type Orchestrator struct {
	store    *store.Store
	rules    *ruleengine.Engine
	cascade  *classify.Cascade
	handlers map[model.Intent]Handler
}

// New builds an Orchestrator. handlers must have an entry for every
// model.Intent the configuration can enable.
func New(st *store.Store, rules *ruleengine.Engine, cascade *classify.Cascade, handlers map[model.Intent]Handler) *Orchestrator {
	return &Orchestrator{store: st, rules: rules, cascade: cascade, handlers: handlers}
}

// HandleTurn runs one conversational turn end to end:
//  1. load the conversation and its flow state
//  2. compute the active mode context (appointment/order/reschedule prompt injection)
//  3. try a flow-bound/standalone rule match first (configurable)
//  4. otherwise run the classification cascade
//  5. apply the low-confidence strategy
//  6. dispatch to the resolved intent's Handler, re-running Direct when RAG
//     answers empty and fallback_to_direct is on
//  7. persist any flow-state change the handler produced
//  8. persist the assistant message and a classification event (the user
//     message is persisted before classification)
//  9. record turn metrics
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, query string) (*TurnResult, error) {
	start := time.Now()

	conv, err := o.store.Conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("orchestrator: conversation %s not found", conversationID)
	}

	cfg, err := o.store.Config.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load config: %w", err)
	}
	if cfg == nil {
		cfg = defaultConfig()
	}

	activeMode, modeContext := modeengine.ComputeModeContext(cfg, conv.FlowState)

	history, err := o.store.Messages.ListByConversation(ctx, conversationID, 10)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: load history: %w", err)
	}

	userMessageID, err := o.persistUserMessage(ctx, conv, query)
	if err != nil {
		return nil, err
	}

	result, err := o.classify(ctx, cfg, query, conv, history)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: classify: %w", err)
	}

	var needsClarification bool
	result, needsClarification = classify.ApplyLowConfidenceStrategy(result, cfg.MinConfidence, cfg.LowConfidenceStrategy, cfg.DefaultIntent)

	handler, ok := o.handlers[result.Intent]
	if !ok {
		return nil, fmt.Errorf("orchestrator: no handler registered for intent %q", result.Intent)
	}

	in := HandlerInput{
		Conversation: conv,
		Config:       cfg,
		Query:        query,
		History:      history,
		ActiveMode:   activeMode,
		ModeContext:  modeContext,
		Classifier:   result,
	}
	out, err := handler.Handle(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: handler %q: %w", result.Intent, err)
	}

	if out.Answer == "" && result.Intent == model.IntentRAG && cfg.FallbackToDirect {
		if direct, ok := o.handlers[model.IntentDirect]; ok {
			if out, err = direct.Handle(ctx, in); err != nil {
				return nil, fmt.Errorf("orchestrator: fallback handler %q: %w", model.IntentDirect, err)
			}
			metrics.RecordFallback(string(result.Intent), string(model.IntentDirect))
			result.Intent = model.IntentDirect
		}
	}

	if out.FlowState != nil {
		if err := o.store.Conversations.UpdateFlowState(ctx, conv.ID, out.FlowState); err != nil {
			return nil, fmt.Errorf("orchestrator: persist flow state: %w", err)
		}
	}

	duration := time.Since(start)
	if err := o.persistAssistantMessage(ctx, conv, out, result, needsClarification, duration); err != nil {
		return nil, err
	}

	metrics.RecordTurn(string(result.Intent), string(conv.Platform), duration)
	if result.Intent != cfg.DefaultIntent && needsClarification {
		metrics.RecordFallback(string(result.Intent), string(cfg.DefaultIntent))
	}

	return &TurnResult{
		Answer:             out.Answer,
		Intent:             result.Intent,
		Confidence:         result.Confidence,
		NeedsClarification: needsClarification,
		Sources:            out.Sources,
		TotalDuration:      duration,
		UserMessageID:      userMessageID,
	}, nil
}

func (o *Orchestrator) classify(ctx context.Context, cfg *model.OrchestratorConfig, query string, conv *model.Conversation, history []*model.Message) (classify.Result, error) {
	var flowCtx *model.FlowContext
	if conv.FlowState != nil {
		flowCtx = conv.FlowState.Flow
	}

	// Step 2: a flow-bound match is attempted whenever a flow is active,
	// regardless of rules_first — mid-flow step advancement and escape
	// hatches must keep working even when rules_first is off.
	if o.rules != nil && !flowCtx.IsEmpty() {
		if match := o.rules.Match(query, flowCtx); match != nil {
			return classify.Result{
				Intent:     model.IntentRule,
				Confidence: 1.0,
				Layer:      model.LayerFlowRule,
				Reasoning:  "matched rule " + match.Rule.ID,
			}, nil
		}
	}

	// Step 3: the separate, config-gated standalone/entry rule check.
	if cfg.RulesFirst && o.rules != nil {
		if match := o.rules.Match(query, flowCtx); match != nil {
			return classify.Result{
				Intent:     model.IntentRule,
				Confidence: 1.0,
				Layer:      model.LayerRulesFirst,
				Reasoning:  "matched rule " + match.Rule.ID,
			}, nil
		}
	}

	in := classify.PromptInputs{
		Query:            query,
		RuleDescriptions: ruleDescriptions(o.rules),
	}
	if len(history) > 0 {
		in.RecentTurns = recentTurnsText(history)
	}

	result := o.cascade.Classify(ctx, in, len(history) > 0)
	return result, nil
}

func ruleDescriptions(e *ruleengine.Engine) []string {
	var out []string
	for _, r := range e.Rules() {
		if r.IsActive && !r.IsFlowBound() {
			out = append(out, r.Name+": "+r.Description)
		}
	}
	return out
}

func recentTurnsText(history []*model.Message) []string {
	var out []string
	for i := len(history) - 1; i >= 0; i-- {
		out = append(out, string(history[i].Role)+": "+history[i].Content)
	}
	return out
}

func (o *Orchestrator) persistUserMessage(ctx context.Context, conv *model.Conversation, query string) (string, error) {
	msg := &model.Message{
		ConversationID: conv.ID,
		Role:           model.RoleUser,
		Content:        query,
	}
	if err := o.store.Messages.Create(ctx, msg); err != nil {
		return "", fmt.Errorf("orchestrator: persist user message: %w", err)
	}
	if err := o.store.Conversations.Touch(ctx, conv.ID); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (o *Orchestrator) persistAssistantMessage(ctx context.Context, conv *model.Conversation, out HandlerOutput, result classify.Result, needsClarification bool, duration time.Duration) error {
	intent := result.Intent
	layer := result.Layer
	confidence := result.Confidence
	totalMS := duration.Milliseconds()

	msg := &model.Message{
		ConversationID:     conv.ID,
		Role:               model.RoleAssistant,
		Content:            out.Answer,
		Intent:             &intent,
		Confidence:         &confidence,
		ClassifierLayer:    &layer,
		RuleMatched:        out.RuleMatched,
		ToolCalled:         out.ToolCalled,
		NeedsClarification: needsClarification,
		TotalMS:            &totalMS,
		Sources:            out.Sources,
	}
	if err := o.store.Messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("orchestrator: persist assistant message: %w", err)
	}

	if err := o.store.MessageEvents.Create(ctx, &model.MessageEvent{
		MessageID: msg.ID,
		EventType: model.EventClassificationResult,
		Data: map[string]any{
			"intent":     string(intent),
			"confidence": confidence,
			"layer":      string(layer),
			"reasoning":  result.Reasoning,
		},
	}); err != nil {
		slog.Warn("orchestrator: failed to persist classification event", "error", err)
	}

	return o.store.Conversations.Touch(ctx, conv.ID)
}

func defaultConfig() *model.OrchestratorConfig {
	return &model.OrchestratorConfig{
		RulesFirst:                   true,
		FallbackToDirect:             true,
		DefaultIntent:                model.IntentDirect,
		MinConfidence:                0.5,
		EmbeddingConfidenceThreshold: 0.75,
		LowConfidenceStrategy:        model.StrategyFallback,
		WhenRAGUnavailable:           model.RAGUnavailableDirect,
		LLMTimeoutSeconds:            30,
		MaxConversationTurns:         50,
		OrderModeEnabled:             true,
	}
}
