package orchestrator

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/classify"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/ruleengine"
	"github.com/vidinsight-tech/queryon/internal/store"
)

type fakeCompleter struct {
	reply string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.reply, nil
}

type fakeConversations struct {
	conv   *model.Conversation
	flow   *model.FlowState
	touched int
}

func (f *fakeConversations) Create(ctx context.Context, c *model.Conversation) error { return nil }

func (f *fakeConversations) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	if f.conv == nil || f.conv.ID != id {
		return nil, nil
	}
	return f.conv, nil
}

func (f *fakeConversations) GetByChannel(ctx context.Context, platform model.Platform, channelID string) (*model.Conversation, error) {
	return nil, nil
}

func (f *fakeConversations) UpdateFlowState(ctx context.Context, id string, flow *model.FlowState) error {
	f.flow = flow
	return nil
}

func (f *fakeConversations) Touch(ctx context.Context, id string) error {
	f.touched++
	return nil
}

func (f *fakeConversations) ListActive(ctx context.Context, limit int) ([]*model.Conversation, error) {
	return nil, nil
}

type fakeMessages struct {
	created []*model.Message
}

func (f *fakeMessages) Create(ctx context.Context, m *model.Message) error {
	m.ID = "msg-" + strconv.Itoa(len(f.created))
	f.created = append(f.created, m)
	return nil
}

func (f *fakeMessages) ListByConversation(ctx context.Context, conversationID string, limit int) ([]*model.Message, error) {
	return nil, nil
}

func (f *fakeMessages) CountByConversation(ctx context.Context, conversationID string) (int, error) {
	return len(f.created), nil
}

type fakeMessageEvents struct {
	created []*model.MessageEvent
}

func (f *fakeMessageEvents) Create(ctx context.Context, e *model.MessageEvent) error {
	f.created = append(f.created, e)
	return nil
}

func (f *fakeMessageEvents) ListByMessage(ctx context.Context, messageID string) ([]*model.MessageEvent, error) {
	return nil, nil
}

type fakeConfig struct {
	cfg *model.OrchestratorConfig
}

func (f *fakeConfig) Get(ctx context.Context) (*model.OrchestratorConfig, error) { return f.cfg, nil }
func (f *fakeConfig) Save(ctx context.Context, cfg *model.OrchestratorConfig) error {
	f.cfg = cfg
	return nil
}

type fakeHandler struct {
	out HandlerOutput
	err error
}

func (f *fakeHandler) Handle(ctx context.Context, in HandlerInput) (HandlerOutput, error) {
	return f.out, f.err
}

func newTestOrchestrator(t *testing.T, cfg *model.OrchestratorConfig, handlerMap map[model.Intent]Handler) (*Orchestrator, *fakeConversations, *fakeMessages) {
	t.Helper()
	conv := &model.Conversation{ID: "c1", Platform: model.PlatformWeb}
	conversations := &fakeConversations{conv: conv}
	messages := &fakeMessages{}

	st := &store.Store{
		Conversations: conversations,
		Messages:      messages,
		MessageEvents: &fakeMessageEvents{},
		Config:        &fakeConfig{cfg: cfg},
	}

	engine := ruleengine.New(nil)
	cascade := &classify.Cascade{
		LLM: classify.NewLLMClassifier(&fakeCompleter{reply: `<thinking>ok</thinking>{"intent": "direct", "confidence": 0.9, "reasoning": "test"}`}, classify.NewCache(8, 0), 0, model.IntentDirect),
	}

	return New(st, engine, cascade, handlerMap), conversations, messages
}

func TestHandleTurn_DispatchesToResolvedIntentHandler(t *testing.T) {
	cfg := &model.OrchestratorConfig{
		DefaultIntent:         model.IntentDirect,
		MinConfidence:         0.5,
		LowConfidenceStrategy: model.StrategyFallback,
	}
	handler := &fakeHandler{out: HandlerOutput{Answer: "merhaba, nasıl yardımcı olabilirim?"}}
	orch, _, messages := newTestOrchestrator(t, cfg, map[model.Intent]Handler{
		model.IntentDirect: handler,
	})

	result, err := orch.HandleTurn(context.Background(), "c1", "merhaba")

	require.NoError(t, err)
	assert.Equal(t, "merhaba, nasıl yardımcı olabilirim?", result.Answer)
	assert.Equal(t, model.IntentDirect, result.Intent)
	assert.False(t, result.NeedsClarification)
	require.Len(t, messages.created, 2)
	assert.Equal(t, model.RoleUser, messages.created[0].Role)
	assert.Equal(t, model.RoleAssistant, messages.created[1].Role)
	assert.Equal(t, messages.created[0].ID, result.UserMessageID)
}

func TestHandleTurn_UnknownConversationErrors(t *testing.T) {
	cfg := &model.OrchestratorConfig{DefaultIntent: model.IntentDirect, MinConfidence: 0.5}
	orch, _, _ := newTestOrchestrator(t, cfg, map[model.Intent]Handler{
		model.IntentDirect: &fakeHandler{},
	})

	_, err := orch.HandleTurn(context.Background(), "missing", "merhaba")
	require.Error(t, err)
}

func TestHandleTurn_PersistsHandlerFlowState(t *testing.T) {
	cfg := &model.OrchestratorConfig{DefaultIntent: model.IntentDirect, MinConfidence: 0.5}
	mode := model.ModeAppointment
	flow := &model.FlowState{ActiveMode: &mode, Appointment: &model.ModeState{Collected: map[string]string{"event_type": "Düğün"}}}
	handler := &fakeHandler{out: HandlerOutput{Answer: "devam edelim", FlowState: flow}}
	orch, conversations, _ := newTestOrchestrator(t, cfg, map[model.Intent]Handler{
		model.IntentDirect: handler,
	})

	_, err := orch.HandleTurn(context.Background(), "c1", "randevu almak istiyorum")

	require.NoError(t, err)
	require.NotNil(t, conversations.flow)
	assert.Equal(t, flow, conversations.flow)
}

func TestClassify_FlowRuleMatchesRegardlessOfRulesFirst(t *testing.T) {
	flowID := "booking"
	step := "ask_date"
	flowRule := &model.Rule{
		ID: "r1", Name: "ask-date-reply", IsActive: true,
		TriggerPatterns: []string{"yarın"}, ResponseTemplate: "Tamam, yarın için devam edelim.",
		FlowID: &flowID, RequiredStep: &step,
	}
	engine := ruleengine.New([]*model.Rule{flowRule})
	cascade := &classify.Cascade{
		LLM: classify.NewLLMClassifier(&fakeCompleter{reply: `<thinking>ok</thinking>{"intent": "direct", "confidence": 0.9, "reasoning": "test"}`}, classify.NewCache(8, 0), 0, model.IntentDirect),
	}

	conv := &model.Conversation{ID: "c1", Platform: model.PlatformWeb, FlowState: &model.FlowState{
		Flow: &model.FlowContext{FlowID: flowID, CurrentStep: step},
	}}
	conversations := &fakeConversations{conv: conv}
	st := &store.Store{
		Conversations: conversations,
		Messages:      &fakeMessages{},
		MessageEvents: &fakeMessageEvents{},
		Config:        &fakeConfig{},
	}

	orch := New(st, engine, cascade, map[model.Intent]Handler{
		model.IntentRule: &fakeHandler{out: HandlerOutput{Answer: "ok"}},
	})

	// rules_first is false, yet the active flow's rule must still fire —
	// step 2 is unconditional on rules_first.
	cfg := &model.OrchestratorConfig{DefaultIntent: model.IntentDirect, MinConfidence: 0.5, RulesFirst: false}
	result, err := orch.classify(context.Background(), cfg, "yarın olur", conv, nil)

	require.NoError(t, err)
	assert.Equal(t, model.IntentRule, result.Intent)
	assert.Equal(t, model.LayerFlowRule, result.Layer)
}

func TestClassify_RulesFirstStandaloneReportsRulesFirstLayer(t *testing.T) {
	rule := &model.Rule{ID: "r2", Name: "hours", IsActive: true, TriggerPatterns: []string{"saat"}, ResponseTemplate: "9-18 arası açığız."}
	engine := ruleengine.New([]*model.Rule{rule})
	cascade := &classify.Cascade{
		LLM: classify.NewLLMClassifier(&fakeCompleter{reply: `<thinking>ok</thinking>{"intent": "direct", "confidence": 0.9, "reasoning": "test"}`}, classify.NewCache(8, 0), 0, model.IntentDirect),
	}
	conv := &model.Conversation{ID: "c1", Platform: model.PlatformWeb}

	orch := &Orchestrator{store: &store.Store{}, rules: engine, cascade: cascade}
	cfg := &model.OrchestratorConfig{DefaultIntent: model.IntentDirect, MinConfidence: 0.5, RulesFirst: true}

	result, err := orch.classify(context.Background(), cfg, "çalışma saatleriniz nedir", conv, nil)

	require.NoError(t, err)
	assert.Equal(t, model.IntentRule, result.Intent)
	assert.Equal(t, model.LayerRulesFirst, result.Layer)
}

func TestHandleTurn_MissingHandlerErrors(t *testing.T) {
	cfg := &model.OrchestratorConfig{DefaultIntent: model.IntentRule, MinConfidence: 0.0}
	orch, _, _ := newTestOrchestrator(t, cfg, map[model.Intent]Handler{})

	_, err := orch.HandleTurn(context.Background(), "c1", "merhaba")
	require.Error(t, err)
}
