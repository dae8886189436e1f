package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/ruleengine"
)

func TestRuleHandler_FlowEntryRulePersistsFlowState(t *testing.T) {
	flowID := "booking"
	step := "ask_date"
	entryRule := &model.Rule{
		ID: "entry", Name: "start-booking", IsActive: true,
		TriggerPatterns:  []string{"randevu almak istiyorum"},
		ResponseTemplate: "Hangi tarih için uygun olur?",
		FlowID:           &flowID,
		StepKey:          &step,
		NextSteps:        map[string]string{"*": "ask_date"},
	}
	engine := ruleengine.New([]*model.Rule{entryRule})
	h := NewRuleHandler(engine, nil, 10, 0)

	conv := &model.Conversation{ID: "c1"}
	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{Conversation: conv, Query: "randevu almak istiyorum"})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	require.NotNil(t, out.FlowState.Flow)
	assert.Equal(t, flowID, out.FlowState.Flow.FlowID)
}

func TestRuleHandler_EscapeHatchClearsActiveFlow(t *testing.T) {
	flowID := "booking"
	step := "ask_date"
	flowRule := &model.Rule{
		ID: "flow-step", Name: "ask-date", IsActive: true,
		TriggerPatterns: []string{"yarın"}, ResponseTemplate: "Tamam.",
		FlowID: &flowID, RequiredStep: &step,
	}
	cancelRule := &model.Rule{
		ID: "cancel", Name: "cancel", IsActive: true,
		TriggerPatterns: []string{"iptal"}, ResponseTemplate: "İşleminiz iptal edildi.",
	}
	engine := ruleengine.New([]*model.Rule{flowRule, cancelRule})
	h := NewRuleHandler(engine, nil, 10, 0)

	conv := &model.Conversation{ID: "c1", FlowState: &model.FlowState{
		Flow: &model.FlowContext{FlowID: flowID, CurrentStep: step},
	}}
	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{Conversation: conv, Query: "iptal"})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	assert.Nil(t, out.FlowState.Flow)
}

func TestRuleHandler_NoMatchReturnsEmptyOutput(t *testing.T) {
	engine := ruleengine.New(nil)
	h := NewRuleHandler(engine, nil, 10, 0)

	conv := &model.Conversation{ID: "c1"}
	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{Conversation: conv, Query: "merhaba"})

	require.NoError(t, err)
	assert.Empty(t, out.Answer)
	assert.Nil(t, out.FlowState)
}

func TestRuleHandler_StandaloneMatchOutsideFlowLeavesFlowStateNil(t *testing.T) {
	rule := &model.Rule{ID: "hours", Name: "hours", IsActive: true, TriggerPatterns: []string{"saat"}, ResponseTemplate: "9-18 arası açığız."}
	engine := ruleengine.New([]*model.Rule{rule})
	h := NewRuleHandler(engine, nil, 10, 0)

	conv := &model.Conversation{ID: "c1"}
	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{Conversation: conv, Query: "çalışma saatleriniz nedir"})

	require.NoError(t, err)
	assert.Equal(t, "9-18 arası açığız.", out.Answer)
	assert.Nil(t, out.FlowState)
}
