package ruleengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/model"
)

func strPtr(s string) *string { return &s }

func TestEngine_StandaloneRuleMatch(t *testing.T) {
	rule := &model.Rule{
		ID:               "r1",
		Name:             "hours",
		TriggerPatterns:  []string{"çalışma saati"},
		ResponseTemplate: "Saatlerimiz: {hours}",
		Variables:        map[string]string{"hours": "09:00-17:00"},
		Priority:         10,
		IsActive:         true,
	}
	engine := New([]*model.Rule{rule})

	match := engine.Match("Çalışma saati nedir?", nil)
	require.NotNil(t, match)
	assert.Equal(t, "Saatlerimiz: 09:00-17:00", match.RenderedAnswer)
	assert.Equal(t, "r1", match.Rule.ID)
	assert.Nil(t, match.NextFlowContext)
}

func TestEngine_WildcardRequiresNonEmptyInput(t *testing.T) {
	rule := &model.Rule{ID: "any", TriggerPatterns: []string{"*"}, ResponseTemplate: "ok", Priority: 1, IsActive: true}
	engine := New([]*model.Rule{rule})

	assert.NotNil(t, engine.Match("hello", nil))
	assert.Nil(t, engine.Match("", nil))
}

func TestEngine_RegexTrigger(t *testing.T) {
	rule := &model.Rule{ID: "r1", TriggerPatterns: []string{"r:^merhaba"}, ResponseTemplate: "selam", Priority: 1, IsActive: true}
	engine := New([]*model.Rule{rule})

	assert.NotNil(t, engine.Match("Merhaba nasılsın", nil))
	assert.Nil(t, engine.Match("nasılsın merhaba", nil))
}

func TestEngine_PriorityOrderingAndStableTies(t *testing.T) {
	low := &model.Rule{ID: "low", TriggerPatterns: []string{"a"}, ResponseTemplate: "low", Priority: 1, IsActive: true}
	high := &model.Rule{ID: "high", TriggerPatterns: []string{"a"}, ResponseTemplate: "high", Priority: 10, IsActive: true}
	tie1 := &model.Rule{ID: "tie1", TriggerPatterns: []string{"b"}, ResponseTemplate: "tie1", Priority: 5, IsActive: true}
	tie2 := &model.Rule{ID: "tie2", TriggerPatterns: []string{"b"}, ResponseTemplate: "tie2", Priority: 5, IsActive: true}

	engine := New([]*model.Rule{low, high, tie1, tie2})
	match := engine.Match("a", nil)
	require.NotNil(t, match)
	assert.Equal(t, "high", match.Rule.ID)

	tieMatch := engine.Match("b", nil)
	require.NotNil(t, tieMatch)
	assert.Equal(t, "tie1", tieMatch.Rule.ID)
}

func TestEngine_FlowStepAdvanceByChoice(t *testing.T) {
	entry := &model.Rule{
		ID: "E", TriggerPatterns: []string{"hizmet"}, ResponseTemplate: "Seçiminiz?",
		Priority: 1, IsActive: true,
		FlowID: strPtr("hizmet"), StepKey: strPtr("start"),
		NextSteps: map[string]string{"A": "danismanlik"},
	}
	step := &model.Rule{
		ID: "S", TriggerPatterns: []string{"*"}, ResponseTemplate: "Danışmanlık seçildi",
		Priority: 1, IsActive: true,
		FlowID: strPtr("hizmet"), StepKey: strPtr("danismanlik"), RequiredStep: strPtr("start"),
	}
	engine := New([]*model.Rule{entry, step})

	turn1 := engine.Match("hizmet", nil)
	require.NotNil(t, turn1)
	assert.Equal(t, "E", turn1.Rule.ID)
	require.NotNil(t, turn1.NextFlowContext)
	assert.Equal(t, "start", turn1.NextFlowContext.CurrentStep)

	turn2 := engine.Match("A", turn1.NextFlowContext)
	require.NotNil(t, turn2)
	assert.Equal(t, "S", turn2.Rule.ID)
	assert.Nil(t, turn2.NextFlowContext)
}

func TestEngine_ShortChoiceRequiresWholeWord(t *testing.T) {
	entry := &model.Rule{
		ID: "E", TriggerPatterns: []string{"start"}, ResponseTemplate: "?",
		Priority: 1, IsActive: true,
		FlowID: strPtr("f"), StepKey: strPtr("start"),
		NextSteps: map[string]string{"a": "stepA"},
	}
	stepA := &model.Rule{
		ID: "A", TriggerPatterns: []string{"onay"}, ResponseTemplate: "stepA answer",
		Priority: 1, IsActive: true,
		FlowID: strPtr("f"), StepKey: strPtr("stepA"), RequiredStep: strPtr("start"),
	}
	engine := New([]*model.Rule{entry, stepA})

	turn1 := engine.Match("start", nil)
	require.NotNil(t, turn1)

	// "merhaba" contains "a" as a substring but not as a whole word.
	noMatch := engine.Match("merhaba", turn1.NextFlowContext)
	assert.Nil(t, noMatch)

	match := engine.Match("a", turn1.NextFlowContext)
	require.NotNil(t, match)
	assert.Equal(t, "A", match.Rule.ID)
}

func TestEngine_StandaloneEscapeHatchDuringFlow(t *testing.T) {
	cancelRule := &model.Rule{ID: "cancel", TriggerPatterns: []string{"iptal"}, ResponseTemplate: "İptal edildi", Priority: 100, IsActive: true}
	flowRule := &model.Rule{
		ID: "F", TriggerPatterns: []string{"devam"}, ResponseTemplate: "devam", Priority: 1, IsActive: true,
		FlowID: strPtr("f"), StepKey: strPtr("s1"), RequiredStep: strPtr("s0"),
	}
	engine := New([]*model.Rule{cancelRule, flowRule})

	flowCtx := &model.FlowContext{FlowID: "f", CurrentStep: "s0"}
	match := engine.Match("iptal", flowCtx)
	require.NotNil(t, match)
	assert.Equal(t, "cancel", match.Rule.ID)
}

func TestEngine_TemplateRendering(t *testing.T) {
	rule := &model.Rule{
		ResponseTemplate: "Hello {name}, unknown {missing}",
		Variables:        map[string]string{"name": "Ada"},
	}
	rendered := Render(rule)
	assert.Equal(t, "Hello Ada, unknown {missing}", rendered)
	// Idempotent once all placeholders present.
	rule2 := &model.Rule{ResponseTemplate: rendered}
	assert.Equal(t, rendered, Render(rule2))
}

func TestEngine_Keywords(t *testing.T) {
	rules := []*model.Rule{
		{TriggerPatterns: []string{"Merhaba", "r:^selam"}, IsActive: true},
		{TriggerPatterns: []string{"*"}, IsActive: true},
		{TriggerPatterns: []string{"inactive"}, IsActive: false},
	}
	engine := New(rules)
	assert.ElementsMatch(t, []string{"merhaba"}, engine.Keywords())
}
