package modeengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/model"
)

func TestBuildModeContext_AsksFirstMissingRequiredField(t *testing.T) {
	fields := sampleFields()
	ctx := BuildModeContext(model.ModeAppointment, fields, map[string]string{}, false, false)
	assert.Contains(t, ctx, "SONRAKİ SORU")
	assert.Contains(t, ctx, "Etkinlik Türü")
}

func TestBuildModeContext_SummaryWhenAllHandled(t *testing.T) {
	fields := sampleFields()
	collected := map[string]string{
		"event_type": "Düğün", "location": "Stüdyo", "artist": "İzel", "extra_people": skipSentinel,
	}
	ctx := BuildModeContext(model.ModeAppointment, fields, collected, false, false)
	assert.Contains(t, ctx, "Bu bilgiler doğru mu? Onaylıyor musunuz?")
	assert.Contains(t, ctx, "TOPLAM")
}

func TestBuildModeContext_SavedState(t *testing.T) {
	ctx := BuildModeContext(model.ModeAppointment, sampleFields(), map[string]string{}, true, true)
	assert.Contains(t, ctx, "Kaydedildi")
}

func TestComputeModeContext_NoneWhenNothingActive(t *testing.T) {
	cfg := &model.OrchestratorConfig{AppointmentFields: sampleFields()}
	mode, ctx := ComputeModeContext(cfg, &model.FlowState{})
	assert.Nil(t, mode)
	assert.Empty(t, ctx)
}

func TestComputeModeContext_AppointmentActiveWhenDataStartedCollecting(t *testing.T) {
	cfg := &model.OrchestratorConfig{AppointmentFields: sampleFields()}
	state := &model.FlowState{
		Appointment: &model.ModeState{Collected: map[string]string{"event_type": "Düğün"}},
	}
	mode, ctx := ComputeModeContext(cfg, state)
	require.NotNil(t, mode)
	assert.Equal(t, model.ModeAppointment, *mode)
	assert.Contains(t, ctx, "MODE CONTEXT")
}

func TestComputeModeContext_SavedAppointmentInjectsReferenceReminder(t *testing.T) {
	cfg := &model.OrchestratorConfig{AppointmentFields: sampleFields()}
	state := &model.FlowState{
		Appointment: &model.ModeState{Saved: true, RefNumber: "APT-2026-0042"},
	}
	mode, ctx := ComputeModeContext(cfg, state)
	assert.Nil(t, mode)
	assert.Contains(t, ctx, "APT-2026-0042")
	assert.Contains(t, ctx, "RANDEVU KAYITLI")
}

func TestComputeModeContext_RescheduleTakesPriorityOverSavedAppointment(t *testing.T) {
	cfg := &model.OrchestratorConfig{AppointmentFields: sampleFields()}
	state := &model.FlowState{
		Appointment: &model.ModeState{Saved: true, RefNumber: "APT-2026-0042"},
		Reschedule:  &model.ModeState{RefNumber: "APT-2026-0042", Collected: map[string]string{"event_date": "20 Mart 2026"}},
	}
	mode, ctx := ComputeModeContext(cfg, state)
	require.NotNil(t, mode)
	assert.Equal(t, model.ModeReschedule, *mode)
	assert.Contains(t, ctx, "RANDEVU DEĞİŞİKLİĞİ AKTİF")
	assert.Contains(t, ctx, "Uygun olduğunuz saati")
}

func TestComputeModeContext_OrderDisabledNeverActivates(t *testing.T) {
	cfg := &model.OrchestratorConfig{OrderModeEnabled: false, OrderFields: sampleFields()}
	state := &model.FlowState{
		Order: &model.ModeState{Collected: map[string]string{"event_type": "Düğün"}},
	}
	mode, ctx := ComputeModeContext(cfg, state)
	assert.Nil(t, mode)
	assert.Empty(t, ctx)
}

func TestBuildRescheduleContext_AsksForMissingTime(t *testing.T) {
	ctx := buildRescheduleContext("APT-2026-0001", map[string]string{"event_date": "20 Mart 2026"}, false, false)
	assert.Contains(t, ctx, "Uygun olduğunuz saati")
}

func TestBuildRescheduleContext_AsksForConfirmationWhenComplete(t *testing.T) {
	ctx := buildRescheduleContext("APT-2026-0001", map[string]string{"event_date": "20 Mart 2026", "event_time": "14:00"}, false, false)
	assert.Contains(t, ctx, "Bu değişikliği onaylıyor musunuz?")
}
