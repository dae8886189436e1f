package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidinsight-tech/queryon/internal/llmclient"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/store"
)

type fakeCompleter struct {
	replies []string
	calls   int
}

func (f *fakeCompleter) Chat(ctx context.Context, messages []llmclient.Message) (string, *llmclient.CallStats, error) {
	if f.calls >= len(f.replies) {
		return "", nil, nil
	}
	reply := f.replies[f.calls]
	f.calls++
	return reply, nil, nil
}

type fakeAppointments struct {
	byNumber map[string]*model.Appointment
	created  []*model.Appointment
	updated  []*model.Appointment
	nextNum  string
}

func newFakeAppointments() *fakeAppointments {
	return &fakeAppointments{byNumber: map[string]*model.Appointment{}, nextNum: "APT-2026-0001"}
}

func (f *fakeAppointments) Create(ctx context.Context, a *model.Appointment) error {
	a.ID = "appt-" + a.ApptNumber
	f.created = append(f.created, a)
	f.byNumber[a.ApptNumber] = a
	return nil
}

func (f *fakeAppointments) GetByApptNumber(ctx context.Context, apptNumber string) (*model.Appointment, error) {
	return f.byNumber[apptNumber], nil
}

func (f *fakeAppointments) Update(ctx context.Context, a *model.Appointment) error {
	f.updated = append(f.updated, a)
	f.byNumber[a.ApptNumber] = a
	return nil
}

func (f *fakeAppointments) NextApptNumber(ctx context.Context, year int) (string, error) {
	return f.nextNum, nil
}

type fakeOrders struct {
	created []*model.Order
}

func (f *fakeOrders) Create(ctx context.Context, o *model.Order) error {
	o.ID = "order-1"
	f.created = append(f.created, o)
	return nil
}

func (f *fakeOrders) GetByID(ctx context.Context, id string) (*model.Order, error) { return nil, nil }

type fakeResources struct{}

func (fakeResources) GetByID(ctx context.Context, id string) (*model.CalendarResource, error) {
	return nil, nil
}
func (fakeResources) ListByResourceName(ctx context.Context, name string) ([]*model.CalendarResource, error) {
	return nil, nil
}
func (fakeResources) ListAll(ctx context.Context) ([]*model.CalendarResource, error) { return nil, nil }
func (fakeResources) UpdateCredentials(ctx context.Context, id, enc string) error     { return nil }

type fakeBlocks struct {
	created []*model.CalendarBlock
	deleted []string
}

func (f *fakeBlocks) ListForDate(ctx context.Context, resourceID, date string) ([]*model.CalendarBlock, error) {
	return nil, nil
}
func (f *fakeBlocks) Create(ctx context.Context, b *model.CalendarBlock) error {
	f.created = append(f.created, b)
	return nil
}
func (f *fakeBlocks) DeleteByAppointment(ctx context.Context, appointmentID string) error {
	f.deleted = append(f.deleted, appointmentID)
	return nil
}

func newTestStore(appts *fakeAppointments, orders *fakeOrders, blocks *fakeBlocks) *store.Store {
	return &store.Store{
		Appointments:      appts,
		Orders:            orders,
		CalendarResources: fakeResources{},
		CalendarBlocks:    blocks,
	}
}

func testFields() []model.FieldConfig {
	return []model.FieldConfig{
		{Key: "event_type", Label: "Etkinlik Türü", Required: true},
		{Key: "location", Label: "Mekan", Required: true},
	}
}

func TestCharacterHandler_NonFlowTurn_PlainAnswer(t *testing.T) {
	llm := &fakeCompleter{replies: []string{"Merhaba, size nasıl yardımcı olabilirim?"}}
	h := NewCharacterHandler(llm, newTestStore(newFakeAppointments(), &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: &model.Conversation{ID: "c1"},
		Config:       &model.OrchestratorConfig{},
		Query:        "merhaba",
	})

	require.NoError(t, err)
	assert.Equal(t, "Merhaba, size nasıl yardımcı olabilirim?", out.Answer)
	assert.Nil(t, out.FlowState)
}

func TestCharacterHandler_CancelIntent_MarksAppointmentCancelled(t *testing.T) {
	appts := newFakeAppointments()
	appts.byNumber["APT-2026-0042"] = &model.Appointment{ID: "a1", ApptNumber: "APT-2026-0042", Status: model.StatusConfirmed}
	blocks := &fakeBlocks{}
	h := NewCharacterHandler(&fakeCompleter{}, newTestStore(appts, &fakeOrders{}, blocks), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: &model.Conversation{ID: "c1"},
		Config:       &model.OrchestratorConfig{},
		Query:        "APT-2026-0042 numaralı randevumu iptal et",
	})

	require.NoError(t, err)
	assert.Contains(t, out.Answer, "iptal edildi")
	assert.Equal(t, model.StatusCancelled, appts.byNumber["APT-2026-0042"].Status)
	assert.Equal(t, []string{"a1"}, blocks.deleted)
}

func TestCharacterHandler_CancelIntent_UnknownNumber(t *testing.T) {
	h := NewCharacterHandler(&fakeCompleter{}, newTestStore(newFakeAppointments(), &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: &model.Conversation{ID: "c1"},
		Config:       &model.OrchestratorConfig{},
		Query:        "APT-2026-9999 randevumu iptal et",
	})

	require.NoError(t, err)
	assert.Contains(t, out.Answer, "bulamadım")
}

func TestCharacterHandler_RescheduleIntent_StartsFlow(t *testing.T) {
	appts := newFakeAppointments()
	appts.byNumber["APT-2026-0042"] = &model.Appointment{ID: "a1", ApptNumber: "APT-2026-0042", Status: model.StatusConfirmed}
	h := NewCharacterHandler(&fakeCompleter{}, newTestStore(appts, &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: &model.Conversation{ID: "c1"},
		Config:       &model.OrchestratorConfig{},
		Query:        "APT-2026-0042 randevumu güncelle",
	})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	require.NotNil(t, out.FlowState.ActiveMode)
	assert.Equal(t, model.ModeReschedule, *out.FlowState.ActiveMode)
	assert.Equal(t, "APT-2026-0042", out.FlowState.Reschedule.RefNumber)
}

func TestCharacterHandler_ActiveMode_CollectsFieldThenConfirmsAndSaves(t *testing.T) {
	appts := newFakeAppointments()
	mode := model.ModeAppointment
	cfg := &model.OrchestratorConfig{AppointmentFields: testFields()}
	conv := &model.Conversation{
		ID: "c1",
		FlowState: &model.FlowState{
			ActiveMode:  &mode,
			Appointment: &model.ModeState{Collected: map[string]string{"event_type": "Düğün"}},
		},
	}

	llm := &fakeCompleter{replies: []string{"Mekan neresi olacak?", "Stüdyo A"}}
	h := NewCharacterHandler(llm, newTestStore(appts, &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: conv,
		Config:       cfg,
		ActiveMode:   &mode,
		Query:        "Stüdyo A'da olsun",
	})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	require.NotNil(t, out.FlowState.Appointment)
	assert.Equal(t, "Stüdyo A", out.FlowState.Appointment.Collected["location"])
	assert.False(t, out.FlowState.Appointment.Saved)

	// Second turn: fields complete, user confirms.
	conv.FlowState = out.FlowState
	llm2 := &fakeCompleter{replies: []string{"Randevunuzu onaylıyor musunuz?"}}
	h2 := NewCharacterHandler(llm2, newTestStore(appts, &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out2, err := h2.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: conv,
		Config:       cfg,
		ActiveMode:   &mode,
		Query:        "evet onaylıyorum",
	})

	require.NoError(t, err)
	require.NotNil(t, out2.FlowState)
	assert.Nil(t, out2.FlowState.ActiveMode)
	assert.True(t, out2.FlowState.Appointment.Saved)
	assert.Equal(t, "APT-2026-0001", out2.FlowState.Appointment.RefNumber)
	require.Len(t, appts.created, 1)
	assert.Equal(t, "Düğün", appts.created[0].Service)
	assert.Equal(t, "Stüdyo A", appts.created[0].Location)
}

func TestCharacterHandler_OptionalFieldSkip(t *testing.T) {
	fields := []model.FieldConfig{
		{Key: "event_type", Label: "Etkinlik Türü", Required: true},
		{Key: "extra_people", Label: "Ekstra Kişi", Required: false},
	}
	mode := model.ModeAppointment
	cfg := &model.OrchestratorConfig{AppointmentFields: fields}
	conv := &model.Conversation{
		ID: "c1",
		FlowState: &model.FlowState{
			ActiveMode:  &mode,
			Appointment: &model.ModeState{Collected: map[string]string{"event_type": "Doğum Günü"}},
		},
	}
	llm := &fakeCompleter{replies: []string{"Ekstra kişi var mı?"}}
	h := NewCharacterHandler(llm, newTestStore(newFakeAppointments(), &fakeOrders{}, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: conv,
		Config:       cfg,
		ActiveMode:   &mode,
		Query:        "yok",
	})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	assert.Equal(t, model.SkipSentinel, out.FlowState.Appointment.Collected["extra_people"])
}

func TestCharacterHandler_OrderConfirmation_SavesOrder(t *testing.T) {
	orders := &fakeOrders{}
	mode := model.ModeOrder
	cfg := &model.OrchestratorConfig{OrderModeEnabled: true, OrderFields: testFields()}
	conv := &model.Conversation{
		ID: "c1",
		FlowState: &model.FlowState{
			ActiveMode: &mode,
			Order:      &model.ModeState{Collected: map[string]string{"event_type": "Kek", "location": "Ofis"}},
		},
	}
	llm := &fakeCompleter{replies: []string{"Siparişinizi onaylıyor musunuz?"}}
	h := NewCharacterHandler(llm, newTestStore(newFakeAppointments(), orders, &fakeBlocks{}), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: conv,
		Config:       cfg,
		ActiveMode:   &mode,
		Query:        "evet",
	})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	assert.Nil(t, out.FlowState.ActiveMode)
	assert.True(t, out.FlowState.Order.Saved)
	require.Len(t, orders.created, 1)
}

func TestCharacterHandler_RescheduleConfirmation_UpdatesAppointment(t *testing.T) {
	appts := newFakeAppointments()
	appts.byNumber["APT-2026-0042"] = &model.Appointment{
		ID: "a1", ApptNumber: "APT-2026-0042", Status: model.StatusConfirmed,
		EventDate: "2026-03-01", EventTime: "10:00", Artist: "İzel",
	}
	blocks := &fakeBlocks{}
	mode := model.ModeReschedule
	cfg := &model.OrchestratorConfig{}
	conv := &model.Conversation{
		ID: "c1",
		FlowState: &model.FlowState{
			ActiveMode: &mode,
			Reschedule: &model.ModeState{
				RefNumber: "APT-2026-0042",
				Collected: map[string]string{"event_date": "2026-03-20", "event_time": "14:00"},
			},
		},
	}
	llm := &fakeCompleter{replies: []string{"Bu değişikliği onaylıyor musunuz?"}}
	h := NewCharacterHandler(llm, newTestStore(appts, &fakeOrders{}, blocks), nil, 0)

	out, err := h.Handle(context.Background(), orchestrator.HandlerInput{
		Conversation: conv,
		Config:       cfg,
		ActiveMode:   &mode,
		Query:        "evet onaylıyorum",
	})

	require.NoError(t, err)
	require.NotNil(t, out.FlowState)
	assert.Nil(t, out.FlowState.ActiveMode)
	assert.Nil(t, out.FlowState.Reschedule)
	assert.Equal(t, "2026-03-20", appts.byNumber["APT-2026-0042"].EventDate)
	assert.Equal(t, "14:00", appts.byNumber["APT-2026-0042"].EventTime)
	assert.Equal(t, []string{"a1"}, blocks.deleted)
}

func TestMatchApptNumber(t *testing.T) {
	num, ok := matchApptNumber("APT-2026-0007 randevumu iptal et lütfen", cancelKeywords)
	require.True(t, ok)
	assert.Equal(t, "APT-2026-0007", num)

	_, ok = matchApptNumber("APT-2026-0007 hakkında bilgi almak istiyorum", cancelKeywords)
	assert.False(t, ok)

	_, ok = matchApptNumber("randevumu iptal et", cancelKeywords)
	assert.False(t, ok)
}
