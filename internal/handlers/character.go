package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/vidinsight-tech/queryon/internal/availability"
	"github.com/vidinsight-tech/queryon/internal/llmclient"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/modeengine"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/store"
	"github.com/vidinsight-tech/queryon/internal/webhook"
)

const defaultCharacterPrompt = "Sen küçük bir işletmenin sanal asistanısın. Müşterilere nazik ve kısa cevaplar ver."

// apptNumberRE matches appointment reference numbers like APT-2026-0001,
// the format internal/store/*.NextApptNumber generates.
var apptNumberRE = regexp.MustCompile(`(?i)\bAPT-\d{4}-\d{4}\b`)

var cancelKeywords = []string{"iptal", "iptal et", "cancel", "randevumu iptal", "sil", "randevu iptali"}

var rescheduleKeywords = []string{
	"tarihimi değiştir", "saatimi değiştir", "randevuyu değiştir", "randevumu değiştir",
	"tarih değişikliği", "saat değişikliği", "güncelle", "güncelleme", "ertele", "reschedule",
}

// appointmentStartKeywords/orderStartKeywords trigger entry into field
// collection on the first turn that mentions booking or ordering — grounded
// on character_handler.py's _APPT_KEYWORDS/_ORDER_KEYWORDS passive-extraction
// gating, narrowed to this deployment's generic (non-salon-specific) wording
// since appointment/order fields themselves are configured per deployment.
var appointmentStartKeywords = []string{
	"randevu", "rezervasyon", "appointment", "booking", "book a", "reserve",
}

var orderStartKeywords = []string{
	"sipariş", "order", "satın al", "purchase",
}

var confirmWords = []string{"evet", "tamam", "onayla", "olur", "onaylıyorum"}

var skipWords = []string{"geç", "yok", "istemiyorum", "pas", "geçelim", "hayır", "atla"}

// rescheduleFields is the fixed field set collected while an appointment's
// date/time is being changed — grounded on character_handler.py's
// _RESCHEDULE_FIELDS, with event_date/event_time promoted to required since
// a reschedule has nothing to apply without them.
var rescheduleFields = []model.FieldConfig{
	{Key: "event_date", Label: "Yeni Tarih", Required: true, Validation: validationPtr(model.ValidationDate)},
	{Key: "event_time", Label: "Yeni Saat", Required: true, Validation: validationPtr(model.ValidationTime)},
	{Key: "artist", Label: "Sanatçı", Required: false},
}

func validationPtr(v model.FieldValidation) *model.FieldValidation { return &v }

// CharacterHandler sends the conversation to the LLM with a persona system
// prompt. For an active appointment/order/reschedule flow it injects the
// mode-engine's progressive-collection context, then runs a small focused
// extraction call to pull the just-answered field's value out of the user's
// message — grounded on character_handler.py's single "ask one thing,
// extract one thing" flow, without its monolithic multi-field JSON-tag
// protocol (internal/modeengine already asks one question at a time, so
// there is never more than one field to extract per turn).
type CharacterHandler struct {
	llm            Completer
	store          *store.Store
	availability   *availability.Service
	timeoutSeconds int
}

func NewCharacterHandler(llm Completer, st *store.Store, avail *availability.Service, timeoutSeconds int) *CharacterHandler {
	return &CharacterHandler{llm: llm, store: st, availability: avail, timeoutSeconds: timeoutSeconds}
}

func (h *CharacterHandler) Handle(ctx context.Context, in orchestrator.HandlerInput) (orchestrator.HandlerOutput, error) {
	flow := in.Conversation.FlowState
	if flow == nil {
		flow = &model.FlowState{}
	}

	if apptNumber, ok := matchApptNumber(in.Query, cancelKeywords); ok {
		return h.handleCancel(ctx, in, apptNumber)
	}

	if in.ActiveMode == nil || *in.ActiveMode != model.ModeReschedule {
		if apptNumber, ok := matchApptNumber(in.Query, rescheduleKeywords); ok {
			return h.startReschedule(ctx, in, apptNumber)
		}
	}

	if in.ActiveMode == nil {
		if out, started := h.maybeStartMode(in); started {
			return out, nil
		}
	}

	systemPrompt := in.Config.CharacterSystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultCharacterPrompt
	}
	if in.ModeContext != "" {
		systemPrompt = systemPrompt + "\n\n" + in.ModeContext
	}

	answer, err := h.chat(ctx, systemPrompt, in.History, in.Query)
	if err != nil {
		slog.Warn("handlers: character llm call failed", "error", err)
		return orchestrator.HandlerOutput{Answer: "Üzgünüm, şu anda yanıt veremiyorum. Lütfen tekrar deneyin."}, nil
	}

	if in.ActiveMode == nil {
		return orchestrator.HandlerOutput{Answer: strings.TrimSpace(answer)}, nil
	}

	return h.handleActiveMode(ctx, in, flow, *in.ActiveMode, answer)
}

func (h *CharacterHandler) chat(ctx context.Context, systemPrompt string, history []*model.Message, query string) (string, error) {
	messages := buildPlainMessages(systemPrompt, history, query)
	callCtx := ctx
	if h.timeoutSeconds > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(h.timeoutSeconds)*time.Second)
		defer cancel()
	}
	answer, _, err := h.llm.Chat(callCtx, messages)
	return answer, err
}

func matchApptNumber(query string, keywords []string) (string, bool) {
	q := strings.ToLower(query)
	hasKeyword := false
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return "", false
	}
	m := apptNumberRE.FindString(query)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

func (h *CharacterHandler) handleCancel(ctx context.Context, in orchestrator.HandlerInput, apptNumber string) (orchestrator.HandlerOutput, error) {
	appt, err := h.store.Appointments.GetByApptNumber(ctx, apptNumber)
	if err != nil {
		return orchestrator.HandlerOutput{}, fmt.Errorf("handlers: lookup appointment for cancel: %w", err)
	}
	if appt == nil || appt.Status == model.StatusCancelled {
		return orchestrator.HandlerOutput{Answer: apptNumber + " numaralı bir randevu bulamadım."}, nil
	}

	appt.Status = model.StatusCancelled
	if err := h.store.Appointments.Update(ctx, appt); err != nil {
		return orchestrator.HandlerOutput{}, fmt.Errorf("handlers: cancel appointment: %w", err)
	}
	if err := h.store.CalendarBlocks.DeleteByAppointment(ctx, appt.ID); err != nil {
		slog.Warn("handlers: failed to free calendar block on cancel", "appointment_id", appt.ID, "error", err)
	}

	webhook.NewDispatcher(in.Config.AppointmentWebhookURL, in.Config.AppointmentWebhookSecret).
		PostAsync(webhook.EventAppointmentCancelled, appt)

	return orchestrator.HandlerOutput{Answer: apptNumber + " numaralı randevunuz iptal edildi."}, nil
}

func (h *CharacterHandler) startReschedule(ctx context.Context, in orchestrator.HandlerInput, apptNumber string) (orchestrator.HandlerOutput, error) {
	appt, err := h.store.Appointments.GetByApptNumber(ctx, apptNumber)
	if err != nil {
		return orchestrator.HandlerOutput{}, fmt.Errorf("handlers: lookup appointment for reschedule: %w", err)
	}
	if appt == nil || appt.Status == model.StatusCancelled {
		return orchestrator.HandlerOutput{Answer: apptNumber + " numaralı bir randevu bulamadım."}, nil
	}

	mode := model.ModeReschedule
	flow := cloneFlowState(in.Conversation.FlowState)
	flow.ActiveMode = &mode
	flow.Reschedule = &model.ModeState{Collected: map[string]string{}, RefNumber: apptNumber}

	return orchestrator.HandlerOutput{
		Answer:    apptNumber + " için randevu değişikliği başlatıldı. Yeni tarih için hangi günü tercih edersiniz?",
		FlowState: flow,
	}, nil
}

// maybeStartMode begins appointment or order field collection the first
// time a turn mentions booking or ordering, asking for the first field
// instead of running a full LLM turn — grounded on startReschedule's
// fixed-answer shape for mode-entry turns.
func (h *CharacterHandler) maybeStartMode(in orchestrator.HandlerInput) (orchestrator.HandlerOutput, bool) {
	q := strings.ToLower(in.Query)

	if len(in.Config.AppointmentFields) > 0 && containsAny(q, appointmentStartKeywords) {
		return h.startMode(in, model.ModeAppointment, in.Config.AppointmentFields), true
	}
	if in.Config.OrderModeEnabled && len(in.Config.OrderFields) > 0 && containsAny(q, orderStartKeywords) {
		return h.startMode(in, model.ModeOrder, in.Config.OrderFields), true
	}
	return orchestrator.HandlerOutput{}, false
}

func (h *CharacterHandler) startMode(in orchestrator.HandlerInput, mode model.ActiveMode, fields []model.FieldConfig) orchestrator.HandlerOutput {
	flow := cloneFlowState(in.Conversation.FlowState)
	state := &model.ModeState{Collected: map[string]string{}}
	assignMode(flow, mode, state, true)

	target := modeengine.GetNextField(fields, state.Collected)
	if target == nil {
		target = modeengine.GetNextOptionalField(fields, state.Collected)
	}

	answer := "Tabii, yardımcı olayım."
	if target != nil {
		answer += " Öncelikle " + target.Label + " öğrenebilir miyim?"
	}

	return orchestrator.HandlerOutput{Answer: answer, FlowState: flow}
}

func (h *CharacterHandler) handleActiveMode(ctx context.Context, in orchestrator.HandlerInput, flow *model.FlowState, mode model.ActiveMode, answer string) (orchestrator.HandlerOutput, error) {
	fields, state := h.resolveMode(in.Config, flow, mode)
	collected := cloneStringMap(state.Collected)

	confirming := modeengine.IsComplete(fields, collected) && containsAny(strings.ToLower(in.Query), confirmWords)

	if !confirming {
		target := modeengine.GetNextField(fields, collected)
		if target == nil {
			target = modeengine.GetNextOptionalField(fields, collected)
		}
		if target != nil {
			if value, ok := h.extractField(ctx, in.Query, answer, *target); ok {
				collected[target.Key] = value
			}
		}
	}

	newFlow := cloneFlowState(flow)
	newState := &model.ModeState{Collected: collected, RefNumber: state.RefNumber}

	if !confirming {
		assignMode(newFlow, mode, newState, true)
		return orchestrator.HandlerOutput{Answer: strings.TrimSpace(answer), FlowState: newFlow}, nil
	}

	newState.Confirmed = true

	switch mode {
	case model.ModeAppointment:
		apptNumber, saveErr := h.saveAppointment(ctx, in, collected)
		if saveErr != nil {
			slog.Warn("handlers: save appointment failed", "error", saveErr)
			assignMode(newFlow, mode, newState, true)
			return orchestrator.HandlerOutput{Answer: "Kaydederken bir sorun oluştu, lütfen tarih/saati tekrar belirtir misiniz?", FlowState: newFlow}, nil
		}
		newState.Saved = true
		newState.RefNumber = apptNumber
		assignMode(newFlow, mode, newState, false)
		return orchestrator.HandlerOutput{Answer: "Randevunuz oluşturuldu. Randevu numaranız: " + apptNumber, FlowState: newFlow}, nil

	case model.ModeOrder:
		if err := h.saveOrder(ctx, in, collected); err != nil {
			slog.Warn("handlers: save order failed", "error", err)
			assignMode(newFlow, mode, newState, true)
			return orchestrator.HandlerOutput{Answer: "Siparişi kaydederken bir sorun oluştu, lütfen tekrar deneyin.", FlowState: newFlow}, nil
		}
		newState.Saved = true
		assignMode(newFlow, mode, newState, false)
		return orchestrator.HandlerOutput{Answer: "Siparişiniz alındı, teşekkür ederiz.", FlowState: newFlow}, nil

	default: // model.ModeReschedule
		resultAnswer, saveErr := h.applyReschedule(ctx, in, newState)
		if saveErr != nil {
			slog.Warn("handlers: apply reschedule failed", "error", saveErr)
			newState.Confirmed = false
			assignMode(newFlow, mode, newState, true)
			return orchestrator.HandlerOutput{Answer: "Değişikliği uygularken bir sorun oluştu, lütfen tekrar deneyin.", FlowState: newFlow}, nil
		}
		newFlow.ActiveMode = nil
		newFlow.Reschedule = nil
		return orchestrator.HandlerOutput{Answer: resultAnswer, FlowState: newFlow}, nil
	}
}

// resolveMode returns the field config and current ModeState for one active
// mode, given the orchestrator config and the conversation's flow snapshot.
func (h *CharacterHandler) resolveMode(cfg *model.OrchestratorConfig, flow *model.FlowState, mode model.ActiveMode) ([]model.FieldConfig, *model.ModeState) {
	switch mode {
	case model.ModeOrder:
		state := flow.Order
		if state == nil {
			state = &model.ModeState{}
		}
		return cfg.OrderFields, state
	case model.ModeReschedule:
		state := flow.Reschedule
		if state == nil {
			state = &model.ModeState{}
		}
		return rescheduleFields, state
	default: // model.ModeAppointment
		state := flow.Appointment
		if state == nil {
			state = &model.ModeState{}
		}
		return cfg.AppointmentFields, state
	}
}

func assignMode(flow *model.FlowState, mode model.ActiveMode, state *model.ModeState, stillActive bool) {
	switch mode {
	case model.ModeOrder:
		flow.Order = state
	case model.ModeReschedule:
		flow.Reschedule = state
	default:
		flow.Appointment = state
	}
	if stillActive {
		flow.ActiveMode = &mode
	} else {
		flow.ActiveMode = nil
	}
}

// extractField asks the LLM to pull a single field's value out of the
// user's last message, scoped to exactly the field currently being
// collected — grounded on character_handler.py's _extract_data secondary
// call, simplified to one field since modeengine asks one question at a
// time.
func (h *CharacterHandler) extractField(ctx context.Context, query, assistantAnswer string, field model.FieldConfig) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if !field.Required {
		for _, sw := range skipWords {
			if lower == sw || strings.Contains(lower, sw) {
				return model.SkipSentinel, true
			}
		}
	}

	prompt := fmt.Sprintf(
		"Assistant just asked for: %s (%s).\nUser's reply: %q\n"+
			"Reply with ONLY the extracted value, nothing else. "+
			"If the reply does not answer this question, reply with exactly NONE.",
		field.Label, field.Key, query,
	)
	if len(field.Options) > 0 {
		prompt += "\nValid options: " + strings.Join(field.Options, ", ") + ". Match the user's reply to the closest option."
	}

	callCtx := ctx
	if h.timeoutSeconds > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, time.Duration(h.timeoutSeconds)*time.Second)
		defer cancel()
	}

	raw, _, err := h.llm.Chat(callCtx, []llmclient.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return "", false
	}
	value := strings.TrimSpace(raw)
	if value == "" || strings.EqualFold(value, "none") {
		return "", false
	}
	return matchOption(value, field.Options), true
}

// matchOption snaps an extracted value to its configured option
// case-insensitively, falling back to the raw value when there are no
// options or nothing matches.
func matchOption(value string, options []string) string {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), value) {
			return o
		}
	}
	return value
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFlowState(flow *model.FlowState) *model.FlowState {
	if flow == nil {
		return &model.FlowState{}
	}
	out := *flow
	return &out
}

func (h *CharacterHandler) saveAppointment(ctx context.Context, in orchestrator.HandlerInput, collected map[string]string) (string, error) {
	artist := collected["artist"]
	eventDate := collected["event_date"]
	eventTime := collected["event_time"]
	service := collected["event_type"]

	if h.availability != nil && artist != "" && eventDate != "" && eventTime != "" {
		conflict, err := h.availability.CheckConflict(ctx, artist, eventDate, eventTime, service, nil)
		if err != nil {
			return "", fmt.Errorf("check conflict: %w", err)
		}
		if conflict {
			return "", fmt.Errorf("requested slot is no longer available")
		}
	}

	year := time.Now().Year()
	if t, err := time.Parse("2006-01-02", eventDate); err == nil {
		year = t.Year()
	}
	apptNumber, err := h.store.Appointments.NextApptNumber(ctx, year)
	if err != nil {
		return "", fmt.Errorf("allocate appointment number: %w", err)
	}

	appt := &model.Appointment{
		ConversationID: &in.Conversation.ID,
		ApptNumber:     apptNumber,
		Status:         model.StatusConfirmed,
		ContactName:    collected["contact_name"],
		ContactPhone:   collected["contact_phone"],
		ContactEmail:   collected["contact_email"],
		Service:        service,
		Location:       collected["location"],
		Artist:         artist,
		EventDate:      eventDate,
		EventTime:      eventTime,
		Notes:          collected["notes"],
		ExtraFields:    collected,
	}
	if err := h.store.Appointments.Create(ctx, appt); err != nil {
		return "", fmt.Errorf("create appointment: %w", err)
	}

	h.bookCalendarBlock(ctx, artist, eventDate, eventTime, service, appt.ID)

	webhook.NewDispatcher(in.Config.AppointmentWebhookURL, in.Config.AppointmentWebhookSecret).
		PostAsync(webhook.EventAppointmentCreated, appt)

	return apptNumber, nil
}

func (h *CharacterHandler) bookCalendarBlock(ctx context.Context, artist, eventDate, eventTime, service, appointmentID string) {
	if h.availability == nil || artist == "" || eventDate == "" || eventTime == "" {
		return
	}
	endTime, ok, err := h.availability.BlockEnd(ctx, artist, eventTime, service)
	if err != nil || !ok {
		slog.Warn("handlers: could not resolve booking block end time", "artist", artist, "error", err)
		return
	}
	resources, err := h.store.CalendarResources.ListByResourceName(ctx, artist)
	if err != nil || len(resources) == 0 {
		return
	}
	if err := h.store.CalendarBlocks.Create(ctx, &model.CalendarBlock{
		CalendarResourceID: resources[0].ID,
		Date:               eventDate,
		StartTime:          eventTime,
		EndTime:            endTime,
		BlockType:          model.BlockBooked,
		AppointmentID:      &appointmentID,
	}); err != nil {
		slog.Warn("handlers: failed to book calendar block", "error", err)
	}
}

func (h *CharacterHandler) saveOrder(ctx context.Context, in orchestrator.HandlerInput, collected map[string]string) error {
	order := &model.Order{
		ConversationID: &in.Conversation.ID,
		Status:         model.StatusConfirmed,
		ContactName:    collected["contact_name"],
		ContactPhone:   collected["contact_phone"],
		ContactEmail:   collected["contact_email"],
		Summary:        orderSummary(in.Config.OrderFields, collected),
		ExtraFields:    collected,
	}
	if err := h.store.Orders.Create(ctx, order); err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	webhook.NewDispatcher(in.Config.AppointmentWebhookURL, in.Config.AppointmentWebhookSecret).
		PostAsync(webhook.EventOrderCreated, order)
	return nil
}

func orderSummary(fields []model.FieldConfig, collected map[string]string) string {
	var parts []string
	for _, f := range fields {
		val := collected[f.Key]
		if val == "" || val == model.SkipSentinel {
			continue
		}
		label := f.Label
		if label == "" {
			label = f.Key
		}
		parts = append(parts, label+": "+val)
	}
	return strings.Join(parts, ", ")
}

func (h *CharacterHandler) applyReschedule(ctx context.Context, in orchestrator.HandlerInput, state *model.ModeState) (string, error) {
	appt, err := h.store.Appointments.GetByApptNumber(ctx, state.RefNumber)
	if err != nil {
		return "", fmt.Errorf("lookup appointment: %w", err)
	}
	if appt == nil {
		return "", fmt.Errorf("appointment %s not found", state.RefNumber)
	}

	newDate := state.Collected["event_date"]
	newTime := state.Collected["event_time"]
	newArtist := state.Collected["artist"]
	if newArtist == "" || newArtist == model.SkipSentinel {
		newArtist = appt.Artist
	}

	if h.availability != nil {
		conflict, err := h.availability.CheckConflict(ctx, newArtist, newDate, newTime, appt.Service, &appt.ID)
		if err != nil {
			return "", fmt.Errorf("check conflict: %w", err)
		}
		if conflict {
			return "", fmt.Errorf("requested slot is no longer available")
		}
	}

	if err := h.store.CalendarBlocks.DeleteByAppointment(ctx, appt.ID); err != nil {
		slog.Warn("handlers: failed to free old calendar block", "appointment_id", appt.ID, "error", err)
	}

	appt.EventDate = newDate
	appt.EventTime = newTime
	appt.Artist = newArtist
	if err := h.store.Appointments.Update(ctx, appt); err != nil {
		return "", fmt.Errorf("update appointment: %w", err)
	}

	h.bookCalendarBlock(ctx, newArtist, newDate, newTime, appt.Service, appt.ID)

	webhook.NewDispatcher(in.Config.AppointmentWebhookURL, in.Config.AppointmentWebhookSecret).
		PostAsync(webhook.EventAppointmentUpdated, appt)

	return appt.ApptNumber + " numaralı randevunuz " + newDate + " " + newTime + " olarak güncellendi.", nil
}
