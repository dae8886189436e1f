package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vidinsight-tech/queryon/internal/apperr"
	"github.com/vidinsight-tech/queryon/internal/metrics"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/webhook"
)

// httpError renders an *apperr.Error (or any error) through echo with the
// taxonomy's mapped status, so a handler's error kind — not a hardcoded
// status at the call site — decides the HTTP response.
func httpError(err error, message string) error {
	if message == "" {
		message = err.Error()
	}
	return echo.NewHTTPError(apperr.StatusOf(err), message)
}

func promhttpHandler() http.Handler { return promhttp.Handler() }

// handleTelegramWebhook must ack within Telegram's 60s window regardless of
// whether the update carries an actionable message — the orchestrator call
// and reply are dispatched in the background.
func (s *Server) handleTelegramWebhook(c echo.Context) error {
	metrics.RecordChannelEvent("telegram", metrics.EventReceived)
	if s.telegram == nil {
		return c.NoContent(http.StatusOK)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.RecordChannelEvent("telegram", metrics.EventParseError)
		return c.NoContent(http.StatusOK)
	}

	msg, ok, err := s.telegram.ParseWebhook(body)
	if err != nil {
		slog.Warn("httpapi: telegram webhook parse failed", "error", err)
		metrics.RecordChannelEvent("telegram", metrics.EventParseError)
		return c.NoContent(http.StatusOK)
	}
	if !ok {
		return c.NoContent(http.StatusOK)
	}

	metrics.RecordChannelEvent("telegram", metrics.EventValidated)
	s.dispatchChannelTurn(model.PlatformTelegram, s.telegram, msg)
	return c.NoContent(http.StatusOK)
}

// handleWhatsAppVerify answers Meta's GET subscription challenge.
func (s *Server) handleWhatsAppVerify(c echo.Context) error {
	if s.whatsapp == nil {
		return c.NoContent(http.StatusForbidden)
	}
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if echoed, ok := s.whatsapp.VerifyHandshake(mode, token, challenge); ok {
		return c.String(http.StatusOK, echoed)
	}
	return c.NoContent(http.StatusForbidden)
}

// handleWhatsAppWebhook must ack within WhatsApp's 20s window; as with
// Telegram, the orchestrator call and reply happen in the background.
func (s *Server) handleWhatsAppWebhook(c echo.Context) error {
	metrics.RecordChannelEvent("whatsapp", metrics.EventReceived)
	if s.whatsapp == nil {
		return c.NoContent(http.StatusOK)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.RecordChannelEvent("whatsapp", metrics.EventParseError)
		return c.NoContent(http.StatusOK)
	}

	if sig := c.Request().Header.Get("X-Hub-Signature-256"); sig != "" && !s.whatsapp.ValidateSignature(body, sig) {
		slog.Warn("httpapi: whatsapp webhook signature mismatch")
		metrics.RecordChannelEvent("whatsapp", metrics.EventParseError)
		return c.NoContent(http.StatusOK)
	}

	msg, ok, err := s.whatsapp.ParseWebhook(body)
	if err != nil {
		slog.Warn("httpapi: whatsapp webhook parse failed", "error", err)
		metrics.RecordChannelEvent("whatsapp", metrics.EventParseError)
		return c.NoContent(http.StatusOK)
	}
	if !ok {
		return c.NoContent(http.StatusOK)
	}

	metrics.RecordChannelEvent("whatsapp", metrics.EventValidated)
	s.dispatchChannelTurn(model.PlatformWhatsApp, s.whatsapp, msg)
	return c.NoContent(http.StatusOK)
}

type appointmentStatusUpdate struct {
	ApptNumber string            `json:"appt_number"`
	Status     model.RecordStatus `json:"status"`
}

// handleInboundAppointmentWebhook accepts a signed status update from a
// downstream system (e.g. a calendar sync job) for an appointment this
// deployment created, verified with the same HMAC scheme
// internal/webhook.Dispatcher signs outbound events with.
func (s *Server) handleInboundAppointmentWebhook(c echo.Context) error {
	if s.cfg.AppointmentWebhookSecret == "" {
		return httpError(apperr.New(apperr.KindNotFound, "appointment webhooks disabled"), "")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return httpError(apperr.Wrap(apperr.KindValidation, "could not read body", err), "")
	}
	sig := c.Request().Header.Get("X-Queryon-Signature")
	if !webhook.VerifySignature(s.cfg.AppointmentWebhookSecret, body, sig) {
		return httpError(apperr.New(apperr.KindUnauthorized, "invalid signature"), "")
	}

	var update appointmentStatusUpdate
	if err := json.Unmarshal(body, &update); err != nil || update.ApptNumber == "" {
		return httpError(apperr.New(apperr.KindValidation, "invalid payload"), "")
	}

	appt, err := s.store.Appointments.GetByApptNumber(c.Request().Context(), update.ApptNumber)
	if err != nil {
		slog.Error("httpapi: lookup appointment for inbound webhook failed", "error", err)
		return httpError(apperr.Wrap(apperr.KindExternalService, "lookup appointment", err), "")
	}
	if appt == nil {
		return httpError(apperr.New(apperr.KindNotFound, "appointment not found"), "")
	}

	appt.Status = update.Status
	if err := s.store.Appointments.Update(c.Request().Context(), appt); err != nil {
		slog.Error("httpapi: apply inbound appointment status update failed", "error", err)
		return httpError(apperr.Wrap(apperr.KindExternalService, "update appointment", err), "")
	}

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleGetConfig(c echo.Context) error {
	cfg, err := s.store.Config.Get(c.Request().Context())
	if err != nil {
		return httpError(apperr.Wrap(apperr.KindExternalService, "load config", err), "")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(c echo.Context) error {
	var cfg model.OrchestratorConfig
	if err := c.Bind(&cfg); err != nil {
		return httpError(apperr.Wrap(apperr.KindValidation, "invalid config body", err), "")
	}
	if err := s.store.Config.Save(c.Request().Context(), &cfg); err != nil {
		return httpError(apperr.Wrap(apperr.KindExternalService, "save config", err), "")
	}
	return c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleListRules(c echo.Context) error {
	rules, err := s.store.Rules.ListActive(c.Request().Context())
	if err != nil {
		return httpError(apperr.Wrap(apperr.KindExternalService, "list rules", err), "")
	}
	return c.JSON(http.StatusOK, rules)
}
