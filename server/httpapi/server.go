// Package httpapi exposes the orchestrator over HTTP: a JSON chat endpoint
// for the web front-end, Telegram/WhatsApp webhook routes, an inbound
// appointment-status-update webhook, and an admin surface for reading and
// updating the orchestrator's single config row. Grounded on
// github.com/labstack/echo/v4's router/middleware conventions as used
// throughout the teacher's router/ package, since the teacher pack carries
// no standalone server.go to copy from directly (see DESIGN.md).
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/vidinsight-tech/queryon/internal/channels"
	"github.com/vidinsight-tech/queryon/internal/channels/media"
	"github.com/vidinsight-tech/queryon/internal/channels/telegram"
	"github.com/vidinsight-tech/queryon/internal/channels/whatsapp"
	"github.com/vidinsight-tech/queryon/internal/config"
	"github.com/vidinsight-tech/queryon/internal/metrics"
	"github.com/vidinsight-tech/queryon/internal/model"
	"github.com/vidinsight-tech/queryon/internal/orchestrator"
	"github.com/vidinsight-tech/queryon/internal/store"
	mw "github.com/vidinsight-tech/queryon/server/middleware"
)

// Server wires the HTTP surface around one Orchestrator and Store.
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	store    *store.Store
	orch     *orchestrator.Orchestrator
	telegram *telegram.Channel
	whatsapp *whatsapp.Channel
	media    *media.Processor
}

// New builds a Server and registers every route. tg/wa may be nil when the
// corresponding platform has no token configured.
func New(cfg *config.Config, st *store.Store, orch *orchestrator.Orchestrator, tg *telegram.Channel, wa *whatsapp.Channel) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(mw.RateLimit(cfg.ChatRateLimit))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	}

	s := &Server{echo: e, cfg: cfg, store: st, orch: orch, telegram: tg, whatsapp: wa, media: media.NewProcessor()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttpHandler()))

	s.echo.POST("/chat", s.handleChat)

	s.echo.POST("/webhooks/telegram", s.handleTelegramWebhook)
	s.echo.GET("/webhooks/whatsapp", s.handleWhatsAppVerify)
	s.echo.POST("/webhooks/whatsapp", s.handleWhatsAppWebhook)
	s.echo.POST("/webhooks/appointments", s.handleInboundAppointmentWebhook)

	if s.cfg.AdminEnabled() {
		admin := s.echo.Group("/admin", mw.AdminAuth(s.cfg.AdminAPIKey))
		admin.GET("/config", s.handleGetConfig)
		admin.PUT("/config", s.handleUpdateConfig)
		admin.GET("/rules", s.handleListRules)
	}
}

// Start runs the HTTP server until the context is cancelled or ListenAndServe
// returns.
func (s *Server) Start(ctx context.Context) error {
	addr := s.cfg.Addr
	if addr == "" {
		addr = ":" + strconv.Itoa(s.cfg.Port)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.echo.Start(addr) }()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	ChannelID      string `json:"channel_id"`
	Message        string `json:"message"`
}

type chatResponse struct {
	ConversationID string         `json:"conversation_id"`
	Answer         string         `json:"answer"`
	Intent         model.Intent   `json:"intent"`
	Confidence     float64        `json:"confidence"`
	Sources        []model.Source `json:"sources,omitempty"`
}

func (s *Server) handleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Message == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message is required")
	}

	conv, err := s.getOrCreateConversation(c.Request().Context(), model.PlatformWeb, req.ConversationID, req.ChannelID, "")
	if err != nil {
		slog.Error("httpapi: resolve web conversation failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not resolve conversation")
	}

	result, err := s.orch.HandleTurn(c.Request().Context(), conv.ID, req.Message)
	if err != nil {
		slog.Error("httpapi: orchestrator turn failed", "conversation_id", conv.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "could not process message")
	}

	return c.JSON(http.StatusOK, chatResponse{
		ConversationID: conv.ID,
		Answer:         result.Answer,
		Intent:         result.Intent,
		Confidence:     result.Confidence,
		Sources:        result.Sources,
	})
}

// getOrCreateConversation resolves a conversation by (platform, channelID)
// if one exists, otherwise by conversationID, otherwise creates a fresh one
// — grounded on store.ConversationRepo.GetByChannel being the natural key
// for channel-originated turns while the web front-end may pass an
// existing conversation_id directly.
func (s *Server) getOrCreateConversation(ctx context.Context, platform model.Platform, conversationID, channelID, displayName string) (*model.Conversation, error) {
	if channelID != "" {
		if conv, err := s.store.Conversations.GetByChannel(ctx, platform, channelID); err != nil {
			return nil, err
		} else if conv != nil {
			return conv, nil
		}
	}
	if conversationID != "" {
		if conv, err := s.store.Conversations.GetByID(ctx, conversationID); err != nil {
			return nil, err
		} else if conv != nil {
			return conv, nil
		}
	}

	var chID *string
	if channelID != "" {
		chID = &channelID
	}
	conv := &model.Conversation{
		Platform:  platform,
		ChannelID: chID,
		Name:      displayName,
		Status:    model.ConversationActive,
	}
	if err := s.store.Conversations.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// dispatchChannelTurn runs the orchestrator for an inbound channel message
// in the background and sends the answer back out once it completes,
// satisfying the provider ack-window (the webhook handlers return 200
// without waiting for this goroutine).
func (s *Server) dispatchChannelTurn(platform model.Platform, adapter channels.Adapter, msg channels.IncomingMessage) {
	go func() {
		ctx := context.Background()
		conv, err := s.getOrCreateConversation(ctx, platform, "", msg.ChannelID, msg.DisplayName)
		if err != nil {
			slog.Error("httpapi: resolve channel conversation failed", "platform", platform, "error", err)
			metrics.RecordChannelEvent(string(platform), metrics.EventParseError)
			return
		}

		result, err := s.orch.HandleTurn(ctx, conv.ID, msg.Text)
		if err != nil {
			slog.Error("httpapi: channel orchestrator turn failed", "platform", platform, "conversation_id", conv.ID, "error", err)
			metrics.RecordChannelEvent(string(platform), metrics.EventProcessed)
			return
		}
		metrics.RecordChannelEvent(string(platform), metrics.EventProcessed)

		if msg.MediaFileID != "" {
			s.processInboundMedia(ctx, platform, adapter, msg, result.UserMessageID)
		}

		if err := adapter.Send(msg.ChannelID, result.Answer); err != nil {
			slog.Warn("httpapi: channel reply send failed", "platform", platform, "error", err)
			metrics.RecordChannelEvent(string(platform), metrics.EventSendError)
			return
		}
		metrics.RecordChannelEvent(string(platform), metrics.EventSent)
	}()
}

// processInboundMedia resolves and thumbnails one attachment a channel
// webhook reported, then logs the outcome as a MessageEvent on the inbound
// message. Failures here are logged and swallowed — a bad attachment
// shouldn't drop the conversational turn it arrived with.
func (s *Server) processInboundMedia(ctx context.Context, platform model.Platform, adapter channels.Adapter, msg channels.IncomingMessage, userMessageID string) {
	url, mimeType, err := adapter.ResolveMedia(msg.MediaFileID)
	if err != nil {
		slog.Warn("httpapi: resolve media failed", "platform", platform, "error", err)
		return
	}

	var headers map[string]string
	if platform == model.PlatformWhatsApp {
		headers = map[string]string{"Authorization": "Bearer " + s.cfg.WhatsAppAccessToken}
	}

	result, err := s.media.Process(ctx, url, headers)
	if err != nil {
		slog.Warn("httpapi: process media failed", "platform", platform, "error", err)
		return
	}
	if result.MIMEType == "" && mimeType != "" {
		result.MIMEType = mimeType
	}

	if userMessageID == "" {
		return
	}
	data := result.AsEventData()
	data["media_type"] = msg.MediaType
	if err := s.store.MessageEvents.Create(ctx, &model.MessageEvent{
		MessageID: userMessageID,
		EventType: model.EventMediaProcessed,
		Data:      data,
	}); err != nil {
		slog.Warn("httpapi: persist media event failed", "platform", platform, "error", err)
	}
}

