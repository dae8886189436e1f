// Package telegram adapts the Telegram Bot API to internal/channels.Adapter.
// Grounded on plugin/chat_apps/channels/telegram/telegram.go's ParseMessage
// update-unwrapping and SendMessage shape, narrowed to text and photo
// messages — SPEC_FULL.md's Telegram front-end only reads chat.id/text/from,
// and other non-text updates are silently acked per its webhook section.
package telegram

import (
	"encoding/json"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vidinsight-tech/queryon/internal/channels"
)

// Channel is a Telegram bot bound to a single bot token.
type Channel struct {
	bot *tgbotapi.BotAPI
}

// New constructs a Channel. token must be non-empty; the bot API client is
// built eagerly so a bad token fails at startup, not on first webhook.
func New(token string) (*Channel, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: init bot api: %w", err)
	}
	return &Channel{bot: bot}, nil
}

func (c *Channel) Name() string { return "telegram" }

// ParseWebhook unmarshals one Telegram update. A photo message is accepted
// with the largest size's file id as its MediaFileID. ok is false for
// updates with neither text nor a photo (edits, callback queries, other
// media, etc.) — those are acked without reaching the orchestrator.
func (c *Channel) ParseWebhook(body []byte) (channels.IncomingMessage, bool, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return channels.IncomingMessage{}, false, &channels.Error{Code: "invalid_payload", Message: "malformed telegram update", Err: err}
	}

	msg := update.Message
	if msg == nil {
		return channels.IncomingMessage{}, false, nil
	}

	var fileID, mediaType string
	if len(msg.Photo) > 0 {
		fileID = msg.Photo[len(msg.Photo)-1].FileID // last entry is Telegram's highest-resolution size
		mediaType = "photo"
	}
	if msg.Text == "" && fileID == "" {
		return channels.IncomingMessage{}, false, nil
	}

	display := msg.From.FirstName
	if msg.From.UserName != "" {
		display = msg.From.UserName
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	return channels.IncomingMessage{
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		Text:        text,
		DisplayName: display,
		MediaFileID: fileID,
		MediaType:   mediaType,
	}, true, nil
}

// ResolveMedia turns a Telegram file_id into a directly downloadable URL via
// the Bot API's getFile call. Telegram doesn't report a MIME type up front,
// so mimeType is always "" — the downloaded Content-Type header is
// authoritative.
func (c *Channel) ResolveMedia(fileID string) (string, string, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", "", fmt.Errorf("telegram: resolve file url: %w", err)
	}
	return url, "", nil
}

// Send posts a plain-text reply to the given chat id.
func (c *Channel) Send(channelID, text string) error {
	chatID, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return &channels.Error{Code: "invalid_channel_id", Message: channelID, Err: err}
	}
	if _, err := c.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return &channels.Error{Code: "send_failed", Message: "telegram sendMessage", Err: err, Retryable: true}
	}
	return nil
}

var _ channels.Adapter = (*Channel)(nil)
