// Package channels defines the shared contract every chat-platform adapter
// implements: parse an inbound webhook body into a platform-neutral
// message, and send a reply back out. Grounded on
// plugin/chat_apps/channels/base.go's ChatChannel interface, narrowed to
// this deployment's single-tenant shape — one bot token per platform from
// internal/config, not a per-conversation credential lookup through a
// ChannelRouter registry.
package channels

import "fmt"

// IncomingMessage is one inbound user message, normalized across
// platforms.
type IncomingMessage struct {
	ChannelID   string // platform-native chat/user id, e.g. Telegram chat_id or WhatsApp wa_id
	Text        string
	DisplayName string
	Phone       string // populated for platforms that carry it (WhatsApp)
	MediaFileID string // platform-native file/media id, set when the message carries an attachment
	MediaType   string // platform-specific attachment kind, e.g. "photo"/"image" — routing/logging only
}

// Adapter parses one platform's webhook payloads and sends replies back to
// it. Implemented by internal/channels/telegram and
// internal/channels/whatsapp.
type Adapter interface {
	// Name identifies the platform, matching a model.Platform value.
	Name() string

	// ParseWebhook decodes a raw webhook body. ok is false for payloads
	// that carry no actionable user message (e.g. a Telegram edited-message
	// notice, a WhatsApp delivery-status callback) — callers must still
	// acknowledge these with HTTP 200, just without calling the
	// orchestrator.
	ParseWebhook(body []byte) (msg IncomingMessage, ok bool, err error)

	// Send delivers a text reply to the given platform-native channel id.
	Send(channelID, text string) error

	// ResolveMedia turns a MediaFileID from a just-parsed IncomingMessage
	// into a directly downloadable URL and that attachment's MIME type, if
	// the platform reports one up front (WhatsApp does; Telegram leaves it
	// to the downloaded Content-Type header, so mimeType is "" there).
	ResolveMedia(fileID string) (url string, mimeType string, err error)
}

// Error wraps a channel-layer failure with a retry hint, grounded on
// plugin/chat_apps/channels/base.go's ChannelError.
type Error struct {
	Code      string
	Message   string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channels: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("channels: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether the caller should retry delivery.
func (e *Error) IsRetryable() bool { return e.Retryable }
