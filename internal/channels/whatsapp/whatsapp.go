// Package whatsapp adapts the WhatsApp Cloud API to
// internal/channels.Adapter. Grounded on
// plugin/chat_apps/channels/telegram/telegram.go's adapter shape (this
// deployment talks to Meta's Graph API directly over HTTP, since the
// teacher's own WhatsApp integration is a Node.js Baileys bridge with no Go
// equivalent in the retrieved pack — see DESIGN.md's Open Questions
// decisions), and on internal/webhook's HMAC-SHA256 signing convention for
// the inbound X-Hub-Signature-256 check.
package whatsapp

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/vidinsight-tech/queryon/internal/channels"
)

const (
	graphAPIBase   = "https://graph.facebook.com/v19.0"
	defaultTimeout = 10 * time.Second
)

// Config configures one WhatsApp Cloud API sender/webhook pair.
type Config struct {
	AccessToken   string
	AppSecret     string
	VerifyToken   string
	PhoneNumberID string
}

// Channel is a WhatsApp Cloud API adapter bound to a single phone number.
type Channel struct {
	cfg    Config
	client *http.Client
}

// New constructs a Channel from Config.
func New(cfg Config) *Channel {
	return &Channel{cfg: cfg, client: &http.Client{Timeout: defaultTimeout}}
}

func (c *Channel) Name() string { return "whatsapp" }

// VerifyHandshake answers the GET subscription-verification request Meta
// sends when a webhook URL is registered: if mode is "subscribe" and token
// matches the configured verify token, the challenge string must be echoed
// back verbatim with a 200; otherwise the caller should respond 403.
func (c *Channel) VerifyHandshake(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || token == "" || c.cfg.VerifyToken == "" || token != c.cfg.VerifyToken {
		return "", false
	}
	return challenge, true
}

// ValidateSignature checks the X-Hub-Signature-256 header (sha256=... over
// the raw body) against the configured app secret.
func (c *Channel) ValidateSignature(body []byte, header string) bool {
	if c.cfg.AppSecret == "" || header == "" {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")
	mac := hmac.New(sha256.New, []byte(c.cfg.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}

// cloudAPIWebhook mirrors the subset of Meta's webhook envelope this
// adapter reads: entry[0].changes[0].value.{messages,contacts}.
type cloudAPIWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					From string `json:"from"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Image struct {
						ID      string `json:"id"`
						MIME    string `json:"mime_type"`
						Caption string `json:"caption"`
					} `json:"image"`
					Type string `json:"type"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWebhook unmarshals one Cloud API notification. ok is false for
// notifications with no inbound message this adapter handles (delivery/read
// status callbacks, message types other than text/image) — those are acked
// without reaching the orchestrator.
func (c *Channel) ParseWebhook(body []byte) (channels.IncomingMessage, bool, error) {
	var payload cloudAPIWebhook
	if err := json.Unmarshal(body, &payload); err != nil {
		return channels.IncomingMessage{}, false, &channels.Error{Code: "invalid_payload", Message: "malformed whatsapp webhook", Err: err}
	}
	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return channels.IncomingMessage{}, false, nil
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return channels.IncomingMessage{}, false, nil
	}
	msg := value.Messages[0]
	if msg.Type != "" && msg.Type != "text" && msg.Type != "image" {
		return channels.IncomingMessage{}, false, nil
	}

	name := msg.From
	if len(value.Contacts) > 0 && value.Contacts[0].Profile.Name != "" {
		name = value.Contacts[0].Profile.Name
	}

	text := msg.Text.Body
	var fileID, mediaType string
	if msg.Type == "image" {
		fileID = msg.Image.ID
		mediaType = "image"
		text = msg.Image.Caption
		if text == "" {
			text = "[image]"
		}
	}

	return channels.IncomingMessage{
		ChannelID:   msg.From,
		Text:        text,
		DisplayName: name,
		Phone:       msg.From,
		MediaFileID: fileID,
		MediaType:   mediaType,
	}, true, nil
}

type mediaLookupResponse struct {
	URL      string `json:"url"`
	MIMEType string `json:"mime_type"`
}

// ResolveMedia looks up a WhatsApp media id via the Cloud API's GET
// /{media-id} endpoint, which returns a short-lived download URL and the
// attachment's MIME type. The returned URL itself requires the same bearer
// token to fetch, which callers must attach.
func (c *Channel) ResolveMedia(fileID string) (string, string, error) {
	url := fmt.Sprintf("%s/%s", graphAPIBase, fileID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", "", &channels.Error{Code: "request_build_failed", Message: url, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", "", &channels.Error{Code: "media_lookup_failed", Message: "whatsapp graph api request", Err: err, Retryable: true}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", "", &channels.Error{Code: "media_lookup_failed", Message: fmt.Sprintf("whatsapp graph api status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}

	var out mediaLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", &channels.Error{Code: "media_lookup_failed", Message: "decode media lookup response", Err: err}
	}
	return out.URL, out.MIMEType, nil
}

type sendMessageRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send posts a plain-text reply via the Cloud API /messages endpoint.
func (c *Channel) Send(channelID, text string) error {
	req := sendMessageRequest{MessagingProduct: "whatsapp", To: channelID, Type: "text"}
	req.Text.Body = text

	body, err := json.Marshal(req)
	if err != nil {
		return &channels.Error{Code: "marshal_failed", Message: "whatsapp send payload", Err: err}
	}

	url := fmt.Sprintf("%s/%s/messages", graphAPIBase, c.cfg.PhoneNumberID)
	httpReq, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &channels.Error{Code: "request_build_failed", Message: url, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &channels.Error{Code: "send_failed", Message: "whatsapp graph api request", Err: err, Retryable: true}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &channels.Error{Code: "send_failed", Message: fmt.Sprintf("whatsapp graph api status %d", resp.StatusCode), Retryable: resp.StatusCode >= 500}
	}
	return nil
}

var _ channels.Adapter = (*Channel)(nil)
