// Package webhook dispatches signed outbound notifications (new/updated
// appointments and orders) and verifies signed inbound ones (appointment
// status updates from a downstream system). Grounded on the teacher's
// plugin/webhook/webhook.go Post/PostAsync shape: a synchronous Post that
// returns an error, and a PostAsync wrapper that fires it in a background
// goroutine and only logs failures, since outbound delivery must never
// block or fail the turn that triggered it.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vidinsight-tech/queryon/internal/metrics"
)

const defaultTimeout = 10 * time.Second

// EventType names an outbound webhook payload kind.
type EventType string

const (
	EventAppointmentCreated EventType = "appointment.created"
	EventAppointmentUpdated EventType = "appointment.updated"
	EventAppointmentCancelled EventType = "appointment.cancelled"
	EventOrderCreated         EventType = "order.created"
)

// Dispatcher signs and delivers outbound webhooks for one configured
// destination. A Dispatcher with an empty URL or Secret is a silent no-op,
// matching the spec's "missing config -> no delivery attempted" rule.
type Dispatcher struct {
	URL     string
	Secret  string
	client  *http.Client
}

// NewDispatcher builds a Dispatcher bound to one webhook URL/secret pair.
func NewDispatcher(url, secret string) *Dispatcher {
	return &Dispatcher{
		URL:    url,
		Secret: secret,
		client: &http.Client{Timeout: defaultTimeout},
	}
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Post delivers one event payload synchronously, signing the body with
// HMAC-SHA256 over the raw JSON bytes. Returns nil immediately (no-op) if
// the dispatcher has no URL or secret configured.
func (d *Dispatcher) Post(ctx context.Context, event EventType, payload any) error {
	if d.URL == "" || d.Secret == "" {
		return nil
	}

	start := time.Now()
	err := d.doPost(ctx, event, payload)
	metrics.RecordOutboundDelivery(string(event), err == nil, time.Since(start))
	return err
}

func (d *Dispatcher) doPost(ctx context.Context, event EventType, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal webhook payload for event %s", event)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to construct webhook request to %s", d.URL)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Queryon-Event", string(event))
	req.Header.Set("X-Queryon-Signature", "sha256="+sign(d.Secret, body))

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "failed to post webhook to %s", d.URL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read webhook response from %s", d.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("webhook post to %s failed, status %d, body: %s", d.URL, resp.StatusCode, respBody)
	}
	return nil
}

// PostAsync fires Post in a background goroutine with its own timeout,
// independent of the caller's request context, and only logs on failure.
func (d *Dispatcher) PostAsync(event EventType, payload any) {
	if d.URL == "" || d.Secret == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
		defer cancel()
		if err := d.Post(ctx, event, payload); err != nil {
			slog.Warn("webhook: async dispatch failed", "url", d.URL, "event", event, "error", err)
		}
	}()
}

// VerifySignature checks an inbound X-Queryon-Signature header (optionally
// "sha256="-prefixed) against body using constant-time comparison, so an
// inbound appointment-status-update webhook can be authenticated.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}
	header = strings.TrimPrefix(header, "sha256=")
	expected := sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(header))
}
