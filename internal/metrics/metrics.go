// Package metrics exposes Prometheus counters and histograms for the
// orchestrator's per-turn routing decisions and the outbound webhook
// dispatcher's delivery outcomes. Grounded on
// plugin/chat_apps/metrics/metrics.go's event taxonomy (received,
// validated, parse error, processed, response sent, response error),
// reimplemented against github.com/prometheus/client_golang instead of a
// hand-rolled mutex-guarded registry, per SPEC_FULL.md's domain stack.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookEvent mirrors the teacher's EventType taxonomy for inbound
// channel webhooks.
type WebhookEvent string

const (
	EventReceived   WebhookEvent = "received"
	EventValidated  WebhookEvent = "validated"
	EventParseError WebhookEvent = "parse_error"
	EventProcessed  WebhookEvent = "processed"
	EventSent       WebhookEvent = "response_sent"
	EventSendError  WebhookEvent = "response_error"
)

var (
	turnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryon_orchestrator_turns_total",
		Help: "Conversation turns handled, partitioned by resolved intent.",
	}, []string{"intent", "platform"})

	turnDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "queryon_orchestrator_turn_duration_seconds",
		Help:    "End-to-end latency of one HandleTurn call.",
		Buckets: prometheus.DefBuckets,
	}, []string{"intent"})

	turnFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryon_orchestrator_fallbacks_total",
		Help: "Turns that fell back from their classified intent to another handler.",
	}, []string{"from_intent", "to_intent"})

	channelWebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryon_channel_webhook_events_total",
		Help: "Inbound channel webhook lifecycle events, by platform and event type.",
	}, []string{"platform", "event"})

	outboundWebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "queryon_outbound_webhook_deliveries_total",
		Help: "Outbound dispatcher delivery attempts, by event type and outcome.",
	}, []string{"event", "outcome"})

	outboundWebhookLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "queryon_outbound_webhook_latency_seconds",
		Help:    "Latency of outbound webhook POSTs.",
		Buckets: prometheus.DefBuckets,
	})
)

// RecordTurn records one completed orchestrator turn.
func RecordTurn(intent, platform string, duration time.Duration) {
	turnsTotal.WithLabelValues(intent, platform).Inc()
	turnDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

// RecordFallback records a turn that fell back from one intent to another.
func RecordFallback(fromIntent, toIntent string) {
	turnFallbacks.WithLabelValues(fromIntent, toIntent).Inc()
}

// RecordChannelEvent records one inbound-webhook lifecycle event for a
// chat platform adapter.
func RecordChannelEvent(platform string, event WebhookEvent) {
	channelWebhookEvents.WithLabelValues(platform, string(event)).Inc()
}

// RecordOutboundDelivery records the outcome of one outbound webhook POST.
func RecordOutboundDelivery(event string, ok bool, duration time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	outboundWebhookDeliveries.WithLabelValues(event, outcome).Inc()
	outboundWebhookLatency.Observe(duration.Seconds())
}
