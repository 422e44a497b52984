// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TurnsTotal counts dialogue turns by outcome.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Dialogue turns handled, by outcome",
		},
		[]string{"transport", "outcome"},
	)

	// TurnDuration tracks end-to-end turn latency including parsing.
	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "Dialogue turn duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"transport"},
	)

	// BookingsCreated counts successful inserts.
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_created_total",
			Help: "Total bookings created",
		},
	)

	// BookingConflicts counts inserts rejected for overlapping an existing booking.
	BookingConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_conflicts_total",
			Help: "Booking attempts rejected by a conflict",
		},
	)

	// ParseFailures counts messages a parser could not interpret.
	ParseFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "parse_failures_total",
			Help: "Messages the request parser could not interpret",
		},
		[]string{"parser"},
	)

	// StoreErrors counts booking store failures surfaced to callers.
	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "booking_store_errors_total",
			Help: "Booking store failures",
		},
	)

	// LLMRequestDuration tracks LLM completion latency.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion request duration",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"provider", "direction"},
	)

	// EventsPublished counts events written to the JetStream stream.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_events_published_total",
			Help: "Events published to JetStream",
		},
		[]string{"type", "status"},
	)

	// ConversationsStarted counts server-held conversations by how they
	// began: "created" through the API or "implicit" on a first message.
	// Stored conversations can expire in Redis, so no live gauge is kept.
	ConversationsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_started_total",
			Help: "Server-held conversations started",
		},
		[]string{"origin"},
	)

	// ConversationsDeleted counts explicit conversation deletes.
	ConversationsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_deleted_total",
			Help: "Server-held conversations deleted",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTurn records the outcome and latency of one dialogue turn.
func RecordTurn(transport, outcome string, duration float64) {
	TurnsTotal.WithLabelValues(transport, outcome).Inc()
	TurnDuration.WithLabelValues(transport).Observe(duration)
}

// RecordLLMRequest records metrics for an LLM completion.
func RecordLLMRequest(provider, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(provider, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(provider, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(provider, "out").Add(float64(tokensOut))
}

// RecordEvent records a JetStream publish attempt.
func RecordEvent(eventType, status string) {
	EventsPublished.WithLabelValues(eventType, status).Inc()
}
