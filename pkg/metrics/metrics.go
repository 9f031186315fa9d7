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

	// AssistantConnectionState reports the assistant socket state
	// (0=disconnected, 1=connecting, 2=connected).
	AssistantConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_connection_state",
			Help: "Assistant socket connection state",
		},
	)

	// AssistantReconnectsTotal counts scheduled reconnect attempts.
	AssistantReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_reconnects_total",
			Help: "Total assistant socket reconnect attempts",
		},
	)

	// FragmentsTotal counts streamed fragments received from the assistant.
	FragmentsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_fragments_total",
			Help: "Total streamed fragments received",
		},
	)

	// FragmentBytesTotal counts streamed bytes received from the assistant.
	FragmentBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assistant_fragment_bytes_total",
			Help: "Total streamed bytes received",
		},
	)

	// TurnsTotal counts conversation turns by author.
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_turns_total",
			Help: "Total conversation turns",
		},
		[]string{"author"},
	)

	// TurnClosuresTotal counts assistant turn closures by outcome
	// (parsed, timeout, ceiling, reset).
	TurnClosuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turn_closures_total",
			Help: "Assistant turn closures by outcome",
		},
		[]string{"outcome"},
	)

	// TurnDuration tracks time from request send to turn closure.
	TurnDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "turn_duration_seconds",
			Help:    "Assistant turn duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 45},
		},
	)

	// DuplicateResultsTotal counts completed results dropped by the dedup guard.
	DuplicateResultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "duplicate_results_total",
			Help: "Completed results dropped as duplicates",
		},
	)

	// DispatchFailuresTotal counts payload consumers that panicked.
	DispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payload_dispatch_failures_total",
			Help: "Payload consumer dispatch failures",
		},
		[]string{"section"},
	)

	// PayloadSectionsTotal counts dispatched payload sections.
	PayloadSectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payload_sections_total",
			Help: "Payload sections dispatched to consumers",
		},
		[]string{"section"},
	)

	// SSEConnectionsActive tracks active browser SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// JournalPublishesTotal counts journal publishes by status.
	JournalPublishesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "journal_publishes_total",
			Help: "Audit journal publishes",
		},
		[]string{"subject", "status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
