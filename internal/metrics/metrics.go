// Package metrics exposes a prometheus/client_golang registry for HTTP
// request counters/latency and per-operation-type pipeline timing,
// built on the
// ecosystem's standard collector types, as the rest of the example pack
// does for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexbridge_http_requests_total",
		Help: "Total HTTP requests handled, by method, path, and status.",
	}, []string{"method", "path", "status"})

	httpRequestDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexbridge_http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds, by method and path.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path"})

	pipelineOperationDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "indexbridge_pipeline_operation_duration_ms",
		Help:    "Duration of one indexing pipeline step, by operation type and outcome.",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"operation_type", "success"})

	webhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexbridge_webhook_events_total",
		Help: "Total webhook events received, by type and outcome.",
	}, []string{"event_type", "outcome"})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexbridge_search_requests_total",
		Help: "Total search requests, by mode.",
	}, []string{"mode"})

	retentionDeletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "indexbridge_retention_deleted_total",
		Help: "Total rows removed by the retention scheduler, by kind.",
	}, []string{"kind"})
)

// RecordRequest records one completed HTTP request.
func RecordRequest(method, path string, status int, durationMs float64) {
	httpRequestsTotal.WithLabelValues(method, path, statusLabel(status)).Inc()
	httpRequestDurationMs.WithLabelValues(method, path).Observe(durationMs)
}

// RecordPipelineOperation records the duration of one pipeline step.
func RecordPipelineOperation(operationType string, success bool, durationMs float64) {
	pipelineOperationDurationMs.WithLabelValues(operationType, boolLabel(success)).Observe(durationMs)
}

// RecordWebhookEvent records one routed (or rejected) webhook event.
func RecordWebhookEvent(eventType, outcome string) {
	webhookEventsTotal.WithLabelValues(eventType, outcome).Inc()
}

// RecordSearch records one search request by mode.
func RecordSearch(mode string) {
	searchRequestsTotal.WithLabelValues(mode).Inc()
}

// RecordRetentionDeleted records rows removed by a retention sweep.
func RecordRetentionDeleted(kind string, count int) {
	if count <= 0 {
		return
	}
	retentionDeletedTotal.WithLabelValues(kind).Add(float64(count))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
