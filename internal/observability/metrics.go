package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "activity_monitor"

// Metrics holds the application collectors
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	scanRunsTotal       *prometheus.CounterVec
	scanRows            *prometheus.CounterVec
	queueTransitions    *prometheus.CounterVec
	dispatchOutcomes    *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	realtimeDropped     prometheus.Counter
}

// NewMetrics creates and registers all collectors on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		scanRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_runs_total",
			Help:      "Activity scans by outcome",
		}, []string{"outcome"}),
		scanRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_rows_total",
			Help:      "Spreadsheet rows processed by result",
		}, []string{"result"}),
		queueTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_transitions_total",
			Help:      "Queue entry status changes by target status",
		}, []string{"status"}),
		dispatchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_messages_total",
			Help:      "Dispatched messages by outcome",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Email provider webhook events by type and result",
		}, []string{"type", "result"}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_dropped_total",
			Help:      "Realtime events dropped because the broadcast buffer was full",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.scanRunsTotal,
		m.scanRows,
		m.queueTransitions,
		m.dispatchOutcomes,
		m.webhookEvents,
		m.realtimeDropped,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ScanCompleted records a scan run and its row tallies
func (m *Metrics) ScanCompleted(outcome string, valid, invalid, flagged, queued, skipped int) {
	if m == nil {
		return
	}
	m.scanRunsTotal.WithLabelValues(outcome).Inc()
	m.scanRows.WithLabelValues("valid").Add(float64(valid))
	m.scanRows.WithLabelValues("invalid").Add(float64(invalid))
	m.scanRows.WithLabelValues("flagged").Add(float64(flagged))
	m.scanRows.WithLabelValues("queued").Add(float64(queued))
	m.scanRows.WithLabelValues("skipped").Add(float64(skipped))
}

// QueueTransition records entries moving to status
func (m *Metrics) QueueTransition(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queueTransitions.WithLabelValues(status).Add(float64(n))
}

// DispatchOutcome records one dispatched message (sent or failed)
func (m *Metrics) DispatchOutcome(outcome string) {
	if m == nil {
		return
	}
	m.dispatchOutcomes.WithLabelValues(outcome).Inc()
}

// webhookEventTypes are the provider event types kept as distinct label values
var webhookEventTypes = map[string]bool{
	"email.sent":             true,
	"email.delivered":        true,
	"email.delivery_delayed": true,
	"email.opened":           true,
	"email.clicked":          true,
	"email.bounced":          true,
	"email.complained":       true,
}

// WebhookEvent records a received provider event. Unknown types are counted as "other".
func (m *Metrics) WebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	if !webhookEventTypes[eventType] {
		eventType = "other"
	}
	m.webhookEvents.WithLabelValues(eventType, result).Inc()
}

// RealtimeDropped records an event dropped by the realtime hub
func (m *Metrics) RealtimeDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}
