// Package metrics exposes Prometheus counters and histograms for turns,
// reservations, text generation and the HTTP gateway.
//
// All methods are safe on a nil *Metrics so components can run without
// instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "concierge"

// Metrics owns a private registry and every concierge collector.
type Metrics struct {
	reg *prometheus.Registry

	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	reservationsTotal   *prometheus.CounterVec
	flowsAbandoned      prometheus.Counter
	llmRequestsTotal    *prometheus.CounterVec
	llmDuration         *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	wsConnections       prometheus.Gauge
	notificationsTotal  *prometheus.CounterVec
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total number of dialogue turns handled",
		}, []string{"intent", "status"}),
		turnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Turn handling duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"intent"}),
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation operations by outcome",
		}, []string{"outcome"}),
		flowsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_abandoned_total",
			Help:      "Active flows reset after going idle",
		}),
		llmRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Text-generation requests by provider and status",
		}, []string{"provider", "status"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Text-generation request duration in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Open WebSocket turn streams",
		}),
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound guest notifications by notifier and status",
		}, []string{"notifier", "status"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.turnsTotal,
		m.turnDuration,
		m.reservationsTotal,
		m.flowsAbandoned,
		m.llmRequestsTotal,
		m.llmDuration,
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.wsConnections,
		m.notificationsTotal,
	)
	return m
}

// Registry returns the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordTurn counts a finished turn.
func (m *Metrics) RecordTurn(intent, status string, d time.Duration) {
	if m == nil {
		return
	}
	if intent == "" {
		intent = "unknown"
	}
	m.turnsTotal.WithLabelValues(intent, status).Inc()
	m.turnDuration.WithLabelValues(intent).Observe(d.Seconds())
}

// Reservation outcome labels.
const (
	OutcomeCreated     = "created"
	OutcomeRescheduled = "rescheduled"
	OutcomeNotFound    = "not_found"
	OutcomeFailed      = "failed"
)

// RecordReservation counts a reservation write by outcome.
func (m *Metrics) RecordReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

// RecordAbandoned counts flows reset by the idle sweeper.
func (m *Metrics) RecordAbandoned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.flowsAbandoned.Add(float64(n))
}

// RecordLLM counts a text-generation call.
func (m *Metrics) RecordLLM(provider string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.llmRequestsTotal.WithLabelValues(provider, status).Inc()
	m.llmDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordHTTP counts a served HTTP request.
func (m *Metrics) RecordHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// WSOpened and WSClosed track live WebSocket streams.
func (m *Metrics) WSOpened() {
	if m != nil {
		m.wsConnections.Inc()
	}
}

func (m *Metrics) WSClosed() {
	if m != nil {
		m.wsConnections.Dec()
	}
}

// RecordNotification counts an outbound notification attempt.
func (m *Metrics) RecordNotification(notifier string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.notificationsTotal.WithLabelValues(notifier, status).Inc()
}
