package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionMetrics exposes the engine's operational counters. All methods are
// safe on a nil receiver so wiring stays optional in tests.
type SessionMetrics struct {
	registry *prometheus.Registry

	activeRooms      prometheus.Gauge
	connectedClients prometheus.Gauge
	intents          *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	droppedMessages  prometheus.Counter
	resyncs          prometheus.Counter
	httpRequests     *prometheus.HistogramVec
}

func New() *SessionMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &SessionMetrics{
		registry: registry,
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gametable",
			Name:      "active_rooms",
			Help:      "Campaign rooms currently held in memory.",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gametable",
			Name:      "connected_clients",
			Help:      "Websocket connections across all rooms.",
		}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gametable",
			Name:      "intents_total",
			Help:      "Client intents by type and outcome.",
		}, []string{"type", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gametable",
			Name:      "broadcasts_total",
			Help:      "Room broadcasts by event type.",
		}, []string{"type"}),
		droppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gametable",
			Name:      "dropped_messages_total",
			Help:      "Broadcasts dropped because a client buffer was full.",
		}),
		resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gametable",
			Name:      "resyncs_total",
			Help:      "Forced full-state resyncs.",
		}),
		httpRequests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gametable",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.activeRooms,
		m.connectedClients,
		m.intents,
		m.broadcasts,
		m.droppedMessages,
		m.resyncs,
		m.httpRequests,
	)
	return m
}

// Handler serves the scrape endpoint.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SessionMetrics) RoomOpened() {
	if m == nil {
		return
	}
	m.activeRooms.Inc()
}

func (m *SessionMetrics) RoomClosed() {
	if m == nil {
		return
	}
	m.activeRooms.Dec()
}

func (m *SessionMetrics) ClientConnected() {
	if m == nil {
		return
	}
	m.connectedClients.Inc()
}

func (m *SessionMetrics) ClientDisconnected() {
	if m == nil {
		return
	}
	m.connectedClients.Dec()
}

func (m *SessionMetrics) IntentHandled(intentType, outcome string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intentType, outcome).Inc()
}

func (m *SessionMetrics) BroadcastSent(eventType string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(eventType).Inc()
}

func (m *SessionMetrics) MessageDropped() {
	if m == nil {
		return
	}
	m.droppedMessages.Inc()
}

func (m *SessionMetrics) ResyncIssued() {
	if m == nil {
		return
	}
	m.resyncs.Inc()
}

func (m *SessionMetrics) HTTPRequest(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(seconds)
}
