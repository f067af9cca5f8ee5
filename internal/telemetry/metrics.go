// Package telemetry exposes the Prometheus metrics of the service. A nil
// *Metrics is valid and records nothing, which keeps tests free of
// registry plumbing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "teamhub"

// Metrics holds the collectors of one process. Every recording method is
// safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	authnGate         *prometheus.CounterVec
	logins            *prometheus.CounterVec
	tokensIssued      *prometheus.CounterVec
	refreshPurged     prometheus.Counter
	realtimeConns     prometheus.Gauge
	realtimeHandshake *prometheus.CounterVec
	realtimeDropped   prometheus.Counter
}

// New creates the metrics on a private registry together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		authnGate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "authn_gate_total",
			Help:      "Requests passing the authentication gate by outcome.",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts by method and result.",
		}, []string{"method", "result"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by kind.",
		}, []string{"kind"}),
		refreshPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_tokens_purged_total",
			Help:      "Expired refresh tokens removed by housekeeping.",
		}),
		realtimeConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime connections.",
		}),
		realtimeHandshake: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_handshakes_total",
			Help:      "Realtime CONNECT frames by authentication outcome.",
		}, []string{"outcome"}),
		realtimeDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_frames_dropped_total",
			Help:      "Outgoing frames dropped because a client queue was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authnGate,
		m.logins,
		m.tokensIssued,
		m.refreshPurged,
		m.realtimeConns,
		m.realtimeHandshake,
		m.realtimeDropped,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// AuthnOutcome counts one pass through the HTTP authentication gate.
func (m *Metrics) AuthnOutcome(outcome string) {
	if m == nil {
		return
	}
	m.authnGate.WithLabelValues(outcome).Inc()
}

// Login counts a login attempt, e.g. method "password" or "mfa".
func (m *Metrics) Login(method, result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(method, result).Inc()
}

// TokenIssued counts an issued "access" or "refresh" token.
func (m *Metrics) TokenIssued(kind string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind).Inc()
}

// RefreshTokensPurged adds n removed rows. Non-positive n is ignored.
func (m *Metrics) RefreshTokensPurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.refreshPurged.Add(float64(n))
}

func (m *Metrics) RealtimeConnected() {
	if m == nil {
		return
	}
	m.realtimeConns.Inc()
}

func (m *Metrics) RealtimeDisconnected() {
	if m == nil {
		return
	}
	m.realtimeConns.Dec()
}

// HandshakeOutcome counts a realtime CONNECT by authentication outcome.
func (m *Metrics) HandshakeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.realtimeHandshake.WithLabelValues(outcome).Inc()
}

func (m *Metrics) FrameDropped() {
	if m == nil {
		return
	}
	m.realtimeDropped.Inc()
}
