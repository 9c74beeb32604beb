package prometheus

import (
	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type networkMetrics struct {
	activeSessions  prometheus.Gauge
	sessionsOpened  *prometheus.CounterVec
	sessionsClosed  *prometheus.CounterVec
	bytesTransfered *prometheus.CounterVec
}

// NewNetworkMetrics creates a Prometheus-backed metrics.NetworkMetrics.
// Returns nil if metrics.InitRegistry hasn't been called.
func NewNetworkMetrics() metrics.NetworkMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &networkMetrics{
		activeSessions: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fujinet_network_active_sessions",
				Help: "Current number of open NetworkDevice sessions.",
			},
		),
		sessionsOpened: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_network_sessions_opened_total",
				Help: "Total number of NetworkDevice sessions opened, by scheme.",
			},
			[]string{"scheme"},
		),
		sessionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_network_sessions_closed_total",
				Help: "Total number of NetworkDevice sessions closed, by scheme.",
			},
			[]string{"scheme"},
		),
		bytesTransfered: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_network_bytes_total",
				Help: "Total bytes transferred over NetworkDevice sessions, by scheme and direction.",
			},
			[]string{"scheme", "direction"},
		),
	}
}

func (m *networkMetrics) SetActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

func (m *networkMetrics) RecordSessionOpened(scheme string) {
	m.sessionsOpened.WithLabelValues(scheme).Inc()
}

func (m *networkMetrics) RecordSessionClosed(scheme string) {
	m.sessionsClosed.WithLabelValues(scheme).Inc()
}

func (m *networkMetrics) RecordBytesTransferred(scheme string, direction string, bytes int) {
	m.bytesTransfered.WithLabelValues(scheme, direction).Add(float64(bytes))
}
