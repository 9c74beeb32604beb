// Package prometheus implements metrics.BusMetrics, metrics.DiskMetrics,
// and metrics.NetworkMetrics on top of github.com/prometheus/client_golang,
// following the shape of the teacher's own pkg/metrics/prometheus
// collectors (counters/histograms registered via promauto against the
// process-wide registry from metrics.GetRegistry).
package prometheus

import (
	"fmt"
	"time"

	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type busMetrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	registeredCount prometheus.Gauge
}

// NewBusMetrics creates a Prometheus-backed metrics.BusMetrics.
// Returns nil if metrics.InitRegistry hasn't been called.
func NewBusMetrics() metrics.BusMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &busMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_bus_requests_total",
				Help: "Total number of device bus requests dispatched, by device, command, and status.",
			},
			[]string{"device", "command", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fujinet_bus_request_duration_milliseconds",
				Help:    "Duration of device bus request handling in milliseconds.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000},
			},
			[]string{"device", "command"},
		),
		registeredCount: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "fujinet_bus_registered_devices",
				Help: "Current number of devices registered on the bus.",
			},
		),
	}
}

func (m *busMetrics) RecordRequest(device uint8, command uint16, status string, duration time.Duration) {
	deviceLabel := fmt.Sprintf("0x%02x", device)
	commandLabel := fmt.Sprintf("0x%04x", command)
	m.requests.WithLabelValues(deviceLabel, commandLabel, status).Inc()
	m.requestDuration.WithLabelValues(deviceLabel, commandLabel).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *busMetrics) SetRegisteredDevices(count int) {
	m.registeredCount.Set(float64(count))
}
