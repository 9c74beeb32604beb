package prometheus

import (
	"fmt"

	"github.com/fujinet-nio/fujinet-nio/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type diskMetrics struct {
	mounted     *prometheus.GaugeVec
	dirty       *prometheus.GaugeVec
	sectorReads *prometheus.CounterVec
	readBytes   *prometheus.CounterVec
	sectorWrite *prometheus.CounterVec
	writeBytes  *prometheus.CounterVec
}

// NewDiskMetrics creates a Prometheus-backed metrics.DiskMetrics.
// Returns nil if metrics.InitRegistry hasn't been called.
func NewDiskMetrics() metrics.DiskMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()

	return &diskMetrics{
		mounted: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fujinet_disk_slot_mounted",
				Help: "1 if the disk slot currently has an image mounted, 0 otherwise.",
			},
			[]string{"slot"},
		),
		dirty: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fujinet_disk_slot_dirty",
				Help: "1 if the disk slot has unflushed writes since mount, 0 otherwise.",
			},
			[]string{"slot"},
		),
		sectorReads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_disk_sector_reads_total",
				Help: "Total number of sector reads, by slot.",
			},
			[]string{"slot"},
		),
		readBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_disk_read_bytes_total",
				Help: "Total bytes read from disk slots.",
			},
			[]string{"slot"},
		),
		sectorWrite: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_disk_sector_writes_total",
				Help: "Total number of sector writes, by slot.",
			},
			[]string{"slot"},
		),
		writeBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fujinet_disk_write_bytes_total",
				Help: "Total bytes written to disk slots.",
			},
			[]string{"slot"},
		),
	}
}

func (m *diskMetrics) SetSlotMounted(slot int, mounted bool) {
	v := 0.0
	if mounted {
		v = 1.0
	}
	m.mounted.WithLabelValues(slotLabel(slot)).Set(v)
}

func (m *diskMetrics) SetSlotDirty(slot int, dirty bool) {
	v := 0.0
	if dirty {
		v = 1.0
	}
	m.dirty.WithLabelValues(slotLabel(slot)).Set(v)
}

func (m *diskMetrics) RecordSectorRead(slot int, bytes int) {
	m.sectorReads.WithLabelValues(slotLabel(slot)).Inc()
	m.readBytes.WithLabelValues(slotLabel(slot)).Add(float64(bytes))
}

func (m *diskMetrics) RecordSectorWrite(slot int, bytes int) {
	m.sectorWrite.WithLabelValues(slotLabel(slot)).Inc()
	m.writeBytes.WithLabelValues(slotLabel(slot)).Add(float64(bytes))
}

func slotLabel(slot int) string {
	return fmt.Sprintf("%d", slot)
}
