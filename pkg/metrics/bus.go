package metrics

import "time"

// BusMetrics observes traffic flowing through the device bus dispatcher:
// one request in, one response out, per DeviceID/command. Implementations
// can use this for a Prometheus scrape; pass nil to disable.
type BusMetrics interface {
	// RecordRequest records a completed dispatch: which device/command it
	// targeted, the resulting status string (bus.StatusCode.String()),
	// and how long Handle took.
	RecordRequest(device uint8, command uint16, status string, duration time.Duration)

	// SetRegisteredDevices records the current size of the device registry.
	SetRegisteredDevices(count int)
}

// RecordRequest calls through to m if non-nil.
func RecordRequest(m BusMetrics, device uint8, command uint16, status string, duration time.Duration) {
	if m != nil {
		m.RecordRequest(device, command, status, duration)
	}
}

// SetRegisteredDevices calls through to m if non-nil.
func SetRegisteredDevices(m BusMetrics, count int) {
	if m != nil {
		m.SetRegisteredDevices(count)
	}
}
