package metrics

// NetworkMetrics observes NetworkDevice session activity: how many
// sessions are open, by which scheme, and how many bytes flow through
// them. Pass nil to disable.
type NetworkMetrics interface {
	// SetActiveSessions records the current count of open sessions.
	SetActiveSessions(count int)

	// RecordSessionOpened records a successful Open for scheme.
	RecordSessionOpened(scheme string)

	// RecordSessionClosed records a session closing (by the client or by
	// the backend failing).
	RecordSessionClosed(scheme string)

	// RecordBytesTransferred records payload bytes moved in direction
	// ("read" or "write") for scheme.
	RecordBytesTransferred(scheme string, direction string, bytes int)
}

func SetActiveSessions(m NetworkMetrics, count int) {
	if m != nil {
		m.SetActiveSessions(count)
	}
}

func RecordSessionOpened(m NetworkMetrics, scheme string) {
	if m != nil {
		m.RecordSessionOpened(scheme)
	}
}

func RecordSessionClosed(m NetworkMetrics, scheme string) {
	if m != nil {
		m.RecordSessionClosed(scheme)
	}
}

func RecordBytesTransferred(m NetworkMetrics, scheme string, direction string, bytes int) {
	if m != nil {
		m.RecordBytesTransferred(scheme, direction, bytes)
	}
}
