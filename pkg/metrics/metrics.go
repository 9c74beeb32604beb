// Package metrics defines the observability surface the firmware core
// exposes for a Prometheus scrape: bus request counts/latencies, disk
// slot state, and network session activity. Every interface here is
// optional — a nil value is always safe to call through (see the
// recorder wrappers in each file), so a build with metrics disabled
// pays zero overhead and a caller never has to nil-check before use.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates and installs a fresh Prometheus registry, enabling
// metrics collection. Safe to call more than once; each call replaces the
// previous registry (existing collectors from the old registry are not
// carried over, matching the teacher's single-registry-per-process model).
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the active registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// ResetRegistry disables metrics and drops the registry. Intended for test
// isolation between cases that call InitRegistry.
func ResetRegistry() {
	mu.Lock()
	defer mu.Unlock()
	registry = nil
	enabled = false
}
