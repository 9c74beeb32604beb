package netdevice

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/fujinet-nio/fujinet-nio/pkg/netdevice/backend"
)

// Factory constructs a fresh, unopened backend for one session.
type Factory func() backend.Backend

// Registry maps a URL scheme to the backend factory that serves it.
type Registry struct {
	mu    sync.RWMutex
	byKey map[string]Factory
}

// NewRegistry returns an empty scheme registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Factory)}
}

// Register binds scheme (case-insensitive) to factory, overwriting any
// previous binding — call order decides precedence when reusing this
// registry across test and production wiring.
func (r *Registry) Register(scheme string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[strings.ToLower(scheme)] = factory
}

// Lookup returns the factory for scheme, or (nil, false).
func (r *Registry) Lookup(scheme string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byKey[strings.ToLower(scheme)]
	return f, ok
}

// Schemes returns the sorted list of currently registered schemes.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// schemeOf extracts the lowercased substring before "://", per the Open
// command's scheme-extraction rule.
func schemeOf(url string) (string, error) {
	idx := strings.Index(url, "://")
	if idx < 0 {
		return "", fmt.Errorf("netdevice: no scheme in url %q", url)
	}
	return strings.ToLower(url[:idx]), nil
}
