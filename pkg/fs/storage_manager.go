package fs

import (
	"fmt"
	"sort"
	"sync"
)

// StorageManager is a name→FileSystem registry. DiskService and the console
// resolve a mount's backing storage by name through it rather than holding
// FileSystem references directly, so storage can be reconfigured without
// touching device code.
type StorageManager struct {
	mu sync.RWMutex
	fs map[string]FileSystem
}

// NewStorageManager returns an empty manager.
func NewStorageManager() *StorageManager {
	return &StorageManager{fs: make(map[string]FileSystem)}
}

// Register adds fs under its own Name(). Returns an error if that name is
// already taken or fs is nil.
func (m *StorageManager) Register(fs FileSystem) error {
	if fs == nil {
		return fmt.Errorf("fs: cannot register nil filesystem")
	}
	name := fs.Name()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.fs[name]; exists {
		return fmt.Errorf("fs: filesystem %q already registered", name)
	}
	m.fs[name] = fs
	return nil
}

// Unregister removes a filesystem by name, if present.
func (m *StorageManager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.fs, name)
}

// Get returns the filesystem registered under name, or nil, false.
func (m *StorageManager) Get(name string) (FileSystem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs, ok := m.fs[name]
	return fs, ok
}

// Names returns the sorted list of registered filesystem names.
func (m *StorageManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.fs))
	for name := range m.fs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
