package session

import (
	"slices"
	"sync"

	"mfkey/internal/recovery"
)

// Registry is the deduplicated list of keys found during one run.
type Registry struct {
	mu   sync.RWMutex
	keys []uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Lookup returns a known key that explains the second trace of p.
func (r *Registry) Lookup(p *recovery.Params) (uint64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range r.keys {
		if p.Explains(k) {
			return k, true
		}
	}
	return 0, false
}

// Insert records key for p unless the registry already holds it or another
// key that explains p. It reports whether the registry grew.
func (r *Registry) Insert(p *recovery.Params, key uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range r.keys {
		if k == key || p.Explains(k) {
			return false
		}
	}
	r.keys = append(r.keys, key)
	return true
}

// Keys returns the keys in discovery order.
func (r *Registry) Keys() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.keys)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}
