package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/thingprov/thingprov-go/pkg/identity"
)

// MemoryRegistry keeps device records in memory.
type MemoryRegistry struct {
	mu      sync.RWMutex
	devices map[identity.ID]Device
}

// NewMemoryRegistry creates a registry holding devices.
func NewMemoryRegistry(devices ...Device) *MemoryRegistry {
	r := &MemoryRegistry{devices: make(map[identity.ID]Device, len(devices))}
	for _, d := range devices {
		r.devices[d.ID] = d
	}
	return r
}

// Put adds or replaces a device.
func (r *MemoryRegistry) Put(d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.ID] = d
}

// LookupDevice implements Registry.
func (r *MemoryRegistry) LookupDevice(_ context.Context, id identity.ID) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return d, nil
}

// MarkProvisioned implements Registry.
func (r *MemoryRegistry) MarkProvisioned(_ context.Context, id identity.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	d.Provisioned = true
	r.devices[id] = d
	return nil
}

// Provisioned reports whether id has been marked provisioned.
func (r *MemoryRegistry) Provisioned(id identity.ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices[id].Provisioned
}

// Compile-time interface satisfaction check.
var _ Registry = (*MemoryRegistry)(nil)
