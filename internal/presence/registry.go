package presence

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/lanbeam/lanbeam/pkg/types"
)

// DefaultTimeout is how long a device stays live without a touch.
const DefaultTimeout = 30 * time.Second

// Registry tracks connected devices and exposes the currently-live view.
// It is safe for concurrent use from many sessions.
type Registry struct {
	timeout time.Duration
	now     func() time.Time

	mutex   sync.RWMutex
	devices map[string]types.DeviceInfo
}

// New creates a registry with the given staleness threshold. A
// non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Registry{
		timeout: timeout,
		now:     time.Now,
		devices: make(map[string]types.DeviceInfo),
	}
}

// Register creates a device entry under a freshly generated identifier
// and returns it. Callers never choose identifiers.
func (r *Registry) Register(name string) types.DeviceInfo {
	device := types.DeviceInfo{
		ID:       uuid.New().String(),
		Name:     name,
		LastSeen: r.now().UTC(),
	}

	r.mutex.Lock()
	r.devices[device.ID] = device
	r.mutex.Unlock()

	log.Info().Str("device_id", device.ID).Str("name", name).Msg("device registered")
	return device
}

// Touch refreshes a device's LastSeen to the current time. It is a
// silent no-op when the id is already gone; deregistration races are
// expected and harmless.
func (r *Registry) Touch(id string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if device, ok := r.devices[id]; ok {
		device.LastSeen = r.now().UTC()
		r.devices[id] = device
	}
}

// Deregister removes a device. Removing an absent id is a no-op.
func (r *Registry) Deregister(id string) {
	r.mutex.Lock()
	_, existed := r.devices[id]
	delete(r.devices, id)
	r.mutex.Unlock()

	if existed {
		log.Info().Str("device_id", id).Msg("device deregistered")
	}
}

// LiveDevices returns every device whose LastSeen age is below the
// staleness threshold, computed at call time. Stale entries are left in
// place; evicting them is session timeout handling's job, not the read
// path's.
func (r *Registry) LiveDevices() []types.DeviceInfo {
	now := r.now()

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	live := make([]types.DeviceInfo, 0, len(r.devices))
	for _, device := range r.devices {
		if now.Sub(device.LastSeen) < r.timeout {
			live = append(live, device)
		}
	}
	return live
}

// Count returns the number of registered devices, live or not.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.devices)
}
