package adapter

import "sync"

// Registry holds the configured adapter set in registration order. Adapters
// can be added and removed at runtime without a restart.
type Registry struct {
	mu       sync.Mutex
	adapters []Adapter
}

// Handle identifies one registration and can remove it.
type Handle struct {
	registry *Registry
	adapter  Adapter
	once     sync.Once
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a to the adapter set and returns a removal handle.
func (r *Registry) Register(a Adapter) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
	return &Handle{registry: r, adapter: a}
}

// Adapters returns a snapshot of the adapter set in registration order.
func (r *Registry) Adapters() []Adapter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Adapter(nil), r.adapters...)
}

// Remove unregisters the adapter. Removing twice is safe.
func (h *Handle) Remove() {
	h.once.Do(func() {
		r := h.registry
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, a := range r.adapters {
			if a == h.adapter {
				r.adapters = append(r.adapters[:i], r.adapters[i+1:]...)
				return
			}
		}
	})
}
