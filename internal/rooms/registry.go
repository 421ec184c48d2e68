package rooms

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/nfrund/chathub/internal/metrics"
)

// Registry is the set of known room names.
type Registry struct {
	mu      sync.RWMutex
	names   map[string]struct{}
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Metrics) *Registry {
	if m == nil {
		m = metrics.Discard()
	}
	return &Registry{
		names:   make(map[string]struct{}),
		metrics: m,
		logger:  slog.Default().With("service", "rooms"),
	}
}

// Create adds name and reports whether it was absent. An existing name is
// left untouched.
func (r *Registry) Create(name string) bool {
	r.mu.Lock()
	if _, ok := r.names[name]; ok {
		r.mu.Unlock()
		return false
	}
	r.names[name] = struct{}{}
	size := len(r.names)
	r.mu.Unlock()

	r.metrics.Rooms.Set(float64(size))
	r.logger.Info("Room created", "room", name, "total_rooms", size)
	return true
}

// List returns a sorted snapshot of all room names.
func (r *Registry) List() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

func (r *Registry) Contains(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
