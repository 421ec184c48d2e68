package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nfrund/chathub/internal/metrics"
)

// Entry is the presence record of one active identity.
type Entry struct {
	Identity    string    `json:"username"`
	LastSeen    time.Time `json:"lastSeen"`
	CurrentRoom string    `json:"room"`
}

// Registry tracks which identities are active and where. It is a pure state
// container: it never publishes events, callers decide what to emit after a
// mutation.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry // identity -> entry
	clock   clockwork.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option is a function that configures a Registry.
type Option func(*Registry)

// WithMetrics attaches Prometheus collectors to the registry.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty registry reading time from clock.
func NewRegistry(clock clockwork.Clock, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry),
		clock:   clock,
		logger:  slog.Default().With("service", "presence"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.Discard()
	}
	return r
}

// Touch records activity for identity in room and reports whether the
// identity was previously unknown.
func (r *Registry) Touch(identity, room string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	_, existed := r.entries[identity]
	r.entries[identity] = Entry{Identity: identity, LastSeen: now, CurrentRoom: room}
	size := len(r.entries)
	r.mu.Unlock()

	r.metrics.PresenceEntries.Set(float64(size))
	if !existed {
		r.logger.Info("User came online", "user", identity, "room", room)
	}
	return !existed
}

// Refresh updates an existing entry. Unlike Touch it never creates one and
// returns false when identity is unknown.
func (r *Registry) Refresh(identity, room string) bool {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[identity]; !ok {
		return false
	}
	r.entries[identity] = Entry{Identity: identity, LastSeen: now, CurrentRoom: room}
	return true
}

// SweepInactive removes and returns every identity whose last activity is
// more than threshold before now.
func (r *Registry) SweepInactive(now time.Time, threshold time.Duration) []string {
	r.mu.RLock()
	var candidates []string
	for identity, e := range r.entries {
		if now.Sub(e.LastSeen) > threshold {
			candidates = append(candidates, identity)
		}
	}
	r.mu.RUnlock()

	if len(candidates) == 0 {
		return nil
	}

	r.mu.Lock()
	evicted := make([]string, 0, len(candidates))
	for _, identity := range candidates {
		// A Touch may have landed since the snapshot.
		e, ok := r.entries[identity]
		if !ok || now.Sub(e.LastSeen) <= threshold {
			continue
		}
		delete(r.entries, identity)
		evicted = append(evicted, identity)
	}
	size := len(r.entries)
	r.mu.Unlock()

	sort.Strings(evicted)
	r.metrics.PresenceEntries.Set(float64(size))
	return evicted
}

// Remove deletes identity and reports whether it was present.
func (r *Registry) Remove(identity string) bool {
	r.mu.Lock()
	_, ok := r.entries[identity]
	delete(r.entries, identity)
	size := len(r.entries)
	r.mu.Unlock()

	if ok {
		r.metrics.PresenceEntries.Set(float64(size))
		r.logger.Info("User removed", "user", identity, "remaining_users", size)
	}
	return ok
}

// Get returns the entry for identity.
func (r *Registry) Get(identity string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[identity]
	return e, ok
}

// Online returns a snapshot of all entries ordered by identity.
func (r *Registry) Online() []Entry {
	r.mu.RLock()
	result := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		result = append(result, e)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Identity < result[j].Identity })
	return result
}

// Len returns the number of tracked identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
