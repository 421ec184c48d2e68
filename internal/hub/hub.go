package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/metrics"
)

// DefaultCapacity is the number of events retained in the ring.
const DefaultCapacity = 1024

var (
	// ErrLagged is returned by Recv when the subscriber fell more than the ring
	// capacity behind. The subscriber is detached; the caller must end its
	// session.
	ErrLagged = errors.New("hub: subscriber lagged behind")

	// ErrClosed is returned by Recv once the subscriber or the hub is closed.
	ErrClosed = errors.New("hub: closed")
)

// Hub is a single multi-producer, multi-consumer event channel. Published
// events are written into a bounded ring shared by every subscriber; each
// subscriber keeps its own read position.
type Hub struct {
	mu       sync.Mutex
	ring     []domain.Event
	head     uint64 // sequence number of the next event to be written
	subs     int
	closed   bool
	wake     chan struct{} // closed and replaced on every publish
	metrics  *metrics.Metrics
	logger   *slog.Logger
	capacity uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithCapacity overrides the ring capacity.
func WithCapacity(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.capacity = uint64(n)
		}
	}
}

// WithMetrics attaches Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) {
		h.metrics = m
	}
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		capacity: DefaultCapacity,
		wake:     make(chan struct{}),
		logger:   slog.Default().With("service", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = metrics.Discard()
	}
	h.ring = make([]domain.Event, h.capacity)
	return h
}

// Publish appends ev to the ring and wakes every waiting subscriber. It never
// blocks on subscribers and never fails; with nobody listening the event is
// dropped.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	if h.closed || h.subs == 0 {
		h.mu.Unlock()
		h.metrics.EventsDropped.Inc()
		return
	}
	h.ring[h.head%h.capacity] = ev
	h.head++
	wake := h.wake
	h.wake = make(chan struct{})
	h.mu.Unlock()

	close(wake)
	h.metrics.EventsPublished.Inc()
}

// Subscribe returns a cursor positioned after the latest published event.
func (h *Hub) Subscribe() *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &Subscriber{
		ID:   uuid.NewString(),
		hub:  h,
		next: h.head,
	}
	if h.closed {
		s.done = true
		return s
	}
	h.subs++
	h.metrics.ActiveSubscribers.Inc()
	h.logger.Debug("Subscriber attached", "subscriber_id", s.ID, "total_subscribers", h.subs)
	return s
}

// Subscribers returns the number of attached subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.subs
}

// Published returns how many events have been written to the ring.
func (h *Hub) Published() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head
}

// Capacity returns the ring size.
func (h *Hub) Capacity() int {
	return int(h.capacity)
}

// Close shuts the hub down. Subscribers drain what is already buffered and
// then receive ErrClosed. Publishing after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	wake := h.wake
	h.mu.Unlock()

	close(wake)
	h.logger.Info("Broadcast hub closed")
}

// detach must be called with h.mu held.
func (h *Hub) detach(s *Subscriber) {
	if s.done {
		return
	}
	s.done = true
	if h.subs > 0 {
		h.subs--
	}
	h.metrics.ActiveSubscribers.Dec()
}

// Subscriber is one independent read cursor into the hub.
type Subscriber struct {
	ID string

	hub  *Hub
	next uint64 // guarded by hub.mu
	done bool   // guarded by hub.mu
}

// Recv returns the next event in publish order. It suspends until an event is
// available, the subscriber lags, the hub closes, or ctx ends.
func (s *Subscriber) Recv(ctx context.Context) (domain.Event, error) {
	h := s.hub
	for {
		h.mu.Lock()
		if s.done {
			h.mu.Unlock()
			return domain.Event{}, ErrClosed
		}
		if h.head-s.next > h.capacity {
			behind := h.head - s.next
			h.detach(s)
			h.mu.Unlock()
			h.metrics.LaggedSubscribers.Inc()
			h.logger.Warn("Subscriber lagged, detaching", "subscriber_id", s.ID, "behind", behind, "capacity", h.capacity)
			return domain.Event{}, ErrLagged
		}
		if s.next < h.head {
			ev := h.ring[s.next%h.capacity]
			s.next++
			h.mu.Unlock()
			return ev, nil
		}
		if h.closed {
			h.detach(s)
			h.mu.Unlock()
			return domain.Event{}, ErrClosed
		}
		wake := h.wake
		h.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		}
	}
}

// Close releases the subscriber. It is safe to call more than once.
func (s *Subscriber) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.done {
		return
	}
	h.detach(s)
	h.logger.Debug("Subscriber detached", "subscriber_id", s.ID, "total_subscribers", h.subs)
}
