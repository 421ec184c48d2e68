package activity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/metrics"
	"github.com/nfrund/chathub/internal/pubsub"
)

// OtherRoom groups activity in rooms that were never created.
const OtherRoom = "other"

// RoomSet reports whether a room was created; satisfied by *rooms.Registry.
type RoomSet interface {
	Contains(name string) bool
}

// Subscriber consumes the mirrored event stream from the bus and keeps
// per-kind and per-room activity counts.
type Subscriber struct {
	sub     pubsub.Subscriber
	rooms   RoomSet
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	byKind map[domain.EventKind]int
	byRoom map[string]int
}

// NewSubscriber creates a subscriber. Per-room counts are kept only for rooms
// in rooms and the system room; the rest count under OtherRoom. m may be nil.
func NewSubscriber(sub pubsub.Subscriber, rooms RoomSet, m *metrics.Metrics) *Subscriber {
	if m == nil {
		m = metrics.Discard()
	}
	return &Subscriber{
		sub:     sub,
		rooms:   rooms,
		metrics: m,
		logger:  slog.Default().With("service", "activity"),
		byKind:  make(map[domain.EventKind]int),
		byRoom:  make(map[string]int),
	}
}

// Start subscribes to the chat event topic. Handling continues in the
// background until ctx is cancelled or the bus closes.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := pubsub.Subscribe(ctx, s.sub, pubsub.TopicChatEvents, s.handle); err != nil {
		return err
	}
	s.logger.Info("Activity subscriber started", "topic", pubsub.TopicChatEvents.Name())
	return nil
}

func (s *Subscriber) handle(_ context.Context, ev domain.Event) error {
	room := s.roomLabel(ev.Room)

	s.mu.Lock()
	s.byKind[ev.Kind]++
	s.byRoom[room]++
	s.mu.Unlock()

	s.metrics.EventsByKind.WithLabelValues(string(ev.Kind)).Inc()
	s.metrics.EventsByRoom.WithLabelValues(room).Inc()
	s.logger.Debug("Event observed", "kind", ev.Kind, "room", ev.Room, "author", ev.Author)
	return nil
}

// roomLabel keeps the room label set bounded by the created rooms.
func (s *Subscriber) roomLabel(room string) string {
	if room == domain.SystemRoom || (s.rooms != nil && s.rooms.Contains(room)) {
		return room
	}
	return OtherRoom
}

// Stats is a snapshot of observed activity.
type Stats struct {
	ByKind map[domain.EventKind]int `json:"byKind"`
	ByRoom map[string]int           `json:"byRoom"`
}

// Snapshot returns a copy of the counts observed so far.
func (s *Subscriber) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		ByKind: make(map[domain.EventKind]int, len(s.byKind)),
		ByRoom: make(map[string]int, len(s.byRoom)),
	}
	for k, v := range s.byKind {
		st.ByKind[k] = v
	}
	for k, v := range s.byRoom {
		st.ByRoom[k] = v
	}
	return st
}
