package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/metrics"
	"github.com/nfrund/chathub/internal/presence"
	"github.com/nfrund/chathub/internal/pubsub"
	"github.com/nfrund/chathub/internal/rooms"
	"github.com/nfrund/chathub/internal/stream"
)

const (
	// DefaultMaxMessageLength is the longest accepted chat text, in characters.
	DefaultMaxMessageLength = 500

	// MaxRoomNameLength is the longest accepted room name, in characters.
	MaxRoomNameLength = 100
)

// Service is the request surface of the hub. It owns the emission policy:
// registries are mutated first, then the matching events are published.
type Service struct {
	hub      *hub.Hub
	presence *presence.Registry
	rooms    *rooms.Registry

	// joinMu covers Touch plus the hub publish of the join event, so no
	// chat from an identity reaches the hub before its join.
	joinMu sync.Mutex

	bus       pubsub.Publisher
	clock     clockwork.Clock
	maxLen    int
	keepAlive time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option is a function that configures a Service.
type Option func(*Service)

// WithBus mirrors every published event to the in-process event bus.
func WithBus(p pubsub.Publisher) Option {
	return func(s *Service) {
		s.bus = p
	}
}

// WithClock sets the clock used for event timestamps and stream keep-alives.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithMaxMessageLength overrides DefaultMaxMessageLength.
func WithMaxMessageLength(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLen = n
		}
	}
}

// WithKeepAlive sets the keep-alive interval for streams opened by the service.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithMetrics attaches Prometheus collectors to sessions opened by the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService wires the service over shared state.
func NewService(h *hub.Hub, presenceRegistry *presence.Registry, roomRegistry *rooms.Registry, opts ...Option) *Service {
	s := &Service{
		hub:       h,
		presence:  presenceRegistry,
		rooms:     roomRegistry,
		clock:     clockwork.NewRealClock(),
		maxLen:    DefaultMaxMessageLength,
		keepAlive: stream.DefaultKeepAlive,
		logger:    slog.Default().With("service", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}
	return s
}

var _ presence.Publisher = (*Service)(nil)

// Publish stamps ev and sends it to the hub and, when configured, the bus.
// A missing kind becomes Chat and a zero timestamp becomes now. It never
// fails; bus errors are logged.
func (s *Service) Publish(ev domain.Event) {
	if ev.Kind == "" {
		ev.Kind = domain.KindChat
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = s.clock.Now().Unix()
	}
	s.hub.Publish(ev)
	s.mirror(ev)
}

func (s *Service) mirror(ev domain.Event) {
	if s.bus == nil {
		return
	}
	if err := pubsub.Publish(context.Background(), s.bus, pubsub.TopicChatEvents, ev.Author, ev); err != nil {
		s.logger.Error("Failed to mirror event to bus", "kind", ev.Kind, "room", ev.Room, "error", err)
	}
}

// PostMessage records activity for identity and broadcasts text to room. A
// first-seen identity is announced with a join event before the message.
func (s *Service) PostMessage(ctx context.Context, identity, room, text string) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	if utf8.RuneCountInString(text) > s.maxLen {
		return domain.BadRequest("message too long")
	}

	now := s.clock.Now().Unix()
	var join *domain.Event
	s.joinMu.Lock()
	if s.presence.Touch(identity, room) {
		join = &domain.Event{
			Room:      room,
			Text:      domain.JoinText(identity),
			Timestamp: now,
			Kind:      domain.KindJoin,
			Author:    identity,
		}
		s.hub.Publish(*join)
	}
	s.joinMu.Unlock()
	if join != nil {
		s.mirror(*join)
	}

	s.Publish(domain.Event{
		Room:      room,
		Text:      text,
		Timestamp: now,
		Kind:      domain.KindChat,
		Author:    identity,
	})
	return nil
}

// Heartbeat refreshes an existing presence entry. It never creates one.
func (s *Service) Heartbeat(ctx context.Context, identity, room string) error {
	if !s.presence.Refresh(identity, room) {
		return domain.NotFound("not found")
	}
	return nil
}

// CreateRoom registers room and announces it.
func (s *Service) CreateRoom(ctx context.Context, identity, room string) error {
	if err := validateRoom(room); err != nil {
		return err
	}
	if !s.rooms.Create(room) {
		return domain.Conflict("Room already exists")
	}
	s.Publish(systemEvent(domain.RoomCreatedText(room), s.clock.Now()))
	s.logger.Info("Room created", "room", room, "created_by", identity)
	return nil
}

// ListRooms returns the sorted room names.
func (s *Service) ListRooms(ctx context.Context) []string {
	return s.rooms.List()
}

// Online returns the current presence entries.
func (s *Service) Online(ctx context.Context) []presence.Entry {
	return s.presence.Online()
}

// Disconnect removes identity and announces the reason. It reports whether
// the identity was present; absent identities produce no event.
func (s *Service) Disconnect(ctx context.Context, identity, reason string) bool {
	if !s.presence.Remove(identity) {
		return false
	}
	s.Publish(presence.LeaveEvent(identity, reason, s.clock.Now()))
	return true
}

// OpenStream subscribes sink to the hub. The caller must Run or Close the
// returned session.
func (s *Service) OpenStream(identity string, sink stream.Sink) *stream.Session {
	return stream.Open(s.hub, identity, sink,
		stream.WithClock(s.clock),
		stream.WithKeepAlive(s.keepAlive),
		stream.WithMetrics(s.metrics),
	)
}

func validateRoom(room string) error {
	if room == "" {
		return domain.BadRequest("room is required")
	}
	if utf8.RuneCountInString(room) > MaxRoomNameLength {
		return domain.BadRequest("room name too long")
	}
	return nil
}

func systemEvent(text string, at time.Time) domain.Event {
	return domain.Event{
		Room:      domain.SystemRoom,
		Text:      text,
		Timestamp: at.Unix(),
		Kind:      domain.KindSystem,
		Author:    domain.SystemAuthor,
	}
}
