package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/metrics"
)

// DefaultKeepAlive is the interval between keep-alive signals on an idle
// stream.
const DefaultKeepAlive = 15 * time.Second

// Sink is the outbound half of a client connection.
type Sink interface {
	// Send writes one event to the client.
	Send(ctx context.Context, ev domain.Event) error
	// KeepAlive writes a payload-free signal that keeps intermediaries from
	// reaping an idle connection.
	KeepAlive(ctx context.Context) error
	// Transport names the sink for logs and metrics, e.g. "sse".
	Transport() string
}

// CloseReason explains why Run returned.
type CloseReason string

const (
	ReasonClientGone CloseReason = "client_gone"
	ReasonLagged     CloseReason = "lagged"
	ReasonHubClosed  CloseReason = "hub_closed"
	ReasonWriteError CloseReason = "write_error"
)

// Session pushes every hub event to a single client. It owns its subscriber
// exclusively and releases it when Run returns.
type Session struct {
	ID       string
	Identity string

	sub       *hub.Subscriber
	sink      Sink
	clock     clockwork.Clock
	keepAlive time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// Option is a function that configures a Session.
type Option func(*Session)

// WithClock sets the clock driving keep-alives.
func WithClock(c clockwork.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithKeepAlive sets the keep-alive interval.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// WithMetrics attaches Prometheus collectors to the session.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// Open subscribes to h on behalf of identity. The subscription starts now, so
// the session never sees events published before Open.
func Open(h *hub.Hub, identity string, sink Sink, opts ...Option) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Identity:  identity,
		sink:      sink,
		clock:     clockwork.NewRealClock(),
		keepAlive: DefaultKeepAlive,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}
	s.logger = slog.Default().With(
		"service", "stream",
		"session_id", s.ID,
		"user", identity,
		"transport", sink.Transport(),
	)
	s.sub = h.Subscribe()
	return s
}

type recvResult struct {
	ev  domain.Event
	err error
}

// Run forwards events until the client goes away, the subscriber lags or is
// closed, or a write fails. It never sends an error event to the client. Run
// must be called at most once.
func (s *Session) Run(ctx context.Context) (reason CloseReason) {
	transport := s.sink.Transport()
	s.metrics.ActiveSessions.WithLabelValues(transport).Inc()
	s.logger.Info("Stream session opened")

	pumpCtx, stopPump := context.WithCancel(ctx)
	results := make(chan recvResult)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.pump(pumpCtx, results)
	}()

	ticker := s.clock.NewTicker(s.keepAlive)

	defer func() {
		ticker.Stop()
		stopPump()
		wg.Wait()
		s.sub.Close()
		s.metrics.ActiveSessions.WithLabelValues(transport).Dec()
		s.metrics.SessionsClosed.WithLabelValues(string(reason)).Inc()
		s.logger.Info("Stream session closed", "reason", reason)
	}()

	for {
		select {
		case r := <-results:
			switch {
			case r.err == nil:
				if err := s.sink.Send(ctx, r.ev); err != nil {
					s.logger.Debug("Stream write failed", "error", err)
					return ReasonWriteError
				}
				s.metrics.EventsDelivered.Inc()
			case errors.Is(r.err, hub.ErrLagged):
				return ReasonLagged
			case errors.Is(r.err, hub.ErrClosed):
				return ReasonHubClosed
			default:
				return ReasonClientGone
			}
		case <-ticker.Chan():
			if err := s.sink.KeepAlive(ctx); err != nil {
				s.logger.Debug("Keep-alive write failed", "error", err)
				return ReasonWriteError
			}
			s.metrics.KeepAlivesSent.Inc()
		case <-ctx.Done():
			return ReasonClientGone
		}
	}
}

// pump drains the subscriber into results until it reports an error or ctx
// ends.
func (s *Session) pump(ctx context.Context, results chan<- recvResult) {
	for {
		ev, err := s.sub.Recv(ctx)
		select {
		case results <- recvResult{ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Close releases the subscriber of a session that will not be run. It is safe
// to call after Run.
func (s *Session) Close() {
	s.sub.Close()
}
