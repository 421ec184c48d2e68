package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/metrics"
)

const (
	// DefaultInactiveThreshold is how long an identity may stay silent before
	// the sweep evicts it.
	DefaultInactiveThreshold = 30 * time.Second

	// DefaultSweepInterval is the fixed period between sweeps.
	DefaultSweepInterval = 30 * time.Second

	// ReasonInactivity is the disconnect reason reported for swept identities.
	ReasonInactivity = "inactivity"
)

// Publisher receives the events produced by the sweep.
type Publisher interface {
	Publish(ev domain.Event)
}

// LeaveEvent builds the system event announcing that identity disconnected.
func LeaveEvent(identity, reason string, at time.Time) domain.Event {
	return domain.Event{
		Room:      domain.SystemRoom,
		Text:      domain.LeaveText(identity, reason),
		Timestamp: at.Unix(),
		Kind:      domain.KindSystem,
		Author:    domain.SystemAuthor,
	}
}

// Sweeper periodically evicts inactive identities and announces each eviction.
type Sweeper struct {
	registry  *Registry
	publisher Publisher
	clock     clockwork.Clock
	interval  time.Duration
	threshold time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// SweeperOption is a function that configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithInterval sets the period between sweeps.
func WithInterval(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithThreshold sets the inactivity threshold.
func WithThreshold(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.threshold = d
		}
	}
}

// WithSweeperMetrics attaches Prometheus collectors to the sweeper.
func WithSweeperMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = m
	}
}

// NewSweeper creates a sweeper over registry. It does nothing until Run.
func NewSweeper(registry *Registry, publisher Publisher, clock clockwork.Clock, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		registry:  registry,
		publisher: publisher,
		clock:     clock,
		interval:  DefaultSweepInterval,
		threshold: DefaultInactiveThreshold,
		logger:    slog.Default().With("service", "sweeper"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}
	return s
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Inactivity sweep started", "interval", s.interval, "threshold", s.threshold)
	for {
		select {
		case <-ticker.Chan():
			s.Sweep()
		case <-ctx.Done():
			s.logger.Info("Inactivity sweep stopped")
			return
		}
	}
}

// Sweep runs a single pass and returns the evicted identities.
func (s *Sweeper) Sweep() []string {
	start := s.clock.Now()
	evicted := s.registry.SweepInactive(start, s.threshold)
	for _, identity := range evicted {
		s.publisher.Publish(LeaveEvent(identity, ReasonInactivity, start))
	}
	s.metrics.SweepDuration.Observe(s.clock.Since(start).Seconds())

	if len(evicted) > 0 {
		s.metrics.SweepEvictions.Add(float64(len(evicted)))
		s.logger.Info("Evicted inactive users", "count", len(evicted), "users", evicted)
	}
	return evicted
}
