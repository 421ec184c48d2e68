package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/metrics"
)

type fakeSink struct {
	mu         sync.Mutex
	events     []domain.Event
	keepAlives int
	sendErr    error
	sent       chan struct{}
}

func newFakeSink() *fakeSink {
	return &fakeSink{sent: make(chan struct{}, 64)}
}

func (f *fakeSink) Send(_ context.Context, ev domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.events = append(f.events, ev)
	f.sent <- struct{}{}
	return nil
}

func (f *fakeSink) KeepAlive(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keepAlives++
	return nil
}

func (f *fakeSink) Transport() string { return "fake" }

func (f *fakeSink) snapshot() ([]domain.Event, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Event, len(f.events))
	copy(out, f.events)
	return out, f.keepAlives
}

func runAsync(ctx context.Context, s *Session) <-chan CloseReason {
	done := make(chan CloseReason, 1)
	go func() { done <- s.Run(ctx) }()
	return done
}

func waitReason(t *testing.T, done <-chan CloseReason) CloseReason {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("session did not terminate")
		return ""
	}
}

func waitSent(t *testing.T, sink *fakeSink, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-sink.sent:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d events delivered", i, n)
		}
	}
}

func TestSession_ForwardsEventsInOrder(t *testing.T) {
	h := hub.New()
	sink := newFakeSink()
	s := Open(h, "alice", sink)
	require.Equal(t, 1, h.Subscribers())

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	for _, text := range []string{"one", "two", "three"} {
		h.Publish(domain.Event{Room: "lobby", Text: text, Kind: domain.KindChat, Author: "bob"})
	}
	waitSent(t, sink, 3)

	cancel()
	assert.Equal(t, ReasonClientGone, waitReason(t, done))
	assert.Equal(t, 0, h.Subscribers(), "subscriber released on disconnect")

	events, _ := sink.snapshot()
	require.Len(t, events, 3)
	assert.Equal(t, "one", events[0].Text)
	assert.Equal(t, "two", events[1].Text)
	assert.Equal(t, "three", events[2].Text)
}

func TestSession_DoesNotSeeEventsBeforeOpen(t *testing.T) {
	h := hub.New()
	other := h.Subscribe()
	defer other.Close()

	h.Publish(domain.Event{Text: "before"})

	sink := newFakeSink()
	s := Open(h, "alice", sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	h.Publish(domain.Event{Text: "after"})
	waitSent(t, sink, 1)
	cancel()
	waitReason(t, done)

	events, _ := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "after", events[0].Text)
}

func TestSession_KeepAliveNeverReachesHub(t *testing.T) {
	clock := clockwork.NewFakeClock()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h := hub.New()
	sink := newFakeSink()
	s := Open(h, "alice", sink, WithClock(clock), WithKeepAlive(15*time.Second), WithMetrics(m))

	ctx, cancel := context.WithCancel(context.Background())
	done := runAsync(ctx, s)

	waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	clock.Advance(15 * time.Second)
	require.Eventually(t, func() bool {
		_, ka := sink.snapshot()
		return ka == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, uint64(0), h.Published())
	events, _ := sink.snapshot()
	assert.Empty(t, events)

	cancel()
	waitReason(t, done)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.KeepAlivesSent))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveSessions.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsClosed.WithLabelValues(string(ReasonClientGone))))
}

func TestSession_LagTerminatesWithoutErrorEvent(t *testing.T) {
	h := hub.New(hub.WithCapacity(4))
	sink := newFakeSink()
	s := Open(h, "slow", sink)

	fast := h.Subscribe()
	defer fast.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < 5; i++ {
		h.Publish(domain.Event{Text: "burst"})
		_, err := fast.Recv(ctx)
		require.NoError(t, err)
	}

	reason := waitReason(t, runAsync(context.Background(), s))
	assert.Equal(t, ReasonLagged, reason)

	events, _ := sink.snapshot()
	assert.Empty(t, events, "nothing is written to a lagged client")
	assert.Equal(t, 1, h.Subscribers(), "only the lagged subscriber is dropped")

	h.Publish(domain.Event{Text: "after"})
	ev, err := fast.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "after", ev.Text)
}

func TestSession_HubCloseDrainsThenEnds(t *testing.T) {
	h := hub.New()
	sink := newFakeSink()
	s := Open(h, "alice", sink)

	h.Publish(domain.Event{Text: "last words"})
	h.Close()

	assert.Equal(t, ReasonHubClosed, waitReason(t, runAsync(context.Background(), s)))
	events, _ := sink.snapshot()
	require.Len(t, events, 1)
	assert.Equal(t, "last words", events[0].Text)
}

func TestSession_WriteErrorReleasesSubscriber(t *testing.T) {
	h := hub.New()
	sink := newFakeSink()
	sink.sendErr = errors.New("broken pipe")
	s := Open(h, "alice", sink)

	done := runAsync(context.Background(), s)
	h.Publish(domain.Event{Text: "hello"})

	assert.Equal(t, ReasonWriteError, waitReason(t, done))
	assert.Equal(t, 0, h.Subscribers())
}

func TestSession_CloseWithoutRun(t *testing.T) {
	h := hub.New()
	s := Open(h, "alice", newFakeSink())
	require.Equal(t, 1, h.Subscribers())

	s.Close()
	assert.Equal(t, 0, h.Subscribers())
}
