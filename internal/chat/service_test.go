package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/presence"
	"github.com/nfrund/chathub/internal/pubsub"
	"github.com/nfrund/chathub/internal/rooms"
)

type recordingBus struct {
	mu       sync.Mutex
	messages []pubsub.Message
}

func (b *recordingBus) Publish(_ context.Context, msg pubsub.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages)
}

type fixture struct {
	svc      *Service
	hub      *hub.Hub
	presence *presence.Registry
	rooms    *rooms.Registry
	clock    *clockwork.FakeClock
	bus      *recordingBus
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	h := hub.New()
	t.Cleanup(h.Close)
	p := presence.NewRegistry(clock)
	r := rooms.NewRegistry(nil)
	bus := &recordingBus{}
	return &fixture{
		svc:      NewService(h, p, r, WithClock(clock), WithBus(bus)),
		hub:      h,
		presence: p,
		rooms:    r,
		clock:    clock,
		bus:      bus,
	}
}

func recv(t *testing.T, s *hub.Subscriber) domain.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := s.Recv(ctx)
	require.NoError(t, err)
	return ev
}

func assertNoEvent(t *testing.T, s *hub.Subscriber) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPostMessage_FirstPostEmitsJoinThenChat(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe()
	defer sub.Close()

	require.NoError(t, f.svc.PostMessage(context.Background(), "alice", "lobby", "hello"))

	join := recv(t, sub)
	assert.Equal(t, domain.KindJoin, join.Kind)
	assert.Equal(t, "alice joined the room", join.Text)
	assert.Equal(t, "lobby", join.Room)
	assert.Equal(t, "alice", join.Author)
	assert.Equal(t, f.clock.Now().Unix(), join.Timestamp)

	chat := recv(t, sub)
	assert.Equal(t, domain.KindChat, chat.Kind)
	assert.Equal(t, "hello", chat.Text)

	require.NoError(t, f.svc.PostMessage(context.Background(), "alice", "lobby", "again"))
	assert.Equal(t, "again", recv(t, sub).Text, "no second join")
	assert.Equal(t, 3, f.bus.count(), "every event is mirrored to the bus")
}

func TestPostMessage_ConcurrentFirstPostsKeepJoinFirst(t *testing.T) {
	const identities = 500
	clock := clockwork.NewFakeClock()
	h := hub.New(hub.WithCapacity(4 * identities))
	t.Cleanup(h.Close)
	svc := NewService(h, presence.NewRegistry(clock), rooms.NewRegistry(nil), WithClock(clock))

	sub := h.Subscribe()
	defer sub.Close()

	var wg sync.WaitGroup
	for i := 0; i < identities; i++ {
		id := fmt.Sprintf("user-%d", i)
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func(text string) {
				defer wg.Done()
				assert.NoError(t, svc.PostMessage(context.Background(), id, "lobby", text))
			}(fmt.Sprintf("msg-%d", j))
		}
	}
	wg.Wait()

	joined := make(map[string]bool)
	for n := 0; n < 3*identities; n++ {
		ev := recv(t, sub)
		switch ev.Kind {
		case domain.KindJoin:
			assert.False(t, joined[ev.Author], "second join for %s", ev.Author)
			joined[ev.Author] = true
		case domain.KindChat:
			require.True(t, joined[ev.Author], "chat from %s delivered before its join", ev.Author)
		}
	}
	assert.Len(t, joined, identities)
	assertNoEvent(t, sub)
}

func TestPostMessage_LengthLimit(t *testing.T) {
	f := newFixture(t)

	err := f.svc.PostMessage(context.Background(), "alice", "lobby", strings.Repeat("a", 501))
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	_, ok := f.presence.Get("alice")
	assert.False(t, ok, "rejected posts do not record presence")

	assert.NoError(t, f.svc.PostMessage(context.Background(), "alice", "lobby", strings.Repeat("a", 500)))
	// Limit is in characters, not bytes.
	assert.NoError(t, f.svc.PostMessage(context.Background(), "alice", "lobby", strings.Repeat("é", 500)))
}

func TestPostMessage_RequiresRoom(t *testing.T) {
	f := newFixture(t)
	err := f.svc.PostMessage(context.Background(), "alice", "", "hi")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestPostMessage_UnregisteredRoomIsAccepted(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.PostMessage(context.Background(), "alice", "nowhere", "hi"))
	assert.False(t, f.rooms.Contains("nowhere"), "posting never creates rooms")
}

func TestHeartbeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Heartbeat(ctx, "bob", "lobby")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.presence.Len())

	require.NoError(t, f.svc.PostMessage(ctx, "bob", "lobby", "hi"))
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.svc.Heartbeat(ctx, "bob", "dev"))

	e, ok := f.presence.Get("bob")
	require.True(t, ok)
	assert.Equal(t, "dev", e.CurrentRoom)
	assert.Equal(t, f.clock.Now(), e.LastSeen)
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.hub.Subscribe()
	defer sub.Close()

	require.NoError(t, f.svc.CreateRoom(ctx, "alice", "general"))
	assert.Equal(t, []string{"general"}, f.svc.ListRooms(ctx))

	ev := recv(t, sub)
	assert.Equal(t, domain.KindSystem, ev.Kind)
	assert.Equal(t, "system", ev.Room)
	assert.Equal(t, "System", ev.Author)
	assert.Equal(t, "New room created: general", ev.Text)

	err := f.svc.CreateRoom(ctx, "bob", "general")
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, []string{"general"}, f.svc.ListRooms(ctx))
	assertNoEvent(t, sub)

	assert.ErrorIs(t, f.svc.CreateRoom(ctx, "bob", ""), domain.ErrBadRequest)
	assert.ErrorIs(t, f.svc.CreateRoom(ctx, "bob", strings.Repeat("r", 101)), domain.ErrBadRequest)
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.PostMessage(ctx, "carol", "lobby", "bye soon"))

	sub := f.hub.Subscribe()
	defer sub.Close()

	assert.True(t, f.svc.Disconnect(ctx, "carol", "logout"))
	ev := recv(t, sub)
	assert.Equal(t, "User carol disconnected: logout", ev.Text)
	assert.Equal(t, domain.KindSystem, ev.Kind)

	assert.False(t, f.svc.Disconnect(ctx, "carol", "logout"))
	assertNoEvent(t, sub)
}

func TestPublish_StampsDefaults(t *testing.T) {
	f := newFixture(t)
	sub := f.hub.Subscribe()
	defer sub.Close()

	f.svc.Publish(domain.Event{Room: "lobby", Text: "plain", Author: "dave"})

	ev := recv(t, sub)
	assert.Equal(t, domain.KindChat, ev.Kind)
	assert.Equal(t, f.clock.Now().Unix(), ev.Timestamp)
}

// alice posts once and goes quiet; the sweep evicts her and an early
// subscriber sees exactly join, chat, leave.
func TestInactivityScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sweeper := presence.NewSweeper(f.presence, f.svc, f.clock)

	sub := f.hub.Subscribe()
	defer sub.Close()

	require.NoError(t, f.svc.PostMessage(ctx, "alice", "lobby", "hi all"))

	f.clock.Advance(30 * time.Second)
	assert.Empty(t, sweeper.Sweep(), "30s of silence is within the threshold")

	f.clock.Advance(time.Second)
	assert.Equal(t, []string{"alice"}, sweeper.Sweep())

	events := []domain.Event{recv(t, sub), recv(t, sub), recv(t, sub)}
	assertNoEvent(t, sub)

	assert.Equal(t, domain.KindJoin, events[0].Kind)
	assert.Equal(t, domain.KindChat, events[1].Kind)
	assert.Equal(t, domain.KindSystem, events[2].Kind)
	assert.Equal(t, "User alice disconnected: inactivity", events[2].Text)
	assert.Equal(t, 0, f.presence.Len())
	assert.Equal(t, 3, f.bus.count())
}

func TestOpenStream_DeliversServiceEvents(t *testing.T) {
	f := newFixture(t)
	sink := &captureSink{got: make(chan domain.Event, 4)}

	session := f.svc.OpenStream("alice", sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		session.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.svc.CreateRoom(context.Background(), "alice", "dev"))
	select {
	case ev := <-sink.got:
		assert.Equal(t, "New room created: dev", ev.Text)
	case <-time.After(time.Second):
		t.Fatal("stream did not deliver event")
	}

	cancel()
	<-done
	assert.Equal(t, 0, f.hub.Subscribers())
}

type captureSink struct {
	got chan domain.Event
}

func (c *captureSink) Send(_ context.Context, ev domain.Event) error {
	c.got <- ev
	return nil
}

func (c *captureSink) KeepAlive(context.Context) error { return nil }

func (c *captureSink) Transport() string { return "capture" }
