package server_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chathub/internal/auth"
	"github.com/nfrund/chathub/internal/chat"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/metrics"
	"github.com/nfrund/chathub/internal/presence"
	"github.com/nfrund/chathub/internal/rooms"
	"github.com/nfrund/chathub/internal/server"
	"github.com/nfrund/chathub/internal/testutils"
)

type testApp struct {
	srv      *server.Server
	ts       *httptest.Server
	hub      *hub.Hub
	presence *presence.Registry
	authn    *auth.JWTAuthenticator
}

// setupIntegrationTest builds a full server over real components and serves it
// on an httptest listener.
func setupIntegrationTest(t *testing.T) *testApp {
	t.Helper()

	cfg := testutils.ConfigForTests(t)
	cfg.ShutdownTimeout = time.Second
	cfg.RoomCreateRate = 3

	clock := clockwork.NewRealClock()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	h := hub.New(hub.WithCapacity(cfg.HubCapacity), hub.WithMetrics(m))
	t.Cleanup(h.Close)
	presenceRegistry := presence.NewRegistry(clock, presence.WithMetrics(m))
	svc := chat.NewService(h, presenceRegistry, rooms.NewRegistry(m),
		chat.WithClock(clock),
		chat.WithMetrics(m),
		chat.WithMaxMessageLength(cfg.MaxMessageLength),
		chat.WithKeepAlive(cfg.KeepAliveInterval),
	)

	authn, err := auth.NewJWTAuthenticator(cfg.TokenSecret, clock)
	require.NoError(t, err)

	srv, err := server.New(server.Dependencies{
		Config:        cfg,
		Authenticator: authn,
		Chat:          svc,
		Hub:           h,
		Registry:      reg,
		Clock:         clock,
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.E)
	t.Cleanup(ts.Close)

	return &testApp{srv: srv, ts: ts, hub: h, presence: presenceRegistry, authn: authn}
}

func (a *testApp) token(t *testing.T, name string) string {
	t.Helper()
	return testutils.TokenFor(t, a.authn, name)
}

func (a *testApp) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, a.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}
