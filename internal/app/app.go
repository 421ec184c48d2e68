// Package app wires the process together with a samber/do injector.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/samber/do/v2"
	"go.opentelemetry.io/otel/trace"

	"github.com/nfrund/chathub/internal/activity"
	"github.com/nfrund/chathub/internal/auth"
	"github.com/nfrund/chathub/internal/chat"
	"github.com/nfrund/chathub/internal/config"
	"github.com/nfrund/chathub/internal/hub"
	"github.com/nfrund/chathub/internal/metrics"
	"github.com/nfrund/chathub/internal/presence"
	"github.com/nfrund/chathub/internal/pubsub"
	"github.com/nfrund/chathub/internal/rooms"
	"github.com/nfrund/chathub/internal/server"
)

// Version is set at build time using -ldflags.
var Version = "dev"

// Tracing is the event bus tracer together with its exporter shutdown.
type Tracing struct {
	Tracer   trace.Tracer
	Shutdown func()
}

// App owns the injector holding every long-lived component.
type App struct {
	injector *do.RootScope
	logger   *slog.Logger
}

// New registers all providers. Nothing is constructed until Run or Invoke.
func New(cfg *config.Config, clock clockwork.Clock) *App {
	i := do.New()

	do.ProvideValue(i, cfg)
	do.ProvideValue(i, clock)
	do.Provide(i, provideRegistry)
	do.Provide(i, provideMetrics)
	do.Provide(i, provideTracing)
	do.Provide(i, provideBus)
	do.Provide(i, provideHub)
	do.Provide(i, providePresence)
	do.Provide(i, provideRooms)
	do.Provide(i, provideChat)
	do.Provide(i, provideSweeper)
	do.Provide(i, provideActivity)
	do.Provide(i, provideAuthenticator)
	do.Provide(i, provideServer)

	return &App{injector: i, logger: slog.Default().With("service", "app")}
}

// Invoke resolves a component from the app's injector.
func Invoke[T any](a *App) (T, error) {
	return do.Invoke[T](a.injector)
}

// Run starts background workers and serves HTTP until ctx is cancelled. A
// failure to bind the port is returned.
func (a *App) Run(ctx context.Context) error {
	srv, err := do.Invoke[*server.Server](a.injector)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}
	sweeper := do.MustInvoke[*presence.Sweeper](a.injector)
	act := do.MustInvoke[*activity.Subscriber](a.injector)
	bus := do.MustInvoke[*pubsub.WatermillBridge](a.injector)
	tracing := do.MustInvoke[*Tracing](a.injector)

	defer func() {
		if err := bus.Close(); err != nil {
			a.logger.Error("Failed to close event bus", "error", err)
		}
		tracing.Shutdown()
		a.injector.Shutdown()
	}()

	if err := act.Start(ctx); err != nil {
		return fmt.Errorf("start activity subscriber: %w", err)
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	a.logger.Info("Starting chathub", "version", Version)
	return srv.Start(ctx)
}

func provideRegistry(i do.Injector) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, nil
}

func provideMetrics(i do.Injector) (*metrics.Metrics, error) {
	return metrics.New(do.MustInvoke[*prometheus.Registry](i)), nil
}

func provideTracing(i do.Injector) (*Tracing, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tracer, shutdown, err := pubsub.SetupOTel(context.Background(), pubsub.TracingConfig{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.TracingServiceName,
		ServiceVersion: Version,
		ZipkinURL:      cfg.TracingZipkinURL,
	})
	if err != nil {
		return nil, err
	}
	return &Tracing{Tracer: tracer, Shutdown: shutdown}, nil
}

func provideBus(i do.Injector) (*pubsub.WatermillBridge, error) {
	cfg := do.MustInvoke[*config.Config](i)
	opts := []pubsub.BridgeOption{pubsub.WithDebugLogging(cfg.LogLevel == "debug")}
	if cfg.TracingEnabled {
		opts = append(opts, pubsub.WithTracer(do.MustInvoke[*Tracing](i).Tracer))
	}
	return pubsub.NewWatermillBridge(opts...), nil
}

func provideHub(i do.Injector) (*hub.Hub, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return hub.New(
		hub.WithCapacity(cfg.GetHubCapacity()),
		hub.WithMetrics(do.MustInvoke[*metrics.Metrics](i)),
	), nil
}

func providePresence(i do.Injector) (*presence.Registry, error) {
	return presence.NewRegistry(
		do.MustInvoke[clockwork.Clock](i),
		presence.WithMetrics(do.MustInvoke[*metrics.Metrics](i)),
	), nil
}

func provideRooms(i do.Injector) (*rooms.Registry, error) {
	return rooms.NewRegistry(do.MustInvoke[*metrics.Metrics](i)), nil
}

func provideChat(i do.Injector) (*chat.Service, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return chat.NewService(
		do.MustInvoke[*hub.Hub](i),
		do.MustInvoke[*presence.Registry](i),
		do.MustInvoke[*rooms.Registry](i),
		chat.WithBus(do.MustInvoke[*pubsub.WatermillBridge](i)),
		chat.WithClock(do.MustInvoke[clockwork.Clock](i)),
		chat.WithMaxMessageLength(cfg.GetMaxMessageLength()),
		chat.WithKeepAlive(cfg.GetKeepAliveInterval()),
		chat.WithMetrics(do.MustInvoke[*metrics.Metrics](i)),
	), nil
}

func provideSweeper(i do.Injector) (*presence.Sweeper, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return presence.NewSweeper(
		do.MustInvoke[*presence.Registry](i),
		do.MustInvoke[*chat.Service](i),
		do.MustInvoke[clockwork.Clock](i),
		presence.WithInterval(cfg.GetSweepInterval()),
		presence.WithThreshold(cfg.GetInactiveThreshold()),
		presence.WithSweeperMetrics(do.MustInvoke[*metrics.Metrics](i)),
	), nil
}

func provideActivity(i do.Injector) (*activity.Subscriber, error) {
	return activity.NewSubscriber(
		do.MustInvoke[*pubsub.WatermillBridge](i),
		do.MustInvoke[*rooms.Registry](i),
		do.MustInvoke[*metrics.Metrics](i),
	), nil
}

func provideAuthenticator(i do.Injector) (*auth.JWTAuthenticator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return auth.NewJWTAuthenticator(cfg.GetTokenSecret(), do.MustInvoke[clockwork.Clock](i))
}

func provideServer(i do.Injector) (*server.Server, error) {
	return server.New(server.Dependencies{
		Config:        do.MustInvoke[*config.Config](i),
		Authenticator: do.MustInvoke[*auth.JWTAuthenticator](i),
		Chat:          do.MustInvoke[*chat.Service](i),
		Hub:           do.MustInvoke[*hub.Hub](i),
		Activity:      do.MustInvoke[*activity.Subscriber](i),
		Registry:      do.MustInvoke[*prometheus.Registry](i),
		Clock:         do.MustInvoke[clockwork.Clock](i),
	})
}
