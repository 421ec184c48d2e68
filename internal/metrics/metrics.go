package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the hub exposes. Collectors are registered
// against the registerer passed to New, so tests can use a private registry.
type Metrics struct {
	// Broadcast hub
	EventsPublished   prometheus.Counter
	EventsDropped     prometheus.Counter
	ActiveSubscribers prometheus.Gauge
	LaggedSubscribers prometheus.Counter

	// Stream sessions
	ActiveSessions  *prometheus.GaugeVec
	SessionsClosed  *prometheus.CounterVec
	KeepAlivesSent  prometheus.Counter
	EventsDelivered prometheus.Counter

	// Presence and rooms
	PresenceEntries prometheus.Gauge
	SweepEvictions  prometheus.Counter
	SweepDuration   prometheus.Histogram
	Rooms           prometheus.Gauge

	// Event bus consumers
	EventsByKind *prometheus.CounterVec
	EventsByRoom *prometheus.CounterVec
}

// New creates and registers all collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_events_published_total",
			Help: "Events written to the broadcast ring",
		}),
		EventsDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_events_dropped_total",
			Help: "Events published while no subscriber was attached",
		}),
		ActiveSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Name: "chathub_subscribers_active",
			Help: "Subscribers currently attached to the broadcast hub",
		}),
		LaggedSubscribers: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_subscribers_lagged_total",
			Help: "Subscribers detached because they fell behind the ring capacity",
		}),
		ActiveSessions: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chathub_stream_sessions_active",
			Help: "Open stream sessions by transport",
		}, []string{"transport"}),
		SessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chathub_stream_sessions_closed_total",
			Help: "Closed stream sessions by reason",
		}, []string{"reason"}),
		KeepAlivesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_stream_keepalives_total",
			Help: "Keep-alive signals written to stream sessions",
		}),
		EventsDelivered: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_stream_events_delivered_total",
			Help: "Events written to stream sessions",
		}),
		PresenceEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "chathub_presence_entries",
			Help: "Identities currently tracked by the presence registry",
		}),
		SweepEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "chathub_sweep_evictions_total",
			Help: "Identities evicted for inactivity",
		}),
		SweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "chathub_sweep_duration_seconds",
			Help:    "Time spent in one inactivity sweep",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Name: "chathub_rooms",
			Help: "Rooms known to the room registry",
		}),
		EventsByKind: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chathub_activity_events_total",
			Help: "Events observed on the event bus by kind",
		}, []string{"kind"}),
		EventsByRoom: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chathub_activity_room_events_total",
			Help: "Events observed on the event bus by room",
		}, []string{"room"}),
	}
}

// Discard returns collectors registered against a throwaway registry. It is
// the default for components constructed without explicit metrics.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}
