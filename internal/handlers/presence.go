package handlers

import (
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/chathub/internal/activity"
)

// HubStats exposes the broadcast hub counters.
type HubStats interface {
	Subscribers() int
	Published() uint64
}

// PresenceHandler serves read-only views of who is online and what the hub
// has been doing.
type PresenceHandler struct {
	service  ChatService
	hub      HubStats
	activity *activity.Subscriber
	clock    clockwork.Clock
	started  time.Time
}

// NewPresenceHandler creates a new presence handler. activity may be nil when
// the event bus is not wired.
func NewPresenceHandler(service ChatService, hub HubStats, act *activity.Subscriber, clock clockwork.Clock) *PresenceHandler {
	return &PresenceHandler{
		service:  service,
		hub:      hub,
		activity: act,
		clock:    clock,
		started:  clock.Now(),
	}
}

// GetPresence returns the current online users as JSON.
func (h *PresenceHandler) GetPresence(c echo.Context) error {
	entries := h.service.Online(c.Request().Context())
	return c.JSON(http.StatusOK, NewPresenceResponse(entries))
}

// GetStats returns hub counters and the activity observed on the bus.
func (h *PresenceHandler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()
	resp := StatsResponse{
		Subscribers: h.hub.Subscribers(),
		Published:   h.hub.Published(),
		Online:      len(h.service.Online(ctx)),
		Rooms:       len(h.service.ListRooms(ctx)),
		Uptime:      formatUptime(h.clock.Since(h.started)),
	}
	if h.activity != nil {
		resp.Activity = h.activity.Snapshot()
	}
	return c.JSON(http.StatusOK, resp)
}
