package server

import (
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/chathub/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	auth := middleware.Auth(s.authn)
	streamAuth := middleware.Auth(s.authn, middleware.AllowQueryToken())
	roomLimiter := middleware.RateLimiter(s.Cfg.GetRoomCreateRate())

	s.E.POST("/message", s.chatHandler.PostMessage, auth)
	s.E.POST("/heartbeat", s.chatHandler.Heartbeat, auth)
	s.E.GET("/rooms", s.chatHandler.ListRooms, auth)
	s.E.POST("/rooms", s.chatHandler.CreateRoom, roomLimiter, auth)
	s.E.GET("/presence", s.presenceHandler.GetPresence, auth)
	s.E.GET("/stats", s.presenceHandler.GetStats, auth)

	s.E.GET("/events", s.chatHandler.Events, streamAuth)
	s.E.GET("/ws", s.chatHandler.WebSocket, streamAuth)

	s.E.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":      "ok",
			"subscribers": s.hub.Subscribers(),
		})
	})
	s.E.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: s.registry,
	}))
}
