package handlers

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/middleware"
	"github.com/nfrund/chathub/internal/presence"
	"github.com/nfrund/chathub/internal/stream"
)

// ChatService is the subset of chat.Service the HTTP layer depends on.
type ChatService interface {
	PostMessage(ctx context.Context, identity, room, text string) error
	Heartbeat(ctx context.Context, identity, room string) error
	CreateRoom(ctx context.Context, identity, room string) error
	ListRooms(ctx context.Context) []string
	Online(ctx context.Context) []presence.Entry
	OpenStream(identity string, sink stream.Sink) *stream.Session
}

// ChatHandler serves the chat commands and the live event streams.
type ChatHandler struct {
	service ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(service ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// PostMessage handles POST /message.
func (h *ChatHandler) PostMessage(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req PostMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.service.PostMessage(c.Request().Context(), identity.Name, req.Room, req.Message); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// Heartbeat handles POST /heartbeat.
func (h *ChatHandler) Heartbeat(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req RoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.service.Heartbeat(c.Request().Context(), identity.Name, req.Room); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// ListRooms handles GET /rooms.
func (h *ChatHandler) ListRooms(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.ListRooms(c.Request().Context()))
}

// CreateRoom handles POST /rooms.
func (h *ChatHandler) CreateRoom(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var req RoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.service.CreateRoom(c.Request().Context(), identity.Name, req.Room); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusOK)
}

// Events handles GET /events as a Server-Sent Events stream. It returns when
// the client goes away or the stream ends.
func (h *ChatHandler) Events(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	sink, err := stream.NewSSESink(c.Response())
	if err != nil {
		return domain.Internal("Streaming unsupported", err)
	}

	session := h.service.OpenStream(identity.Name, sink)
	reason := session.Run(c.Request().Context())
	middleware.FromContext(c.Request().Context()).Debug("Event stream ended", "reason", reason)
	return nil
}

// WebSocket handles GET /ws. Frames carry the same JSON events as /events.
// Inbound frames are discarded.
func (h *ChatHandler) WebSocket(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return err
	}

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		// Accept has already written the failure response.
		middleware.FromContext(c.Request().Context()).Warn("WebSocket upgrade failed", "error", err)
		return nil
	}

	ctx := conn.CloseRead(c.Request().Context())
	session := h.service.OpenStream(identity.Name, stream.NewWebSocketSink(conn))
	reason := session.Run(ctx)

	status := websocket.StatusNormalClosure
	if reason == stream.ReasonWriteError {
		status = websocket.StatusInternalError
	}
	conn.Close(status, string(reason))
	return nil
}

func requireIdentity(c echo.Context) (domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return domain.Identity{}, domain.Unauthorized("User not authenticated")
	}
	return identity, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		middleware.FromContext(c.Request().Context()).Warn("Failed to bind request", "error", err)
		return domain.BadRequest("Invalid request format.")
	}
	if err := c.Validate(req); err != nil {
		return domain.BadRequest(validationMessage(err))
	}
	return nil
}
