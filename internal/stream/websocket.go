package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"

	"github.com/nfrund/chathub/internal/domain"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketSink writes events as JSON text frames.
type WebSocketSink struct {
	conn *websocket.Conn
}

// NewWebSocketSink wraps an accepted connection. The caller keeps ownership of
// conn and must close it.
func NewWebSocketSink(conn *websocket.Conn) *WebSocketSink {
	return &WebSocketSink{conn: conn}
}

func (s *WebSocketSink) Send(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("websocket: marshal event: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return s.conn.Write(ctx, websocket.MessageText, data)
}

// KeepAlive sends a ping and waits for the pong. A reader must be running on
// the connection, see websocket.Conn.CloseRead.
func (s *WebSocketSink) KeepAlive(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return s.conn.Ping(ctx)
}

func (s *WebSocketSink) Transport() string { return "websocket" }
