package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/nfrund/chathub/internal/domain"
)

// SSESink writes events as a text/event-stream.
type SSESink struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// NewSSESink writes the stream headers and flushes them so the client sees the
// connection as open before the first event.
func NewSSESink(w http.ResponseWriter) (*SSESink, error) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	s := &SSESink{w: w, rc: http.NewResponseController(w)}
	if err := s.rc.Flush(); err != nil {
		return nil, fmt.Errorf("sse: response cannot be flushed: %w", err)
	}
	return s, nil
}

func (s *SSESink) Send(_ context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}

// KeepAlive writes an SSE comment line, which clients ignore.
func (s *SSESink) KeepAlive(context.Context) error {
	if _, err := fmt.Fprint(s.w, ":\n\n"); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s *SSESink) Transport() string { return "sse" }
