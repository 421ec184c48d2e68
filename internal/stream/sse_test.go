package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nfrund/chathub/internal/domain"
)

func TestSSESink_WritesFramesAndComments(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := NewSSESink(rec)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))

	err = sink.Send(context.Background(), domain.Event{
		Room:      "lobby",
		Text:      "hi",
		Timestamp: 1700000000,
		Kind:      domain.KindChat,
		Author:    "alice",
	})
	require.NoError(t, err)
	require.NoError(t, sink.KeepAlive(context.Background()))

	want := `data: {"room":"lobby","message":"hi","timestamp":1700000000,"messageType":"chat","username":"alice"}` + "\n\n" + ":\n\n"
	assert.Equal(t, want, rec.Body.String())
	assert.True(t, rec.Flushed)
	assert.Equal(t, "sse", sink.Transport())
}
