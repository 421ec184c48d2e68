package pubsub

import (
	"context"
)

// Message is the envelope carried by the in-process event bus.
type Message struct {
	// Topic names the stream the message belongs to (e.g. "chat.events").
	Topic string
	// Author is the identity that caused the message, empty for system events.
	Author string
	// Payload is the JSON encoded body.
	Payload []byte
	// Metadata carries optional key-value context such as a request ID.
	Metadata map[string]string
}

// Handler processes one received message.
type Handler func(ctx context.Context, msg Message) error

// Publisher sends messages to the bus.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber receives messages from the bus.
type Subscriber interface {
	// Subscribe registers handler for topic. Delivery runs in the background
	// until ctx is cancelled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
