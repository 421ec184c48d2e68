package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Topic binds a topic name to its payload type.
type Topic[T any] struct {
	name string
}

// NewTopic defines a typed topic.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the topic name.
func (t Topic[T]) Name() string {
	return t.name
}

// Publish sends a typed payload. The compiler ensures payload matches T.
func Publish[T any](ctx context.Context, p Publisher, topic Topic[T], author string, payload T) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", topic.name, err)
	}
	return p.Publish(ctx, Message{
		Topic:   topic.name,
		Author:  author,
		Payload: data,
	})
}

// Subscribe decodes every message on topic into T before calling handler.
// Payloads that fail to decode are logged and skipped.
func Subscribe[T any](ctx context.Context, s Subscriber, topic Topic[T], handler func(ctx context.Context, payload T) error) error {
	return s.Subscribe(ctx, topic.name, func(ctx context.Context, msg Message) error {
		var payload T
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			slog.Default().Warn("Dropping undecodable message", "topic", topic.name, "error", err)
			return nil
		}
		return handler(ctx, payload)
	})
}
