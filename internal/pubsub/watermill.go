package pubsub

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel/trace"
)

// WatermillBridge implements Publisher and Subscriber on top of watermill's
// in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	tracer trace.Tracer
	logger *slog.Logger
}

const (
	// Metadata keys carrying Message fields through a watermill message.
	metaKeyAuthor = "author"
	metaKeyTopic  = "topic"

	defaultBufferSize = 256
)

// BridgeOption configures a WatermillBridge.
type BridgeOption func(*bridgeOptions)

type bridgeOptions struct {
	tracer     trace.Tracer
	bufferSize int64
	debug      bool
}

// WithTracer wraps publishing and handling in OpenTelemetry spans.
func WithTracer(t trace.Tracer) BridgeOption {
	return func(o *bridgeOptions) {
		o.tracer = t
	}
}

// WithBufferSize sets the per-subscription output buffer of the GoChannel.
func WithBufferSize(n int64) BridgeOption {
	return func(o *bridgeOptions) {
		o.bufferSize = n
	}
}

// WithDebugLogging turns on watermill's own debug output.
func WithDebugLogging(debug bool) BridgeOption {
	return func(o *bridgeOptions) {
		o.debug = debug
	}
}

// NewWatermillBridge creates an in-memory bus.
func NewWatermillBridge(opts ...BridgeOption) *WatermillBridge {
	o := bridgeOptions{bufferSize: defaultBufferSize}
	for _, opt := range opts {
		opt(&o)
	}

	wmLogger := watermill.NewStdLogger(o.debug, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: o.bufferSize},
		wmLogger,
	)

	b := &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		tracer: o.tracer,
		logger: slog.Default().With("service", "bus"),
	}
	if o.tracer != nil {
		b.pub = NewPublisherTracingMiddleware(goChannel, o.tracer)
	}
	return b
}

// NewWatermillBridgeWithTracer is shorthand for NewWatermillBridge(WithTracer(t)).
func NewWatermillBridgeWithTracer(t trace.Tracer) *WatermillBridge {
	return NewWatermillBridge(WithTracer(t))
}

func mapToWatermillMessage(ctx context.Context, msg Message) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), msg.Payload)
	wmMsg.SetContext(ctx)

	for k, v := range msg.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	wmMsg.Metadata.Set(metaKeyAuthor, msg.Author)
	wmMsg.Metadata.Set(metaKeyTopic, msg.Topic)
	return wmMsg
}

func mapToPubSubMessage(wmMsg *message.Message) Message {
	metadata := make(map[string]string, len(wmMsg.Metadata))
	for k, v := range wmMsg.Metadata {
		if k != metaKeyAuthor && k != metaKeyTopic {
			metadata[k] = v
		}
	}
	return Message{
		Topic:    wmMsg.Metadata.Get(metaKeyTopic),
		Author:   wmMsg.Metadata.Get(metaKeyAuthor),
		Payload:  wmMsg.Payload,
		Metadata: metadata,
	}
}

// Publish implements Publisher. The message topic is used as the watermill
// topic.
func (wb *WatermillBridge) Publish(ctx context.Context, msg Message) error {
	return wb.pub.Publish(msg.Topic, mapToWatermillMessage(ctx, msg))
}

// Subscribe implements Subscriber. It returns once the subscription is live;
// messages are handled on a background goroutine.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	var process message.HandlerFunc = func(wmMsg *message.Message) ([]*message.Message, error) {
		return nil, handler(wmMsg.Context(), mapToPubSubMessage(wmMsg))
	}
	if wb.tracer != nil {
		process = TracingMiddleware(wb.tracer)(process)
	}

	go func() {
		for wmMsg := range messages {
			if _, err := process(wmMsg); err != nil {
				// GoChannel resends nacked messages, so a failing handler
				// would spin. Log and ack instead.
				wb.logger.Error("Failed to handle message", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
			}
			wmMsg.Ack()
		}
		wb.logger.Debug("Subscription message loop ended", "topic", topic)
	}()
	return nil
}

// Close shuts the GoChannel down and ends every subscription loop.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
