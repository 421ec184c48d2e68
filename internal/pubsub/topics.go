package pubsub

import "github.com/nfrund/chathub/internal/domain"

// TopicChatEvents mirrors every event published on the broadcast hub.
var TopicChatEvents = NewTopic[domain.Event]("chat.events")
