package domain

import (
	"encoding/json"
	"fmt"
)

// EventKind classifies a published event.
type EventKind string

const (
	KindJoin   EventKind = "userJoined"
	KindLeave  EventKind = "userLeft"
	KindChat   EventKind = "chat"
	KindSystem EventKind = "system"
)

// SystemRoom and SystemAuthor label events produced by the server itself.
const (
	SystemRoom   = "system"
	SystemAuthor = "System"
)

// Valid reports whether k is one of the known kinds.
func (k EventKind) Valid() bool {
	switch k {
	case KindJoin, KindLeave, KindChat, KindSystem:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown kinds so a malformed payload never reaches a client.
func (k *EventKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	kind := EventKind(s)
	if !kind.Valid() {
		return fmt.Errorf("unknown event kind %q", s)
	}
	*k = kind
	return nil
}

// Event is the unit carried by the broadcast hub. It is passed by value and
// never mutated after publication.
type Event struct {
	Room      string    `json:"room"`
	Text      string    `json:"message"`
	Timestamp int64     `json:"timestamp"`
	Kind      EventKind `json:"messageType,omitempty"`
	Author    string    `json:"username"`
}

// JoinText, LeaveText and RoomCreatedText build the human readable part of
// synthetic events.
func JoinText(identity string) string {
	return identity + " joined the room"
}

func LeaveText(identity, reason string) string {
	return fmt.Sprintf("User %s disconnected: %s", identity, reason)
}

func RoomCreatedText(room string) string {
	return "New room created: " + room
}
