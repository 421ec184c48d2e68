package handlers

import (
	"time"

	"github.com/nfrund/chathub/internal/activity"
	"github.com/nfrund/chathub/internal/presence"
)

// ErrorResponse is the standard format for API error responses.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StatusResponse acknowledges a successful command.
type StatusResponse struct {
	Status string `json:"status"`
}

var statusOK = StatusResponse{Status: "ok"}

// PresenceEntry is the public view of a presence.Entry.
type PresenceEntry struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	LastSeen int64  `json:"lastSeen"`
}

// PresenceResponse lists online identities.
type PresenceResponse struct {
	OnlineUsers []PresenceEntry `json:"online_users"`
	Count       int             `json:"count"`
}

// NewPresenceResponse maps registry entries to the response DTO.
func NewPresenceResponse(entries []presence.Entry) PresenceResponse {
	users := make([]PresenceEntry, 0, len(entries))
	for _, e := range entries {
		users = append(users, PresenceEntry{
			Username: e.Identity,
			Room:     e.CurrentRoom,
			LastSeen: e.LastSeen.Unix(),
		})
	}
	return PresenceResponse{OnlineUsers: users, Count: len(users)}
}

// StatsResponse summarises hub and bus activity.
type StatsResponse struct {
	Subscribers int            `json:"subscribers"`
	Published   uint64         `json:"published"`
	Online      int            `json:"online"`
	Rooms       int            `json:"rooms"`
	Activity    activity.Stats `json:"activity"`
	Uptime      string         `json:"uptime"`
}

func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
