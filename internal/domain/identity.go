package domain

import (
	"context"
	"time"
)

// Identity is the authenticated principal behind a request. Name is the
// display name used for presence tracking and as the author of events.
type Identity struct {
	Name      string
	UserID    int64
	FullName  string
	ExpiresAt time.Time
}

// Authenticator verifies an opaque bearer token. Any returned error is treated
// as an authorization failure.
type Authenticator interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
