package testutils

import (
	"testing"
	"time"

	"github.com/nfrund/chathub/internal/domain"
)

// Issuer mints tokens; satisfied by *auth.JWTAuthenticator.
type Issuer interface {
	Issue(identity domain.Identity, ttl time.Duration) (string, error)
}

// TokenFor returns a one-hour token for name.
func TokenFor(t *testing.T, issuer Issuer, name string) string {
	t.Helper()
	token, err := issuer.Issue(domain.Identity{Name: name, UserID: 1}, time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token for %s: %v", name, err)
	}
	return token
}
