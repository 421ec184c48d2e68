package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"

	"github.com/nfrund/chathub/internal/domain"
)

var (
	ErrMissingSecret = errors.New("auth: token secret is empty")
	ErrInvalidToken  = errors.New("auth: invalid token")
)

// Claims is the token payload issued by the user service.
type Claims struct {
	UserID   int64  `json:"user_id"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 tokens signed with a shared secret.
type JWTAuthenticator struct {
	secret []byte
	clock  clockwork.Clock
}

// NewJWTAuthenticator returns an authenticator for secret. clock may be nil.
func NewJWTAuthenticator(secret string, clock clockwork.Clock) (*JWTAuthenticator, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JWTAuthenticator{secret: []byte(secret), clock: clock}, nil
}

var _ domain.Authenticator = (*JWTAuthenticator)(nil)

// Verify parses and validates token. Every failure wraps ErrInvalidToken.
func (a *JWTAuthenticator) Verify(_ context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Username == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing username", ErrInvalidToken)
	}

	return domain.Identity{
		Name:      claims.Username,
		UserID:    claims.UserID,
		FullName:  claims.FullName,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Issue signs a token for identity valid for ttl. Production tokens come from
// the user service; this is used by the CLI and tests.
func (a *JWTAuthenticator) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID:   identity.UserID,
		FullName: identity.FullName,
		Username: identity.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(a.clock.Now().Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
