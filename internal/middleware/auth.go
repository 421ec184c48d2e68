package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/chathub/internal/domain"
)

// IdentityContextKey is the echo context key holding the authenticated
// domain.Identity.
const IdentityContextKey = "identity"

const bearerPrefix = "Bearer "

type authConfig struct {
	allowQueryToken bool
}

// AuthOption configures the Auth middleware.
type AuthOption func(*authConfig)

// AllowQueryToken also accepts the token in a "token" query parameter. Browser
// EventSource and WebSocket clients cannot set headers.
func AllowQueryToken() AuthOption {
	return func(c *authConfig) {
		c.allowQueryToken = true
	}
}

// Auth verifies the bearer token on every request and stores the identity in
// the context. Failures are returned as domain Unauthorized errors and nothing
// downstream runs.
func Auth(authn domain.Authenticator, opts ...AuthOption) echo.MiddlewareFunc {
	var cfg authConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := extractToken(c, cfg)
			if err != nil {
				return err
			}

			identity, err := authn.Verify(c.Request().Context(), token)
			if err != nil {
				FromContext(c.Request().Context()).Debug("Token rejected", "error", err)
				return domain.Unauthorized("Invalid or expired token")
			}

			c.Set(IdentityContextKey, identity)
			ctx := c.Request().Context()
			c.SetRequest(c.Request().WithContext(WithLogger(ctx, FromContext(ctx).With("user", identity.Name))))
			return next(c)
		}
	}
}

func extractToken(c echo.Context, cfg authConfig) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		if cfg.allowQueryToken {
			if token := c.QueryParam("token"); token != "" {
				return token, nil
			}
		}
		return "", domain.Unauthorized("Missing Authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", domain.Unauthorized("Invalid token scheme")
	}
	return strings.TrimPrefix(header, bearerPrefix), nil
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	identity, ok := c.Get(IdentityContextKey).(domain.Identity)
	return identity, ok
}
