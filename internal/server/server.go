package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nfrund/chathub/internal/activity"
	"github.com/nfrund/chathub/internal/chat"
	"github.com/nfrund/chathub/internal/config"
	"github.com/nfrund/chathub/internal/domain"
	"github.com/nfrund/chathub/internal/handlers"
	"github.com/nfrund/chathub/internal/hub"
	appmiddleware "github.com/nfrund/chathub/internal/middleware"
)

// Dependencies holds everything the HTTP server needs. Registry and Clock
// are optional.
type Dependencies struct {
	Config        config.Provider
	Authenticator domain.Authenticator
	Chat          *chat.Service
	Hub           *hub.Hub
	Activity      *activity.Subscriber
	Registry      *prometheus.Registry
	Clock         clockwork.Clock
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	authn           domain.Authenticator
	registry        *prometheus.Registry
	chatHandler     *handlers.ChatHandler
	presenceHandler *handlers.PresenceHandler
	hub             *hub.Hub
	logger          *slog.Logger
}

// New creates a new Server instance with routes registered.
func New(deps Dependencies) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Authenticator == nil {
		return nil, errors.New("server: authenticator is required")
	}
	if deps.Chat == nil || deps.Hub == nil {
		return nil, errors.New("server: chat service and hub are required")
	}
	if deps.Registry == nil {
		deps.Registry = prometheus.NewRegistry()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger)
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "chathub",
		Registerer: deps.Registry,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	setupErrorHandling(e)

	s := &Server{
		E:               e,
		Cfg:             deps.Config,
		authn:           deps.Authenticator,
		registry:        deps.Registry,
		chatHandler:     handlers.NewChatHandler(deps.Chat),
		presenceHandler: handlers.NewPresenceHandler(deps.Chat, deps.Hub, deps.Activity, deps.Clock),
		hub:             deps.Hub,
		logger:          slog.Default().With("service", "server"),
	}
	s.RegisterRoutes()
	return s, nil
}

// setupErrorHandling installs an error handler that writes domain errors as
// {"code","message"} and logs anything unexpected with a stack trace.
func setupErrorHandling(e *echo.Echo) {
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		logger := appmiddleware.FromContext(c.Request().Context())

		var derr *domain.Error
		var herr *echo.HTTPError
		switch {
		case errors.As(err, &derr):
			if derr.HTTPStatus() >= http.StatusInternalServerError {
				logger.Error("Internal Server Error", "error", err)
			}
			writeError(c, derr.HTTPStatus(), handlers.ErrorResponse{Code: derr.Code(), Message: derr.Message})
		case errors.As(err, &herr):
			writeError(c, herr.Code, handlers.ErrorResponse{
				Code:    codeForStatus(herr.Code),
				Message: fmt.Sprint(herr.Message),
			})
		default:
			logger.Error("Internal Server Error (Unhandled)",
				"error", err,
				"stack_trace", string(debug.Stack()),
			)
			writeError(c, http.StatusInternalServerError, handlers.ErrorResponse{
				Code:    "internal",
				Message: "Internal server error",
			})
		}
	}
}

func writeError(c echo.Context, status int, body handlers.ErrorResponse) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		slog.Error("Failed to write error response", "error", err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= http.StatusInternalServerError {
			return "internal"
		}
		return "error"
	}
}
