package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Start serves HTTP on the configured port until ctx is cancelled, then shuts
// down gracefully within the configured timeout. A bind failure is returned
// immediately.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.Cfg.GetPort())
	if err != nil {
		return fmt.Errorf("server: listen on port %s: %w", s.Cfg.GetPort(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.E.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.E.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	return s.shutdown()
}
