package server

import (
	"context"
	"fmt"
)

// shutdown closes the hub first so open streams return, then drains HTTP
// connections within the configured timeout.
func (s *Server) shutdown() error {
	s.logger.Info("Shutting down HTTP server", "timeout", s.Cfg.GetShutdownTimeout())

	ctx, cancel := context.WithTimeout(context.Background(), s.Cfg.GetShutdownTimeout())
	defer cancel()

	s.hub.Close()
	if err := s.E.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
