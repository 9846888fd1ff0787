package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
)

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// ServerService runs an HTTP server under a supervisor and shuts it down
// gracefully when the supervisor's context ends.
type ServerService struct {
	server          HTTPServer
	addr            string
	shutdownTimeout time.Duration
}

func NewServerService(server *http.Server, shutdownTimeout time.Duration) *ServerService {
	return newServerService(server, server.Addr, shutdownTimeout)
}

func newServerService(server HTTPServer, addr string, shutdownTimeout time.Duration) *ServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ServerService{server: server, addr: addr, shutdownTimeout: shutdownTimeout}
}

func (s *ServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", s.addr).Msg("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		logging.Info().Msg("HTTP server stopped")
		return ctx.Err()
	}
}

func (s *ServerService) String() string {
	return "http-server"
}
