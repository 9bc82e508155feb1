package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer is the lifecycle an *echo.Echo or *http.Server exposes.
type HTTPServer interface {
	Start(address string) error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server as a supervised service.
type HTTPService struct {
	server          HTTPServer
	address         string
	shutdownTimeout time.Duration
}

func NewHTTPService(server HTTPServer, address string, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{
		server:          server,
		address:         address,
		shutdownTimeout: shutdownTimeout,
	}
}

func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.Start(h.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()

		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return "http-server"
}

// Loop adapts a blocking Serve function into a named suture service.
type Loop struct {
	name  string
	serve func(ctx context.Context) error
}

func NewLoop(name string, serve func(ctx context.Context) error) *Loop {
	return &Loop{name: name, serve: serve}
}

func (l *Loop) Serve(ctx context.Context) error {
	return l.serve(ctx)
}

func (l *Loop) String() string {
	return l.name
}
