package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sparkline-service/internal/infrastructure/logging"
)

// Server encapsulates HTTP server configuration
type Server struct {
	httpServer *http.Server
	port       int
}

// NewServer creates a new server instance
func NewServer(handler http.Handler, port int) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		port: port,
	}
}

// Start blocks serving HTTP. A graceful Stop is not reported as an error.
func (s *Server) Start() error {
	ctx := context.Background()

	logging.Info(ctx, "HTTP server starting", logging.Fields{
		"port": s.port,
	})

	logging.Info(ctx, "Available endpoints", logging.Fields{
		"endpoints": []string{
			fmt.Sprintf("GET    http://localhost:%d/health", s.port),
			fmt.Sprintf("GET    http://localhost:%d/ready", s.port),
			fmt.Sprintf("GET    http://localhost:%d/api/v1/sparklines/perp/BTC?live=true", s.port),
			fmt.Sprintf("GET    http://localhost:%d/api/v1/sparklines?market=perp&symbols=BTC,ETH", s.port),
			fmt.Sprintf("POST   http://localhost:%d/api/v1/sparklines/prefetch", s.port),
			fmt.Sprintf("POST   http://localhost:%d/api/v1/sparklines/hydrate", s.port),
			fmt.Sprintf("PUT    http://localhost:%d/api/v1/visibility", s.port),
			fmt.Sprintf("POST   http://localhost:%d/api/v1/lifecycle/{foreground|background|refresh}", s.port),
			fmt.Sprintf("GET    http://localhost:%d/api/v1/status", s.port),
		},
	})

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	logging.Info(ctx, "Stopping HTTP server gracefully", logging.Fields{
		"port": s.port,
	})

	return s.httpServer.Shutdown(ctx)
}

// GetPort returns the configured port
func (s *Server) GetPort() int {
	return s.port
}
