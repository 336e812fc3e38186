// Package metrics implements the daemon's metrics and health HTTP server.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sitebridge.dev/phasebridge/internal/logging"
)

// Server exposes /metrics (Prometheus) and /healthz on one listener,
// separate from the edge-event ingestion adapter's listener.
type Server struct {
	addr   string
	path   string
	server *http.Server
}

// NewServer creates a metrics server bound to addr. path defaults to
// "/metrics" when empty.
func NewServer(addr, path string) *Server {
	if path == "" {
		path = "/metrics"
	}
	return &Server{
		addr: addr,
		path: path,
	}
}

// Start starts the metrics HTTP server in the background. It returns once
// the listener is configured; a failed ListenAndServe is logged, not
// returned, since it happens asynchronously after Start returns.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log := logging.L().WithField("component", "metrics_server")
	log.WithField("addr", s.addr).WithField("path", s.path).Info("starting metrics server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("metrics server error")
		}
	}()

	return nil
}

// Stop gracefully stops the metrics server, waiting up to 5s for in-flight
// requests to drain.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log := logging.L().WithField("component", "metrics_server")
	log.Info("stopping metrics server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	log.Info("metrics server stopped")
	return nil
}
