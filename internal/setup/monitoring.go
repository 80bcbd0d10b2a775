package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robalyx/snowball/internal/setup/config"
	"go.uber.org/zap"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// monitoringServer serves health, metrics and optional pprof endpoints.
type monitoringServer struct {
	srv *http.Server
}

// NewMonitoringRouter builds the monitoring routes.
func NewMonitoringRouter(cfg *config.Monitoring, checks map[string]HealthCheck, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		for name, check := range checks {
			if err := check(req.Context()); err != nil {
				logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)

				return
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", promhttp.Handler())

	if cfg.EnablePprof {
		r.Mount("/debug", middleware.Profiler())
	}

	return r
}

// startMonitoringServer starts serving the monitoring routes in the background.
func startMonitoringServer(
	cfg *config.Monitoring, checks map[string]HealthCheck, logger *zap.Logger,
) (*monitoringServer, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMonitoringRouter(cfg, checks, logger),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	go func() {
		logger.Info("Starting monitoring server", zap.String("address", addr))

		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Monitoring server failed", zap.Error(err))
		}
	}()

	return &monitoringServer{srv: srv}, nil
}

func (m *monitoringServer) shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
