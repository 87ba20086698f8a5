package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/nats"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zhulik/pal"
)

// Server exposes /metrics and /health on Config.MetricsAddr.
type Server struct {
	Logger *slog.Logger
	Config *config.Config
	NATS   *nats.NATS

	server *http.Server
}

func (s *Server) Init(context.Context) error {
	s.Logger = s.Logger.With("component", "metrics.Server")

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.health)

	s.server = &http.Server{
		Handler:           mux,
		Addr:              s.Config.MetricsAddr,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		ReadTimeout:       time.Second,
		IdleTimeout:       time.Minute,
	}
	return nil
}

func (s *Server) Run(ctx context.Context) error {
	if s.Config.MetricsAddr == "" {
		s.Logger.Info("Metrics server disabled")
		return nil
	}

	s.Logger.Info("Starting metrics server", "addr", s.server.Addr)

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx) //nolint:errcheck
	})
	defer stop()

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) RunConfig() pal.RunConfig {
	return pal.RunConfig{
		Wait: false,
	}
}

// Handler is the server's router, available after Init.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.NATS != nil {
		if err := s.NATS.HealthCheck(r.Context()); err != nil {
			s.Logger.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}
