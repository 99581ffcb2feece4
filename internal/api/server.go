// Package api is the read-only status server: health, best solution,
// per-island progress over HTTP and websocket, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"nurseroute/internal/auth"
	"nurseroute/internal/config"
	"nurseroute/internal/metrics"
	"nurseroute/internal/model"
	"nurseroute/internal/report"
	"nurseroute/internal/store"
)

type Server struct {
	Store    store.Store
	Instance string
	History  *report.History
	Config   *config.Config

	hub      *Hub
	limiter  *rate.Limiter
	verifier *auth.Verifier
	log      *slog.Logger
	started  time.Time
}

// NewServer wires a status server for one run. It also implements
// report.Reporter so it can sit in the reporting fan-out.
func NewServer(st store.Store, instance string, cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	limit := rate.Inf
	if cfg.Server.BroadcastPerSec > 0 {
		limit = rate.Limit(cfg.Server.BroadcastPerSec)
	}
	s := &Server{
		Store:    st,
		Instance: instance,
		History:  &report.History{},
		Config:   cfg,
		hub:      NewHub(),
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.With("component", "api"),
		started:  time.Now(),
	}
	if cfg.Server.AuthSecret != "" {
		s.verifier = auth.NewVerifier(cfg.Server.AuthSecret)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(s.logRequests)

	r.Get("/healthz", s.HealthHandler)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/v1", func(r chi.Router) {
		if s.verifier != nil {
			r.Use(s.requireToken)
		}
		r.Get("/best", s.BestHandler)
		r.Get("/config", s.ConfigHandler)
		r.Route("/progress", func(r chi.Router) {
			r.Get("/", s.ProgressHandler)
			r.Get("/ws", s.ProgressWSHandler)
		})
	})
	return r
}

type progressMessage struct {
	Type     string         `json:"type"`
	Progress model.Progress `json:"progress"`
}

// Report records p and broadcasts it to websocket clients, throttled to
// the configured rate. Throttled messages still land in History.
func (s *Server) Report(_ context.Context, p model.Progress) {
	s.History.Report(context.Background(), p)
	if !s.limiter.Allow() {
		return
	}
	b, err := json.Marshal(progressMessage{Type: "progress", Progress: p})
	if err != nil {
		s.log.Warn("encode progress", "error", err)
		return
	}
	s.hub.Publish(b)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.hub.Close()
	timeout := s.Config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr, "duration", time.Since(start), "request_id", middleware.GetReqID(r.Context()))
	})
}
