// Package httpserver wires the external HTTP contract (spec.md §6): the
// multipart track-notification intake endpoint, the image-retrieval
// endpoint, the dashboard WebSocket route, and the health/metrics
// endpoints, behind the teacher's middleware chain.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	appmetrics "github.com/twmsh/trackfusion/infrastructure/metrics"
	"github.com/twmsh/trackfusion/infrastructure/middleware"
	"github.com/twmsh/trackfusion/infrastructure/ratelimit"
	"github.com/twmsh/trackfusion/internal/dashboard"
	"github.com/twmsh/trackfusion/internal/imagestore"
)

// Config bundles the dependencies RegisterRoutes/New wires together.
type Config struct {
	FaceCoalescer    FaceDispatcher
	VehicleCoalescer VehicleDispatcher
	Images           *imagestore.Store
	Dashboard        *dashboard.Hub
	Ready            *bool

	BodyLimitBytes int64
	RateLimit      ratelimit.RateLimitConfig
	CORS           *middleware.CORSConfig

	Log     *logrus.Entry
	Metrics *appmetrics.Metrics
}

// Server owns the HTTP router and wraps it with the middleware chain.
type Server struct {
	router *mux.Router
	srv    *http.Server
	log    *logrus.Entry
}

// New builds the router, registers every route, and wraps the chain in
// the teacher's middleware order: recovery, logging, metrics, CORS, body
// limit, rate limit (spec.md §4.A [EXPANSION]).
func New(addr string, cfg Config) *Server {
	r := mux.NewRouter()

	h := &handler{
		face:    cfg.FaceCoalescer,
		vehicle: cfg.VehicleCoalescer,
		images:  cfg.Images,
		log:     cfg.Log,
		metrics: cfg.Metrics,
	}

	r.HandleFunc("/trackupload", h.trackUpload).Methods(http.MethodPost)
	r.HandleFunc("/getsingleimg", h.getSingleImage).Methods(http.MethodGet)

	if cfg.Dashboard != nil {
		cfg.Dashboard.RegisterRoutes(r)
	}

	health := middleware.NewHealthChecker("1.0.0")
	r.HandleFunc("/healthz", middleware.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", middleware.ReadinessHandler(cfg.Ready)).Methods(http.MethodGet)
	r.HandleFunc("/health", health.Handler()).Methods(http.MethodGet)
	if appmetrics.Enabled() {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	recovery := middleware.NewRecoveryMiddleware(cfg.Log)
	r.Use(recovery.Handler)
	r.Use(middleware.LoggingMiddleware(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(middleware.MetricsMiddleware("trackfusion", cfg.Metrics))
	}
	r.Use(middleware.NewCORSMiddleware(cfg.CORS).Handler)
	r.Use(middleware.NewBodyLimitMiddleware(cfg.BodyLimitBytes).Handler)
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limiter := ratelimit.New(cfg.RateLimit)
		r.Use(rateLimitMiddleware(limiter))
	}

	return &Server{
		router: r,
		log:    cfg.Log,
		srv: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// ListenAndServe starts the HTTP server; it blocks until Shutdown stops it.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server, honoring ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func rateLimitMiddleware(limiter *ratelimit.RateLimiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter.LimitExceeded() {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"status":1,"message":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
