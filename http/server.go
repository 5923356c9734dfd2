// Package http serves predictions and model administration over HTTP.
package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fae/db"
	"fae/monitoring"
	"fae/serving"
	"fae/training"
)

type Server struct {
	server *http.Server
	config ServerConfig
	log    *zap.Logger
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           8000,
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// Deps are the collaborators behind the routes. Only Service and Log are
// required; a nil Store, Metrics, Hub or Trainer disables its routes.
type Deps struct {
	Service  *serving.Service
	Store    *db.Store
	Metrics  *monitoring.Metrics
	Hub      *monitoring.Hub
	Trainer  *training.Trainer
	Training training.Config
	Log      *zap.Logger
}

func NewServer(config ServerConfig, deps Deps) *Server {
	log := deps.Log.Named("http")
	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           NewHandler(config, deps),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ErrorLog:          zap.NewStdLog(log),
		},
		config: config,
		log:    log,
	}
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(config ServerConfig, deps Deps) http.Handler {
	log := deps.Log.Named("http")
	h := &handlers{
		service: deps.Service,
		store:   deps.Store,
		log:     log,
	}
	if deps.Trainer != nil {
		h.trainer = &trainer{runner: deps.Trainer, config: deps.Training, service: deps.Service, log: log}
	}

	mux := http.NewServeMux()
	route := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, instrument(pattern, deps.Metrics, handler))
	}
	h.register(route)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.Hub != nil {
		mux.Handle("GET /api/ws/predictions", deps.Hub)
	}

	chain := Chain(
		RecoveryMiddleware(log),
		LoggerMiddleware(log),
		SecurityHeadersMiddleware,
		CORSMiddleware(config.AllowedOrigins),
		RequestSizeMiddleware(config.MaxBodyBytes),
		TimeoutMiddleware(config.Timeout),
	)
	return chain(mux)
}

// instrument counts responses per route pattern.
func instrument(pattern string, metrics *monitoring.Metrics, next http.Handler) http.Handler {
	if metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		metrics.ObserveRequest(pattern, wrapped.statusCode)
	})
}

// Start listens on the configured port and blocks until the server stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("starting HTTP server", zap.String("addr", ln.Addr().String()))
	if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.log.Info("shutting down HTTP server")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func (s *Server) Addr() string {
	return s.server.Addr
}
