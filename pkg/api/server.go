// Package api exposes the detector over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"fraud-gate/pkg/detector"
	"fraud-gate/pkg/logging"
	"fraud-gate/pkg/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server serves classification, health and metrics endpoints.
type Server struct {
	detector *detector.Detector
	metrics  metrics.Collector
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	router   *mux.Router
	server   *http.Server
	config   ServerConfig

	mu       sync.Mutex
	listener net.Listener
}

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	// Address to listen on (e.g., ":8080")
	Address string `mapstructure:"address"`

	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`

	// RequestTimeout bounds a single classification.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:        ":8080",
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 2 * time.Second,
		MaxBodyBytes:   1 << 16,
	}
}

// Validate checks if the configuration is valid.
func (c ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("server: address is required")
	}
	if c.RequestTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("server: timeouts must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("server: max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	return nil
}

// Option configures a Server.
type Option func(*Server)

// WithGatherer sets the registry served on /metrics. The default is the
// process-wide Prometheus registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the server logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer creates an API server over d.
func NewServer(d *detector.Detector, collector metrics.Collector, config ServerConfig, opts ...Option) *Server {
	s := &Server{
		detector: d,
		metrics:  metrics.OrNoOp(collector),
		gatherer: prometheus.DefaultGatherer,
		config:   config,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrGlobal(s.logger).Named("api")

	r := mux.NewRouter()
	r.Use(requestIDMiddleware, prometheusMiddleware)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/metrics/json", s.handleMetricsJSON).Methods(http.MethodGet)

	r.HandleFunc("/v1/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/v1/encode", s.handleEncode).Methods(http.MethodPost)
	r.HandleFunc("/v1/model", s.handleModel).Methods(http.MethodGet)

	s.router = r
	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listen address and serves in a goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.config.Address, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("API server listening", zap.String("address", ln.Addr().String()))
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
