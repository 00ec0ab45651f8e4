package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"telemetry-analyzer/internal/analytics"
	"telemetry-analyzer/internal/cache"
	"telemetry-analyzer/internal/config"
	"telemetry-analyzer/internal/middleware"
)

// Server is the stateless handler set. Nothing mutable is shared between
// requests; the detector is only configuration.
type Server struct {
	router   *mux.Router
	handler  http.Handler
	cfg      *config.Config
	log      *zap.Logger
	detector *analytics.Detector
	counter  middleware.Counter
	redis    *cache.RedisClient

	trustedProxies []netip.Prefix
}

type Option func(*Server)

func detectorConfig(d config.DetectorConfig) analytics.DetectorConfig {
	return analytics.DetectorConfig{
		Contamination:   d.Contamination,
		NumEstimators:   d.NumEstimators,
		MaxSamples:      d.MaxSamples,
		Seed:            d.Seed,
		ZScoreThreshold: d.ZScoreThreshold,
	}
}

// WithCounter overrides the rate limiter store. It takes effect only when
// rate limiting is enabled.
func WithCounter(c middleware.Counter) Option {
	return func(s *Server) { s.counter = c }
}

func New(ctx context.Context, cfg *config.Config, log *zap.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		router:   mux.NewRouter(),
		cfg:      cfg,
		log:      log,
		detector: analytics.NewDetector(detectorConfig(cfg.Detector)),
	}
	for _, opt := range opts {
		opt(s)
	}

	proxies, err := middleware.ParseCIDRs(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("invalid ratelimit.trusted_proxies: %w", err)
	}
	s.trustedProxies = proxies

	if cfg.RateLimit.Enabled && s.counter == nil {
		redisClient, err := cache.NewRedisClient(ctx, cfg.RateLimit.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		s.redis = redisClient
		s.counter = redisClient
	}

	s.setupRoutes()

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	}).Handler(middleware.RequestID(s.router))

	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Instrument(s.log), middleware.Recover(s.log))

	s.router.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/openapi.json", s.openAPIJSONHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/openapi.yaml", s.openAPIYAMLHandler).Methods(http.MethodGet)

	s.router.Handle("/analyze/anomaly", s.limited(s.anomalyHandler)).Methods(http.MethodPost)
	s.router.Handle("/analyze/eda", s.limited(s.edaHandler)).Methods(http.MethodPost)
}

// limited wraps an analysis handler with the rate limiter when it is enabled.
func (s *Server) limited(h http.HandlerFunc) http.Handler {
	if !s.cfg.RateLimit.Enabled || s.counter == nil {
		return h
	}
	return middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Counter:        s.counter,
		Limit:          s.cfg.RateLimit.Limit,
		Window:         s.cfg.RateLimit.Window,
		TrustedProxies: s.trustedProxies,
		Logger:         s.log,
	})(h)
}

// Handler is the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	addr := s.cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	done := make(chan error, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		s.log.Info("server is shutting down", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		done <- srv.Shutdown(ctx)
	}()

	s.log.Info("server is ready to handle requests", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not listen on %s: %w", addr, err)
	}

	if err := <-done; err != nil {
		return fmt.Errorf("could not gracefully shutdown the server: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// Close releases the Redis connection, if any.
func (s *Server) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
