// Package server assembles the bridge daemon's HTTP surface: bundle
// asset serving, the resolver manifest, runtime attach over WebSocket,
// health, and Prometheus metrics.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/hybridui/dombridge/internal/api/http"
	"github.com/hybridui/dombridge/internal/api/middleware"
	"github.com/hybridui/dombridge/internal/api/ws"
	"github.com/hybridui/dombridge/internal/infrastructure/config"
	"github.com/hybridui/dombridge/internal/infrastructure/logging"
	"github.com/hybridui/dombridge/internal/infrastructure/monitoring"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	cfg     *config.Config
	router  *gin.Engine
	httpSrv *http.Server
	hub     *ws.Hub
	metrics *monitoring.Metrics
	logger  *logging.Logger
}

// New builds the router and wires every endpoint. The caller owns the
// metrics collector so proxy instances can share it.
func New(cfg *config.Config, logger *logging.Logger, metrics *monitoring.Metrics) *Server {
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	hub := ws.NewHub(logger, metrics)
	handlers := apihttp.NewHandlers(cfg.Assets.Dir, logger)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/manifest", handlers.Manifest)
	router.GET("/assets/*filepath", handlers.Asset)
	router.GET("/ws/:instance", hub.HandleAttach)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(
		metrics.Registry(),
		promhttp.HandlerOpts{},
	)))

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	return &Server{
		cfg:    cfg,
		router: router,
		httpSrv: &http.Server{
			Addr:        addr,
			Handler:     router,
			ReadTimeout: 15 * time.Second,
			IdleTimeout: 60 * time.Second,
		},
		hub:     hub,
		metrics: metrics,
		logger:  logger.Named("server"),
	}
}

// Hub returns the runtime attach hub.
func (s *Server) Hub() *ws.Hub { return s.hub }

// Router exposes the gin engine, used by tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}
