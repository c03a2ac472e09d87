package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quecocinohoy/backend/config"
	"github.com/quecocinohoy/backend/internal/api"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/middleware"
)

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	http   *http.Server
	log    *logger.Logger
}

// Options toggles optional middleware.
type Options struct {
	SentryEnabled bool
}

// New assembles the gin engine: request id, logging, CORS, error rendering,
// panic recovery and Sentry, then the API routes.
func New(cfg *config.Config, svc api.Services, log *logger.Logger, opts Options) *Server {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(log.Named("http")),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.ErrorHandler(log.Named("errors")),
		middleware.Recovery(),
		middleware.Sentry(opts.SentryEnabled),
	)

	if svc.Logger == nil {
		svc.Logger = log
	}
	api.RegisterRoutes(router, svc)

	return &Server{
		router: router,
		http: &http.Server{
			Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			// generation with an image can take close to a minute
			WriteTimeout: 120 * time.Second,
		},
		log: log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Infow("starting http server", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
