// AngelaMos | 2026
// server.go

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/carterperez-dev/skyline-backend/internal/admin"
	"github.com/carterperez-dev/skyline-backend/internal/auth"
	"github.com/carterperez-dev/skyline-backend/internal/config"
	"github.com/carterperez-dev/skyline-backend/internal/health"
	"github.com/carterperez-dev/skyline-backend/internal/license"
	"github.com/carterperez-dev/skyline-backend/internal/middleware"
	"github.com/carterperez-dev/skyline-backend/internal/payment"
	"github.com/carterperez-dev/skyline-backend/internal/user"
)

type Config struct {
	ServerConfig  config.ServerConfig
	CORS          config.CORSConfig
	Production    bool
	HealthHandler *health.Handler
	Logger        *slog.Logger
}

// API is everything mounted under /v1.
type API struct {
	Auth     *auth.Handler
	Users    *user.Handler
	Keys     *license.Handler
	Payment  *payment.Handler
	Admin    *admin.Handler
	Sessions middleware.SessionResolver
	Bans     middleware.IPBanChecker
	Limiter  *middleware.RateLimiter
}

type Server struct {
	config     Config
	router     *chi.Mux
	httpServer *http.Server
	health     *health.Handler
	logger     *slog.Logger
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: cfg,
		router: chi.NewRouter(),
		health: cfg.HealthHandler,
		logger: logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Trace)
	s.router.Use(middleware.Logger(logger))
	s.router.Use(chimw.Recoverer)
	if cfg.ServerConfig.TrustProxyHeaders {
		s.router.Use(chimw.RealIP)
	}
	s.router.Use(middleware.ClientIP)
	s.router.Use(middleware.SecurityHeaders(cfg.Production))
	s.router.Use(middleware.CORS(cfg.CORS))

	s.httpServer = &http.Server{
		Addr:         cfg.ServerConfig.Address(),
		Handler:      s.router,
		ReadTimeout:  cfg.ServerConfig.ReadTimeout,
		WriteTimeout: cfg.ServerConfig.WriteTimeout,
		IdleTimeout:  cfg.ServerConfig.IdleTimeout,
	}

	return s
}

// Mount registers the probes and the /v1 API. It must be called once,
// before Start.
func (s *Server) Mount(api API) {
	if api.Limiter != nil {
		s.router.Use(api.Limiter.Handler)
	}

	if s.health != nil {
		s.health.RegisterRoutes(s.router)
	}

	authenticator := middleware.Authenticator(api.Sessions)
	adminOnly := middleware.RequireAdmin

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.BlockBannedAddresses(api.Bans))

		api.Auth.RegisterRoutes(r, authenticator)
		api.Users.RegisterRoutes(r, authenticator)
		api.Keys.RegisterRoutes(r, authenticator)
		api.Payment.RegisterRoutes(r, authenticator)
		api.Admin.RegisterRoutes(r, authenticator, adminOnly)
	})
}

func (s *Server) Router() chi.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown fails the probes first, waits drainDelay so load balancers stop
// routing here, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context, drainDelay time.Duration) error {
	if s.health != nil {
		s.health.SetShutdown(true)
	}

	if drainDelay > 0 {
		s.logger.Info("draining before shutdown", "delay", drainDelay)
		select {
		case <-time.After(drainDelay):
		case <-ctx.Done():
		}
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
