package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hearthside/gametable/internal/infrastructure/configs"
	"github.com/hearthside/gametable/internal/infrastructure/logging"
	"github.com/hearthside/gametable/internal/infrastructure/metrics"
	"github.com/hearthside/gametable/internal/infrastructure/ratelimiter"
	adminHandler "github.com/hearthside/gametable/internal/presentation/handler/admin"
	healthHandler "github.com/hearthside/gametable/internal/presentation/handler/health"
	sessionHandler "github.com/hearthside/gametable/internal/presentation/handler/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Application struct {
	config         configs.Config
	sessionHandler *sessionHandler.Handler
	adminHandler   *adminHandler.Handler
	healthHandler  *healthHandler.Handler
	logger         logging.Logger
	ratelimiter    ratelimiter.Limiter
	metrics        *metrics.SessionMetrics
}

func NewApplication(
	config configs.Config,
	sessionHandler *sessionHandler.Handler,
	adminHandler *adminHandler.Handler,
	healthHandler *healthHandler.Handler,
	logger logging.Logger,
	ratelimiter ratelimiter.Limiter,
	metrics *metrics.SessionMetrics,
) *Application {
	return &Application{
		config:         config,
		sessionHandler: sessionHandler,
		adminHandler:   adminHandler,
		healthHandler:  healthHandler,
		logger:         logger,
		ratelimiter:    ratelimiter,
		metrics:        metrics,
	}
}

func (app *Application) Mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(app.loggerMiddleware)
	r.Use(app.prometheusMiddleware)
	r.Use(app.rateLimiterMiddleware)
	r.Use(app.enableCors)

	r.Route("/api", func(r chi.Router) {
		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/{campaignId}/session/join", app.sessionHandler.JoinSessionHandler)
		})

		r.Route("/admin/sessions", func(r chi.Router) {
			r.Get("/", app.adminHandler.ListSessionsHandler)
			r.Get("/{campaignId}/events", app.adminHandler.GetSessionEventsHandler)
			r.Get("/{campaignId}/health", app.adminHandler.GetSessionHealthHandler)
			r.Post("/{campaignId}/resync", app.adminHandler.ResyncSessionHandler)
		})

		r.Get("/health", app.healthHandler.GetHealth)
		r.Get("/healthz", app.healthHandler.GetHealth)
		r.Get("/ready", app.healthHandler.GetHealth)
		r.Get("/live", app.healthHandler.GetHealth)
	})

	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return otelhttp.NewHandler(r, "gametable.http")
}

func (app *Application) Run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.config.HTTP.Host, app.config.HTTP.Port),
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  time.Minute,
	}

	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		healthHandler.SetUnhealthy()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Info(logging.General, logging.Shutdown, "signal caught", map[logging.ExtraKey]any{
			"signal": s.String(),
		})

		shutdown <- srv.Shutdown(ctx)
	}()

	app.logger.Info(logging.General, logging.Startup, "server has started", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Info(logging.General, logging.Shutdown, "server has stopped", map[logging.ExtraKey]any{
		"addr": srv.Addr,
	})

	return nil
}
