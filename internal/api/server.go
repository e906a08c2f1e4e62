package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"github.com/zyra-ai/zyra/internal/api/handlers"
	"github.com/zyra-ai/zyra/internal/api/middleware"
	"github.com/zyra-ai/zyra/internal/api/websocket"
	"github.com/zyra-ai/zyra/internal/execution"
	"github.com/zyra-ai/zyra/internal/execution/history"
	"github.com/zyra-ai/zyra/internal/pkg/config"
	"github.com/zyra-ai/zyra/internal/pkg/metrics"
	"github.com/zyra-ai/zyra/internal/scheduler"
	schedmetrics "github.com/zyra-ai/zyra/internal/scheduler/metrics"
)

type Server struct {
	cfg          *config.Config
	router       *chi.Mux
	httpServer   *http.Server
	wsHub        *websocket.Hub
	wsSubscriber *websocket.Subscriber
	hubCancel    context.CancelFunc
}

type Dependencies struct {
	Scheduler *scheduler.Scheduler
	Tracker   *execution.Tracker
	History   *history.Manager

	// Tokens enables bearer authentication on /api when set.
	Tokens middleware.TokenValidator
	// Redis is optional. With executions.publish_events it also feeds
	// execution streams from other replicas.
	Redis *redis.Client
	DB    handlers.Pinger
}

func NewServer(cfg *config.Config, deps *Dependencies) *Server {
	router := chi.NewRouter()

	// WebSocket hub
	hubCtx, hubCancel := context.WithCancel(context.Background())
	wsHub := websocket.NewHub()
	go wsHub.Run(hubCtx)

	relay := deps.Redis != nil && cfg.Executions.PublishEvents
	var wsSubscriber *websocket.Subscriber
	if relay {
		wsSubscriber = websocket.NewSubscriber(deps.Redis, wsHub)
		wsSubscriber.Start()
	}

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger())
	router.Use(middleware.Recoverer())
	router.Use(metrics.MetricsMiddleware)

	// CORS - support multiple origins (comma-separated in config)
	allowedOrigins := splitOrigins(cfg.App.FrontendURL)
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	router.Use(corsHandler.Handler)

	// Initialize handlers
	scheduleHandler := handlers.NewScheduleHandler(deps.Scheduler)
	executionHandler := handlers.NewExecutionHandler(deps.Tracker)
	historyHandler := handlers.NewHistoryHandler(deps.History)
	workflowHandler := handlers.NewWorkflowHandler()
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.Scheduler).WithStreams(wsHub.GetConnectionCount)
	wsHandler := handlers.NewWebSocketHandler(wsHub, deps.Tracker, handlers.WebSocketOptions{
		Tokens:         deps.Tokens,
		Relay:          relay,
		AllowedOrigins: allowedOrigins,
	})

	// Health
	router.Get("/health", healthHandler.Health)
	router.Get("/health/live", healthHandler.Live)
	router.Get("/health/ready", healthHandler.Ready)

	schedulerStats := schedmetrics.NewExporter(deps.Scheduler.Metrics())
	router.Get("/health/scheduler", schedulerStats.Health())
	router.Get("/metrics/scheduler", schedulerStats.Handler())

	// Metrics endpoint (Prometheus)
	router.Handle("/metrics", metrics.Handler())

	protected := func(r chi.Router) {
		r.Use(chimiddleware.Timeout(60 * time.Second))
		if deps.Tokens != nil {
			r.Use(middleware.NewAuthMiddleware(deps.Tokens).Authenticate)
		}
	}

	router.Route("/api", func(r chi.Router) {
		// Schedules
		r.Route("/workflow-schedules", func(r chi.Router) {
			protected(r)
			r.Get("/", scheduleHandler.List)
			r.Post("/", scheduleHandler.Create)
			r.Patch("/", scheduleHandler.Update)
			r.Delete("/", scheduleHandler.Delete)
			r.Post("/preview", scheduleHandler.Preview)
		})

		// Background executions
		r.Route("/background-executions", func(r chi.Router) {
			// The stream authenticates with ?token= since browsers cannot
			// set headers on websocket requests.
			r.Get("/{executionID}/stream", wsHandler.Stream)

			r.Group(func(r chi.Router) {
				protected(r)
				r.Get("/", executionHandler.List)
				r.Post("/", executionHandler.Start)
				r.Delete("/", executionHandler.Delete)
				r.Patch("/{executionID}", executionHandler.Update)
				r.Post("/{executionID}/logs", executionHandler.AddLog)
				r.Post("/{executionID}/nodes", executionHandler.CompleteNode)
				r.Post("/{executionID}/complete", executionHandler.Complete)
				r.Post("/{executionID}/fail", executionHandler.Fail)
				r.Post("/{executionID}/cancel", executionHandler.Cancel)
			})
		})

		// Execution history
		r.Route("/execution-history", func(r chi.Router) {
			protected(r)
			r.Get("/", historyHandler.List)
			r.Post("/", historyHandler.Create)
			r.Delete("/", historyHandler.Delete)
			r.Get("/statistics", historyHandler.Statistics)
		})

		// Workflows
		r.Route("/workflows", func(r chi.Router) {
			protected(r)
			r.Post("/validate", workflowHandler.Validate)
		})
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		cfg:          cfg,
		router:       router,
		httpServer:   httpServer,
		wsHub:        wsHub,
		wsSubscriber: wsSubscriber,
		hubCancel:    hubCancel,
	}
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Info().Msg("Server stopped")
	return nil
}

// Close stops the execution streams.
func (s *Server) Close() {
	if s.wsSubscriber != nil {
		s.wsSubscriber.Stop()
	}
	s.hubCancel()
}
