// Package server exposes the assistant over HTTP: a small JSON API, a
// websocket event stream and the Prometheus endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/aida/ai/assistant"
	"github.com/hrygo/aida/ai/metrics"
	"github.com/hrygo/aida/internal/profile"
)

const shutdownTimeout = 10 * time.Second

// Server serves the assistant API.
type Server struct {
	echo      *echo.Echo
	profile   *profile.Profile
	assistant *assistant.Assistant
	exporter  *metrics.PrometheusExporter
	hub       *Hub
	upgrader  websocket.Upgrader
	now       func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves the exporter's registry on /metrics.
func WithMetrics(e *metrics.PrometheusExporter) Option {
	return func(s *Server) { s.exporter = e }
}

// WithClock replaces the time source used for tokens and feeds.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds the server and registers its routes.
func New(p *profile.Profile, a *assistant.Assistant, opts ...Option) *Server {
	s := &Server{
		profile:   p,
		assistant: a,
		hub:       NewHub(),
		now:       time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API is meant for local clients; tokens guard it when enabled.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(requestLogger())
	s.echo = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.health)
	if s.exporter != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.exporter.Handler()))
	}

	s.echo.POST("/api/v1/auth/token", s.issueToken)

	api := s.echo.Group("/api/v1")
	if s.profile.IsAuthEnabled() {
		api.Use(s.requireToken)
	}
	api.POST("/messages", s.postMessage)
	api.POST("/conversation/activate", s.activate)
	api.GET("/sessions", s.listSessions)
	api.GET("/sessions/:id/messages", s.listSessionMessages)
	api.POST("/sessions/:id/resume", s.resumeSession)
	api.GET("/facts", s.listFacts)
	api.GET("/memory/search", s.searchMemory)
	api.GET("/memory/summary", s.memorySummary)
	api.GET("/tasks", s.listTasks)
	api.GET("/tasks/stats", s.taskStats)
	api.GET("/tasks/feed.atom", s.taskFeed)
	api.GET("/events", s.events)
}

// ServeHTTP lets the server be mounted or tested without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Addr is the listen address derived from the profile.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.profile.Addr, s.profile.Port)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		s.forwardEvents(ctx)
		return nil
	})
	g.Go(func() error {
		slog.Info("API server listening", "addr", s.Addr())
		if err := s.echo.Start(s.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start API server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// requestLogger logs each request through slog instead of echo's own logger.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				slog.Warn("request failed", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Debug("request", attrs...)
			return nil
		},
	})
}

func (s *Server) health(c echo.Context) error {
	resp := map[string]any{
		"status":       "ok",
		"version":      s.profile.Version,
		"conversation": s.assistant.Machine().State().String(),
		"subscribers":  s.hub.Count(),
	}
	if c.QueryParam("deep") != "" {
		available := s.assistant.CheckAvailability(c.Request().Context())
		resp["llm"] = available
		if !available {
			resp["status"] = "degraded"
			return c.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return c.JSON(http.StatusOK, resp)
}
