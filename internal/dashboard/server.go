// Package dashboard serves the JSON control API for the agent.
package dashboard

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/agent"
	"github.com/ibeckermayer/trendpersona/internal/auth"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/store"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the process-wide HTTP metrics middleware
func InitMetrics(service string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(service)
	})
	return prom
}

// Server holds the dashboard dependencies and provides handlers
type Server struct {
	cfg            config.DashboardConfig
	agent          *agent.Agent
	store          *store.Store
	auth           *auth.Manager
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	log            *logrus.Entry
}

// New creates the server and its fiber app
func New(cfg config.DashboardConfig, ag *agent.Agent, mgr *auth.Manager, logger *logrus.Logger) *Server {
	s := &Server{
		cfg:            cfg,
		agent:          ag,
		store:          ag.Store(),
		auth:           mgr,
		promMiddleware: InitMetrics("trendpersona"),
		log:            logger.WithField("component", "dashboard"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "trendpersona",
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		ErrorHandler:          s.handleError,
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return s
}

// App returns the underlying fiber app
func (s *Server) App() *fiber.App { return s.app }

// Addr is the configured listen address
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Listen serves until Shutdown is called
func (s *Server) Listen() error {
	s.log.WithField("addr", s.Addr()).Info("Dashboard listening")
	if err := s.app.Listen(s.Addr()); err != nil {
		return fmt.Errorf("failed to serve dashboard: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// SetupRoutes configures all routes
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health", s.Health)
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Post("/login", s.loginLimiter(), s.Login)

	protected := api.Group("", s.AuthRequired)

	protected.Get("/status", s.GetStatus)
	protected.Post("/control/start", s.StartAgent)
	protected.Post("/control/stop", s.StopAgent)
	protected.Post("/emergency-stop", s.EmergencyStop)
	protected.Get("/check", s.CheckServices)

	protected.Get("/posts", s.ListPosts)
	protected.Post("/posts", s.ManualPost)
	protected.Delete("/posts", s.ClearPosts)
	protected.Post("/posts/enhance", s.EnhancePost)
	protected.Post("/posts/force", s.ForcePost)
	protected.Post("/posts/bulk-retry", s.BulkRetry)
	protected.Post("/posts/:id/retry", s.RetryPost)
	protected.Delete("/posts/:id", s.DeletePost)

	protected.Get("/trends", s.GetTrends)
	protected.Get("/analytics", s.GetAnalytics)

	protected.Get("/config", s.GetConfig)
	protected.Put("/config", s.UpdateConfig)

	protected.Get("/prompts", s.ListPrompts)
	protected.Put("/prompts/:persona", s.UpsertPrompt)
	protected.Post("/prompts/:persona/toggle", s.TogglePrompt)
	protected.Delete("/prompts/:persona", s.DeletePrompt)

	protected.Get("/persona-settings", s.ListPersonaSettings)
	protected.Put("/persona-settings/:key", s.UpdatePersonaSetting)

	protected.Get("/export/database", s.ExportDatabase)
	protected.Post("/import/database", s.ImportDatabase)
}
