package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/config"
	"github.com/labstack/echo/v4"
)

type boxService interface {
	View(feedID string) (domain.BoxView, bool)
	Views() []domain.BoxView
	SubmitVote(ctx context.Context, feedID string, choice domain.Choice) (domain.BoxView, error)
	State(ctx context.Context, feedID string) (string, error)
	Health() []domain.BoxHealth
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	boxes boxService

	websocketHandler http.Handler
	metrics          *metrics.Set

	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, boxes boxService, websocketHandler http.Handler, metricSet *metrics.Set, healthChecks []HealthCheck) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:             e,
		config:           cfg,
		boxes:            boxes,
		websocketHandler: websocketHandler,
		metrics:          metricSet,
		healthChecks:     healthChecks,
		startTime:        time.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets the server be driven directly by tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
