package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/version"
	"github.com/labstack/echo/v4"
)

const (
	startupProbeTimeout   = 2 * time.Second
	readinessProbeTimeout = 5 * time.Second

	// failed_check name used when no box has fetched a summary recently.
	freshSummariesCheck = "vote_summaries"
)

// HealthCheck is a named readiness condition, e.g. "vote boxes are tracked".
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// readinessReport is the body of /health/startup and /health/ready.
// Status is "ready", "degraded" when some boxes are stale, or "unhealthy".
type readinessReport struct {
	Status      string             `json:"status"`
	FailedCheck string             `json:"failed_check,omitempty"`
	Error       string             `json:"error,omitempty"`
	Stale       int                `json:"stale"`
	Boxes       []domain.BoxHealth `json:"boxes,omitempty"`
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/startup", s.handleStartup)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

// handleStartup only runs the named checks: right after boot the first
// summaries may still be on their way.
func (s *Server) handleStartup(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), startupProbeTimeout)
	defer cancel()

	report := readinessReport{Status: "ready"}
	s.checkNamed(ctx, &report)
	return writeReport(c, report)
}

// handleLiveness counts boxes per phase without calling anything.
func (s *Server) handleLiveness(c echo.Context) error {
	health := s.boxes.Health()
	phases := make(map[string]int, 4)
	for _, h := range health {
		phases[h.Phase]++
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
		"boxes":  len(health),
		"phases": phases,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

// handleReadiness runs the named checks, then reports every box's phase and
// last successful fetch. It fails when every tracked box is stale.
func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	report := readinessReport{Status: "ready", Boxes: s.boxes.Health()}
	for _, h := range report.Boxes {
		if h.Stale {
			report.Stale++
		}
	}

	if !s.checkNamed(ctx, &report) {
		return writeReport(c, report)
	}

	switch {
	case report.Stale == 0:
	case report.Stale == len(report.Boxes):
		report.Status = "unhealthy"
		report.FailedCheck = freshSummariesCheck
		report.Error = fmt.Sprintf("none of %d vote boxes fetched a summary recently", report.Stale)
	default:
		report.Status = "degraded"
	}
	return writeReport(c, report)
}

// checkNamed stops at the first failing check and records it in report.
func (s *Server) checkNamed(ctx context.Context, report *readinessReport) bool {
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			report.Status = "unhealthy"
			report.FailedCheck = hc.Name
			report.Error = err.Error()
			return false
		}
	}
	return true
}

func writeReport(c echo.Context, report readinessReport) error {
	code := http.StatusOK
	if report.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	if err := c.JSON(code, report); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
