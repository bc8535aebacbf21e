package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/LMJ-01/stylemate/internal/domain"
	apperrors "github.com/LMJ-01/stylemate/internal/platform/errors"
	"github.com/labstack/echo/v4"
)

func (s *Server) registerBoxRoutes() {
	g := s.echo.Group("/api/boxes")
	g.GET("", s.handleListBoxes)
	g.GET("/:feedId", s.handleGetBox)
	g.GET("/:feedId/state", s.handleBoxState)

	vote := []echo.MiddlewareFunc{}
	if s.config.VoteRateLimit > 0 {
		vote = append(vote, newVoteRateLimiter(s.config.VoteRateLimit, s.config.VoteRateBurst))
	}
	g.POST("/:feedId/vote/:option", s.handleVote, vote...)
}

func (s *Server) handleListBoxes(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.boxes.Views()); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetBox(c echo.Context) error {
	feedID := c.Param("feedId")
	view, ok := s.boxes.View(feedID)
	if !ok {
		return apperrors.NotFoundError("vote box not found").WithField("feed_id", feedID)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVote(c echo.Context) error {
	feedID := c.Param("feedId")
	choice, err := domain.ParseChoice(c.Param("option"))
	if err != nil {
		return apperrors.ValidationError("option must be 1, 2, A or B").WithField("option", c.Param("option"))
	}

	view, err := s.boxes.SubmitVote(c.Request().Context(), feedID, choice)
	if errors.Is(err, domain.ErrBoxNotFound) {
		return apperrors.NotFoundError("vote box not found").WithField("feed_id", feedID)
	}
	if rejected, ok := errors.AsType[*domain.VoteRejectedError](err); ok {
		message := rejected.UserMessage()
		if rejected.Unauthorized() && rejected.Reason == "" {
			message = domain.SessionExpiredMessage
		}
		return apperrors.RejectedError(rejected.StatusCode, message, err).WithField("feed_id", feedID)
	}
	if err != nil {
		return apperrors.ExternalError(domain.GenericVoteFailure, err).WithField("feed_id", feedID)
	}

	if err := c.JSON(http.StatusOK, view); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleBoxState(c echo.Context) error {
	feedID := c.Param("feedId")
	state, err := s.boxes.State(c.Request().Context(), feedID)
	if errors.Is(err, domain.ErrBoxNotFound) {
		return apperrors.NotFoundError("vote box not found").WithField("feed_id", feedID)
	}
	if err != nil {
		return apperrors.ExternalError("failed to load vote state", err).WithField("feed_id", feedID)
	}

	if err := c.JSON(http.StatusOK, map[string]string{"feedId": feedID, "state": state}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}
