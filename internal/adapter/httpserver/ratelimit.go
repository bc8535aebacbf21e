package httpserver

import (
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/LMJ-01/stylemate/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const (
	voteLimiterExpiry = 5 * time.Minute
	voteLimitMessage  = "too many votes, try again shortly"
)

// newVoteRateLimiter caps vote submissions per client IP so one caller
// cannot flood the site through this process.
func newVoteRateLimiter(votesPerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(votesPerSecond),
			Burst:     burst,
			ExpiresIn: voteLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, _ error) error {
			slog.InfoContext(c.Request().Context(), "Vote rate limited", "client_ip", identifier, "feed_id", c.Param("feedId"))
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: voteLimitMessage,
				Type:  apperrors.TypeRejected,
			})
		},
	})
}
