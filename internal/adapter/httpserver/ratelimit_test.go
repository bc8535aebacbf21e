package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/LMJ-01/stylemate/internal/platform/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func limitedVote(t *testing.T, handler echo.HandlerFunc, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/boxes/7/vote/1", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(e.NewContext(req, rec)))
	return rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestVoteRateLimiter_AllowsBurst(t *testing.T) {
	handler := newVoteRateLimiter(10, 3)(okHandler)

	for range 3 {
		assert.Equal(t, http.StatusOK, limitedVote(t, handler, testRemoteAddr).Code)
	}
}

func TestVoteRateLimiter_BlocksExcess(t *testing.T) {
	handler := newVoteRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedVote(t, handler, testRemoteAddr).Code)

	rec := limitedVote(t, handler, testRemoteAddr)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, voteLimitMessage, resp.Error)
	assert.Equal(t, apperrors.TypeRejected, resp.Type)
}

func TestVoteRateLimiter_PerClientIP(t *testing.T) {
	handler := newVoteRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedVote(t, handler, testRemoteAddr).Code)
	assert.Equal(t, http.StatusOK, limitedVote(t, handler, "5.6.7.8:5678").Code)
	assert.Equal(t, http.StatusTooManyRequests, limitedVote(t, handler, testRemoteAddr).Code)
}
