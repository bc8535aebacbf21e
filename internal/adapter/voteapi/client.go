package voteapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/correlation"
	"github.com/LMJ-01/stylemate/internal/platform/version"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 16

// Client talks to the site's /api/votes endpoints. It never retries: one
// call is one request.
type Client struct {
	baseURL  string
	http     *http.Client
	limiter  *rate.Limiter
	location *time.Location
	group    singleflight.Group

	mu   sync.RWMutex
	csrf domain.CSRF
}

type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter  // nil means unlimited
	Location   *time.Location // zone of timestamps without an offset
}

func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Client{
		baseURL:  opts.BaseURL,
		http:     httpClient,
		limiter:  opts.Limiter,
		location: loc,
	}
}

// SetCSRF installs the anti-forgery pair read from the page.
func (c *Client) SetCSRF(csrf domain.CSRF) {
	c.mu.Lock()
	c.csrf = csrf
	c.mu.Unlock()
}

// Summary fetches the vote summary of a feed item. Concurrent calls for the
// same feed item share one request.
func (c *Client) Summary(ctx context.Context, feedID string) (*domain.Summary, error) {
	v, err, _ := c.group.Do(feedID, func() (any, error) {
		return c.fetchSummary(ctx, feedID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Summary), nil
}

// FreshSummary fetches the vote summary with a request of its own, never
// joining one already in flight.
func (c *Client) FreshSummary(ctx context.Context, feedID string) (*domain.Summary, error) {
	return c.fetchSummary(ctx, feedID)
}

func (c *Client) fetchSummary(ctx context.Context, feedID string) (*domain.Summary, error) {
	var payload summaryPayload
	status, err := c.doJSON(ctx, http.MethodGet, votesPath(feedID), &payload, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, fmt.Errorf("summary for feed %s: unexpected status %d", feedID, status)
	}
	return payload.toDomain(c.location)
}

// Vote submits choice for a feed item. A non-2xx answer becomes a
// *domain.VoteRejectedError carrying the server's reason.
func (c *Client) Vote(ctx context.Context, feedID string, choice domain.Choice) (*domain.Summary, error) {
	if choice.OptionID() == 0 {
		return nil, domain.ErrInvalidChoice
	}

	var (
		payload  summaryPayload
		rejected errorPayload
	)
	path := votesPath(feedID) + "/" + strconv.Itoa(choice.OptionID())
	status, err := c.doJSON(ctx, http.MethodPost, path, &payload, &rejected)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, &domain.VoteRejectedError{StatusCode: status, Reason: rejected.Reason}
	}
	return payload.toDomain(c.location)
}

// State fetches the raw lifecycle state (NONE, SCHEDULED, ACTIVE, CLOSED).
func (c *Client) State(ctx context.Context, feedID string) (string, error) {
	var payload statePayload
	status, err := c.doJSON(ctx, http.MethodGet, votesPath(feedID)+"/state", &payload, nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status > 299 {
		return "", fmt.Errorf("state for feed %s: unexpected status %d", feedID, status)
	}
	return payload.State, nil
}

func votesPath(feedID string) string {
	return "/api/votes/" + url.PathEscape(feedID)
}

// doJSON performs one request. The body is decoded into ok on 2xx and into
// failed (if given) otherwise; an undecodable error body is not an error.
func (c *Client) doJSON(ctx context.Context, method, path string, ok, failed any) (int, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.decorate(ctx, req)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.DebugContext(ctx, "Failed to close response body", "error", closeErr)
		}
	}()

	slog.DebugContext(ctx, "Vote API request completed",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if err := json.Unmarshal(body, ok); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		return resp.StatusCode, nil
	}

	if failed != nil && len(body) > 0 {
		if err := json.Unmarshal(body, failed); err != nil {
			slog.DebugContext(ctx, "Undecodable error body", "status_code", resp.StatusCode, "error", err)
		}
	}
	return resp.StatusCode, nil
}

func (c *Client) decorate(ctx context.Context, req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	requestID, ok := correlation.ID(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("X-Request-Id", requestID)

	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return
	}
	c.mu.RLock()
	csrf := c.csrf
	c.mu.RUnlock()
	if csrf.Present() {
		req.Header.Set(csrf.Header, csrf.Token)
	}
}
