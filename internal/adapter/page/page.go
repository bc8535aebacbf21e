package page

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/retry"
	"github.com/LMJ-01/stylemate/internal/platform/version"
	"github.com/PuerkitoBio/goquery"
	"github.com/jonboulle/clockwork"
)

var defaultPolicy = retry.Policy{
	MaxAttempts:      5,
	InitialBackoff:   time.Second,
	RateLimitBackoff: 30 * time.Second,
}

// StatusError is a non-200 answer for the feed page.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

// Loader reads vote boxes and CSRF credentials from the server-rendered
// feed page.
type Loader struct {
	url    string
	client *http.Client
	clock  clockwork.Clock
	policy retry.Policy
}

func NewLoader(pageURL string, client *http.Client, clock clockwork.Clock) *Loader {
	return &Loader{url: pageURL, client: client, clock: clock, policy: defaultPolicy}
}

// Discover loads the page. Transport failures, 5xx and 429 are retried;
// other statuses and unparsable markup are not.
func (l *Loader) Discover(ctx context.Context) (*domain.Page, error) {
	policy := l.policy
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Feed page fetch failed, retrying", "url", l.url, "attempt", attempt, "backoff", backoff, "error", err)
	}

	page, err := retry.Do(ctx, l.clock, policy, classify, l.fetch)
	if err != nil {
		return nil, fmt.Errorf("discover vote boxes: %w", err)
	}

	slog.InfoContext(ctx, "Feed page parsed", "url", l.url, "vote_boxes", len(page.Items), "csrf", page.CSRF.Present())
	return page, nil
}

func classify(err error) retry.Action {
	statusErr, ok := errors.AsType[*StatusError](err)
	if !ok {
		if errors.Is(err, errMarkup) {
			return retry.Stop
		}
		return retry.Retry
	}
	switch {
	case statusErr.StatusCode == http.StatusTooManyRequests:
		return retry.After
	case statusErr.StatusCode >= 500:
		return retry.Retry
	default:
		return retry.Stop
	}
}

var errMarkup = errors.New("unparsable page markup")

func (l *Loader) fetch(ctx context.Context) (*domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", l.url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.DebugContext(ctx, "Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: l.url, StatusCode: resp.StatusCode}
	}

	return Parse(resp.Body)
}

// Parse extracts vote boxes and the CSRF meta pair from page markup.
// Boxes without a feed id are skipped; duplicates keep the first occurrence.
func Parse(r io.Reader) (*domain.Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMarkup, err)
	}

	page := &domain.Page{
		CSRF: domain.CSRF{
			Header: metaContent(doc, "_csrf_header"),
			Token:  metaContent(doc, "_csrf"),
		},
	}

	seen := make(map[string]struct{})
	doc.Find(".vote-box[data-feed-id]").Each(func(_ int, s *goquery.Selection) {
		feedID := strings.TrimSpace(s.AttrOr("data-feed-id", ""))
		if feedID == "" {
			return
		}
		if _, dup := seen[feedID]; dup {
			return
		}
		seen[feedID] = struct{}{}

		page.Items = append(page.Items, domain.FeedItem{
			FeedID:   feedID,
			StartISO: strings.TrimSpace(s.AttrOr("data-start-iso", "")),
			EndISO:   strings.TrimSpace(s.AttrOr("data-end-iso", "")),
		})
	})

	return page, nil
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}
