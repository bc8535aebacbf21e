package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LMJ-01/stylemate/internal/adapter/httpserver"
	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/adapter/page"
	"github.com/LMJ-01/stylemate/internal/adapter/voteapi"
	"github.com/LMJ-01/stylemate/internal/adapter/websocket"
	"github.com/LMJ-01/stylemate/internal/app"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/LMJ-01/stylemate/internal/platform/config"
	"github.com/LMJ-01/stylemate/internal/platform/logging"
	"github.com/centrifugal/centrifuge"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	discoveryTimeout = 3 * time.Minute
	shutdownTimeout  = 10 * time.Second
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupSiteClient builds the HTTP client shared by page discovery and the
// vote API. The session cookie, if any, is scoped to SITE_URL.
func setupSiteClient(cfg *config.Config) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	if name, value, ok := cfg.SessionCookiePair(); ok {
		site, err := url.Parse(cfg.SiteURL)
		if err != nil {
			return nil, fmt.Errorf("parse SITE_URL: %w", err)
		}
		jar.SetCookies(site, []*http.Cookie{{Name: name, Value: value, Path: "/"}})
	}

	return &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}, nil
}

func setupLimiter(cfg *config.Config) *rate.Limiter {
	if cfg.APIRateLimit == 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(cfg.APIRateLimit), cfg.APIRateBurst)
}

// discoverItems reads the feed page. With FEED_IDS set a failed discovery is
// not fatal: those boxes run without fallback window and CSRF.
func discoverItems(ctx context.Context, cfg *config.Config, source domain.PageSource) ([]domain.FeedItem, domain.CSRF, error) {
	ctx, cancel := context.WithTimeout(ctx, discoveryTimeout)
	defer cancel()

	pg, err := source.Discover(ctx)
	if err != nil {
		if len(cfg.FeedIDs) == 0 {
			return nil, domain.CSRF{}, fmt.Errorf("discover vote boxes: %w", err)
		}
		slog.Warn("Feed page unavailable, using FEED_IDS only", "error", err)
		pg = &domain.Page{}
	}

	if len(cfg.FeedIDs) == 0 {
		return pg.Items, pg.CSRF, nil
	}

	discovered := make(map[string]domain.FeedItem, len(pg.Items))
	for _, item := range pg.Items {
		discovered[item.FeedID] = item
	}
	items := make([]domain.FeedItem, 0, len(cfg.FeedIDs))
	for _, id := range cfg.FeedIDs {
		if item, ok := discovered[id]; ok {
			items = append(items, item)
			continue
		}
		items = append(items, domain.FeedItem{FeedID: id})
	}
	return items, pg.CSRF, nil
}

func setupNode(cfg *config.Config, views websocket.ViewSource, set *metrics.Set) *centrifuge.Node {
	node, err := websocket.NewNode(views, set.WebSocket, cfg.LogLevel)
	if err != nil {
		slog.Error("Failed to create centrifuge node", "error", err)
		os.Exit(1)
	}

	if cfg.RedisAddr != "" {
		if err := websocket.SetupRedis(node, cfg.RedisAddr); err != nil {
			slog.Error("Failed to set up Redis broker", "error", err)
			os.Exit(1)
		}
	}

	if err := node.Run(); err != nil {
		slog.Error("Failed to run centrifuge node", "error", err)
		os.Exit(1)
	}
	return node
}

func runGracefulShutdown(srv *httpserver.Server, widget *app.Widget, node *centrifuge.Node) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		widget.Stop()

		if err := node.Shutdown(shutdownCtx); err != nil {
			slog.Error("Centrifuge shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "site", cfg.SiteURL)

	siteClient, err := setupSiteClient(cfg)
	if err != nil {
		slog.Error("Failed to create site client", "error", err)
		os.Exit(1)
	}

	api := voteapi.New(voteapi.Options{
		BaseURL:    cfg.SiteURL,
		HTTPClient: siteClient,
		Limiter:    setupLimiter(cfg),
		Location:   cfg.Location(),
	})

	loader := page.NewLoader(cfg.SiteURL+cfg.PagePath, siteClient, clock)
	items, csrf, err := discoverItems(context.Background(), cfg, loader)
	if err != nil {
		slog.Error("Failed to discover vote boxes", "error", err)
		os.Exit(1)
	}
	if csrf.Present() {
		api.SetCSRF(csrf)
	} else {
		slog.Warn("No CSRF meta tags found, votes are sent without them")
	}

	policy, err := app.ParseRevealPolicy(cfg.RevealPolicy)
	if err != nil {
		slog.Error("Invalid reveal policy", "error", err)
		os.Exit(1)
	}

	metricSet := metrics.NewSet()

	// The node answers subscriptions from the widget, which publishes
	// through the node; the lookup is bound once both exist.
	var widget *app.Widget
	node := setupNode(cfg, websocket.ViewSourceFunc(func(feedID string) (domain.BoxView, bool) {
		return widget.View(feedID)
	}), metricSet)

	widget = app.NewWidget(api, websocket.NewPublisher(node, metricSet.WebSocket), clock, app.Options{
		Labels:        app.LabelsFor(cfg.Locale),
		Policy:        policy,
		ClosedMarkers: cfg.ClosedMarkers,
		TickInterval:  cfg.TickInterval,
		PollInterval:  cfg.PollInterval,
		Location:      cfg.Location(),
		Metrics:       metricSet.VoteBox,
	})

	for _, item := range items {
		if err := widget.Track(context.Background(), item); err != nil {
			slog.Error("Failed to track vote box", "feed_id", item.FeedID, "error", err)
		}
	}
	slog.Info("Tracking vote boxes", "count", len(items))

	healthChecks := []httpserver.HealthCheck{
		{Name: "vote_boxes", Check: func(context.Context) error {
			if len(widget.Views()) == 0 {
				return errors.New("no vote boxes tracked")
			}
			return nil
		}},
	}

	origins := websocket.NewOriginPolicy(cfg.IsDevelopment(), metricSet.WebSocket, cfg.PublicURL, cfg.SiteURL)
	wsHandler := websocket.NewHandler(node, origins)
	srv := httpserver.NewServer(cfg, widget, wsHandler, metricSet, healthChecks)

	done := runGracefulShutdown(srv, widget, node)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
