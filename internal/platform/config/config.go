package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string   `env:"APP_ENV" default:"development"`
	Port          string   `env:"PORT" default:"8080"`
	SiteURL       string   `env:"SITE_URL"`
	PagePath      string   `env:"PAGE_PATH" default:"/"`
	FeedIDs       []string `env:"FEED_IDS"`
	SessionCookie string   `env:"SESSION_COOKIE"`
	PublicURL     string   `env:"PUBLIC_URL"`
	RedisAddr     string   `env:"REDIS_ADDR"`
	LogLevel      string   `env:"LOG_LEVEL" default:"info"`
	LogFormat     string   `env:"LOG_FORMAT" default:"text"`

	RevealPolicy   string   `env:"REVEAL_POLICY" default:"server"`
	Locale         string   `env:"LOCALE" default:"en"`
	ServerTimezone string   `env:"SERVER_TIMEZONE" default:"Local"`
	ClosedMarkers  []string `env:"CLOSED_MARKERS" default:"마감,closed"`

	TickInterval   time.Duration `env:"TICK_INTERVAL" default:"1s"`
	PollInterval   time.Duration `env:"POLL_INTERVAL" default:"10s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" default:"10s"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"` // requests per second, 0 disables
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`

	VoteRateLimit float64 `env:"VOTE_RATE_LIMIT" default:"1"` // per client IP, 0 disables
	VoteRateBurst int     `env:"VOTE_RATE_BURST" default:"5"`

	location *time.Location
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, &env.Options{SliceSep: ","}); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location is the zone the site's zone-less timestamps are written in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// IsDevelopment reports whether APP_ENV is development.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// SessionCookiePair splits SESSION_COOKIE into name and value.
func (c *Config) SessionCookiePair() (name, value string, ok bool) {
	if c.SessionCookie == "" {
		return "", "", false
	}
	name, value, ok = strings.Cut(c.SessionCookie, "=")
	return strings.TrimSpace(name), strings.TrimSpace(value), ok && strings.TrimSpace(name) != ""
}

func validate(cfg *Config) error {
	if cfg.SiteURL == "" {
		return errors.New("SITE_URL is required")
	}
	u, err := url.Parse(cfg.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SITE_URL must be an absolute http(s) URL, got %q", cfg.SiteURL)
	}
	cfg.SiteURL = strings.TrimSuffix(cfg.SiteURL, "/")

	if !strings.HasPrefix(cfg.PagePath, "/") {
		return fmt.Errorf("PAGE_PATH must start with '/', got %q", cfg.PagePath)
	}

	if cfg.SessionCookie != "" {
		if _, _, ok := cfg.SessionCookiePair(); !ok {
			return errors.New("SESSION_COOKIE must have the form name=value")
		}
	}

	if !slices.Contains([]string{"server", "on-close"}, cfg.RevealPolicy) {
		return fmt.Errorf("REVEAL_POLICY must be 'server' or 'on-close', got %q", cfg.RevealPolicy)
	}
	if !slices.Contains([]string{"en", "ko"}, cfg.Locale) {
		return fmt.Errorf("LOCALE must be 'en' or 'ko', got %q", cfg.Locale)
	}

	loc, err := time.LoadLocation(cfg.ServerTimezone)
	if err != nil {
		return fmt.Errorf("SERVER_TIMEZONE is not a known time zone: %w", err)
	}
	cfg.location = loc

	durations := map[string]time.Duration{
		"TICK_INTERVAL":   cfg.TickInterval,
		"POLL_INTERVAL":   cfg.PollInterval,
		"REQUEST_TIMEOUT": cfg.RequestTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.APIRateLimit < 0 {
		return errors.New("API_RATE_LIMIT must not be negative")
	}
	if cfg.APIRateLimit > 0 && cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_BURST must be at least 1 when API_RATE_LIMIT is set")
	}

	if cfg.VoteRateLimit < 0 {
		return errors.New("VOTE_RATE_LIMIT must not be negative")
	}
	if cfg.VoteRateLimit > 0 && cfg.VoteRateBurst < 1 {
		return errors.New("VOTE_RATE_BURST must be at least 1 when VOTE_RATE_LIMIT is set")
	}

	return nil
}
