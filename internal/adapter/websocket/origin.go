package websocket

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
)

// OriginPolicy decides which pages may subscribe to the votebox channels:
// the dashboard served at PUBLIC_URL and the site's feed pages that embed
// the boxes. Requests without an Origin header come from non-browser
// clients and pass; the channels only carry what GET /api/boxes shows.
type OriginPolicy struct {
	pages    map[string]struct{}
	loopback bool
	rejected func()
}

// NewOriginPolicy allows the origins of pageURLs. Unparsable or empty URLs
// are skipped. With allowLoopback any localhost page passes as well.
func NewOriginPolicy(allowLoopback bool, wsMetrics *metrics.WebSocketMetrics, pageURLs ...string) *OriginPolicy {
	p := &OriginPolicy{pages: make(map[string]struct{}), loopback: allowLoopback, rejected: func() {}}
	for _, raw := range pageURLs {
		if origin, ok := canonicalOrigin(raw); ok {
			p.pages[origin] = struct{}{}
		}
	}
	if wsMetrics != nil {
		p.rejected = wsMetrics.OriginsRejected.Inc
	}
	return p
}

// Allow is the centrifuge CheckOrigin hook.
func (p *OriginPolicy) Allow(r *http.Request) bool {
	header := r.Header.Get("Origin")
	if header == "" {
		return true
	}

	origin, ok := canonicalOrigin(header)
	if ok {
		if _, known := p.pages[origin]; known {
			return true
		}
		if p.loopback && isLoopback(origin) {
			return true
		}
	}

	p.rejected()
	slog.Warn("Votebox subscription refused", "origin", header, "remote_addr", r.RemoteAddr)
	return false
}

// canonicalOrigin reduces an http(s) URL to scheme://host[:port], lower-cased
// and without the scheme's default port.
func canonicalOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, true
}

func isLoopback(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
