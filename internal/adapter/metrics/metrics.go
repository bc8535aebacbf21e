package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "votewatch"

// Set bundles every metric group the process exposes.
type Set struct {
	Registry  *prometheus.Registry
	VoteBox   *VoteBoxMetrics
	HTTP      *HTTPMetrics
	WebSocket *WebSocketMetrics
}

// NewSet creates a private registry with Go runtime and process collectors
// and registers all metric groups on it.
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Set{
		Registry:  reg,
		VoteBox:   NewVoteBoxMetrics(reg),
		HTTP:      NewHTTPMetrics(reg),
		WebSocket: NewWebSocketMetrics(reg),
	}
}

// Handler returns an http.Handler that serves the registry.
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}
