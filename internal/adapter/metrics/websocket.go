package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebSocketMetrics covers live subscribers of box views.
type WebSocketMetrics struct {
	ActiveConnections prometheus.Gauge
	ViewsPublished    prometheus.Counter
	PublishErrors     prometheus.Counter
	OriginsRejected   prometheus.Counter
}

func NewWebSocketMetrics(reg prometheus.Registerer) *WebSocketMetrics {
	m := &WebSocketMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of connected live view subscribers.",
		}),
		ViewsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "views_published_total",
			Help:      "Box views pushed to subscribers.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "publish_errors_total",
			Help:      "Box views that could not be pushed.",
		}),
		OriginsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "origins_rejected_total",
			Help:      "Subscriber handshakes refused for their page origin.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.ViewsPublished, m.PublishErrors, m.OriginsRejected)
	return m
}
