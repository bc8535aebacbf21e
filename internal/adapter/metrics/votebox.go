package metrics

import "github.com/prometheus/client_golang/prometheus"

// Summary fetch sources.
const (
	SourceInit  = "init"
	SourcePoll  = "poll"
	SourceClose = "close"
)

// VoteBoxMetrics holds Prometheus metrics for the vote box state machines.
type VoteBoxMetrics struct {
	SummaryFetches     *prometheus.CounterVec
	VotesSubmitted     *prometheus.CounterVec
	PhaseTransitions   *prometheus.CounterVec
	CountdownsReplaced prometheus.Counter
	ActiveCountdowns   prometheus.Gauge
	TrackedBoxes       prometheus.Gauge
}

// NewVoteBoxMetrics creates and registers vote box metrics on the given registry.
func NewVoteBoxMetrics(reg prometheus.Registerer) *VoteBoxMetrics {
	m := &VoteBoxMetrics{
		SummaryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "summary_fetches_total",
			Help:      "Vote summary fetches, by source (init, poll, close) and result.",
		}, []string{"source", "result"}),
		VotesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "votes_submitted_total",
			Help:      "Vote submissions, by result.",
		}, []string{"result"}),
		PhaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "phase_transitions_total",
			Help:      "Countdown phase changes, by phase entered.",
		}, []string{"phase"}),
		CountdownsReplaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "countdowns_replaced_total",
			Help:      "Countdowns cancelled because the same box started a new one.",
		}),
		ActiveCountdowns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "active_countdowns",
			Help:      "Countdown timers currently running.",
		}),
		TrackedBoxes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "votebox",
			Name:      "tracked_boxes",
			Help:      "Vote boxes being followed.",
		}),
	}

	reg.MustRegister(m.SummaryFetches, m.VotesSubmitted, m.PhaseTransitions, m.CountdownsReplaced, m.ActiveCountdowns, m.TrackedBoxes)
	return m
}
