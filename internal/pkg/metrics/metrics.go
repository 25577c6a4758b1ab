// Package metrics provides Prometheus collectors for the buy monitor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "buybot"

// Metrics holds all collectors. Construct with New; components accept nil and fall back to OrNop.
type Metrics struct {
	registry *prometheus.Registry

	// Market data
	SnapshotFetches  *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	UpstreamRequests *prometheus.CounterVec

	// Monitor
	BatchDuration     prometheus.Histogram
	BatchesSkipped    prometheus.Counter
	TokenCheckErrors  prometheus.Counter
	BuyEventsDetected prometheus.Counter
	TrackedTokens     prometheus.Gauge
	Subscriptions     prometheus.Gauge

	// Delivery
	AlertsTotal   *prometheus.CounterVec
	EventsTotal   *prometheus.CounterVec
	QueueDepth    prometheus.Gauge
	StreamClients prometheus.Gauge
	BotCommands   *prometheus.CounterVec

	// Leaderboard
	LeaderboardBuys prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SnapshotFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "snapshot_fetches_total",
			Help:      "Snapshot lookups by outcome (hit, miss, stale, not_found)",
		}, []string{"outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dexscreener",
			Name:      "request_duration_seconds",
			Help:      "Market-data API latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dexscreener",
			Name:      "requests_total",
			Help:      "Market-data API requests by endpoint and result",
		}, []string{"endpoint", "result"}),

		BatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "batch_duration_seconds",
			Help:      "Duration of one check-all-tokens batch",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "batches_skipped_total",
			Help:      "Timer fires skipped because the previous batch was still running",
		}),
		TokenCheckErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "token_check_errors_total",
			Help:      "Per-token checks that failed and were skipped for the cycle",
		}),
		BuyEventsDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "buy_events_total",
			Help:      "Buy events inferred from snapshot deltas",
		}),
		TrackedTokens: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tracked_tokens",
			Help:      "Distinct tokens with at least one subscriber",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "subscriptions",
			Help:      "Active (token, chat) subscriptions",
		}),

		AlertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_total",
			Help:      "Alerts by outcome (sent, failed, dropped)",
		}, []string{"outcome"}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "events_total",
			Help:      "Buy events published to stream sinks by sink and outcome",
		}, []string{"sink", "outcome"}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "queue_depth",
			Help:      "Jobs waiting in the outbound queue",
		}),
		StreamClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "websocket_clients",
			Help:      "Connected websocket clients",
		}),
		BotCommands: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "commands_total",
			Help:      "Bot commands handled by command name",
		}, []string{"command"}),

		LeaderboardBuys: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "leaderboard",
			Name:      "recorded_buys_total",
			Help:      "Buys recorded into leaderboards",
		}),
	}
}

// OrNop returns m, or a private unexported registry when m is nil.
func OrNop(m *Metrics) *Metrics {
	if m != nil {
		return m
	}
	return New()
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler serving this instance's collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
