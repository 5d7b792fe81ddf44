package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Command metrics
	Commands        *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
	CommandErrors   *prometheus.CounterVec

	// Market metrics
	Trades       prometheus.Counter
	TradedVolume *prometheus.CounterVec
	RestingBook  *prometheus.GaugeVec
	LastPrice    prometheus.Gauge

	// Settlement metrics
	Payouts        *prometheus.CounterVec
	PayoutResidual prometheus.Counter

	// Store metrics
	StoreCommits  *prometheus.CounterVec
	StoreErrors   *prometheus.CounterVec
	StoreDuration *prometheus.HistogramVec

	// Change feed metrics
	FeedEvents    *prometheus.CounterVec
	FeedDropped   *prometheus.CounterVec
	WSConnections prometheus.Gauge

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics on the default registry
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates all metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		// Command metrics
		Commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_commands_total",
				Help: "Total commands executed by name and outcome",
			},
			[]string{"command", "outcome"},
		),
		CommandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beanbank_command_duration_seconds",
				Help:    "Duration of commands including store commit",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		CommandErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_command_errors_total",
				Help: "Total command errors by kind",
			},
			[]string{"command", "error_kind"},
		),

		// Market metrics
		Trades: f.NewCounter(prometheus.CounterOpts{
			Name: "beanbank_trades_total",
			Help: "Total number of executed trades",
		}),
		TradedVolume: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_traded_volume_total",
				Help: "Traded volume by token",
			},
			[]string{"token"},
		),
		RestingBook: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "beanbank_resting_orders",
				Help: "Resting orders by side",
			},
			[]string{"side"},
		),
		LastPrice: f.NewGauge(prometheus.GaugeOpts{
			Name: "beanbank_last_trade_price",
			Help: "Price of the most recent trade",
		}),

		// Settlement metrics
		Payouts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_payouts_total",
				Help: "Total amount paid out by category",
			},
			[]string{"category"},
		),
		PayoutResidual: f.NewCounter(prometheus.CounterOpts{
			Name: "beanbank_payout_residual_total",
			Help: "Rounding residual retained from pari-mutuel payouts",
		}),

		// Store metrics
		StoreCommits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_store_commits_total",
				Help: "Total store commits by collection",
			},
			[]string{"collection"},
		),
		StoreErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_store_errors_total",
				Help: "Total store errors by operation",
			},
			[]string{"operation"},
		),
		StoreDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "beanbank_store_duration_seconds",
				Help:    "Store operation duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		// Change feed metrics
		FeedEvents: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_feed_events_total",
				Help: "Change events delivered by sink",
			},
			[]string{"sink"},
		),
		FeedDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_feed_dropped_total",
				Help: "Change events dropped by sink",
			},
			[]string{"sink"},
		),
		WSConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "beanbank_ws_connections",
			Help: "Open WebSocket connections",
		}),

		// Redis metrics
		RedisOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "beanbank_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"client"},
		),
	}
}
