package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for hyperwatch.
type Metrics struct {
	// --- Refresh cycles ---
	RefreshCycles       *prometheus.CounterVec // status: success|failure
	RefreshDuration     prometheus.Histogram
	LastRefreshUnixtime prometheus.Gauge
	RefreshInterval     prometheus.Gauge

	// --- Upstream fetches ---
	FetchCalls    *prometheus.CounterVec // query, status
	FetchDuration *prometheus.HistogramVec
	FetchDegraded *prometheus.CounterVec // optional section replaced by empty default

	// --- Account state (scalar metrics keyed by the sensor table) ---
	AccountMetric *prometheus.GaugeVec

	// --- Per-entity gauges ---
	PositionUnrealizedPnl *prometheus.GaugeVec // coin
	PositionValue         *prometheus.GaugeVec // coin
	VaultEquity           *prometheus.GaugeVec // vault_address
	OrderValue            *prometheus.GaugeVec // coin, order_id

	// --- Entity lifecycle ---
	EntityEvents *prometheus.CounterVec // event_type

	// --- Outbound publishing ---
	PublishErrors prometheus.Counter
	PublishDrops  prometheus.Counter

	// --- HTTP API ---
	HTTPRequests *prometheus.CounterVec // endpoint, status
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	fetchBuckets := []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0}

	return &Metrics{
		RefreshCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_refresh_cycles_total",
			Help: "Refresh cycles by outcome",
		}, []string{"status"}),

		RefreshDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "hyper_refresh_duration_seconds",
			Help:    "Full refresh cycle duration (fetch + normalize)",
			Buckets: fetchBuckets,
		}),

		LastRefreshUnixtime: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hyper_last_refresh_unixtime",
			Help: "Unix time of the last successful refresh",
		}),

		RefreshInterval: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "hyper_refresh_interval_seconds",
			Help: "Configured refresh interval",
		}),

		FetchCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_fetch_calls_total",
			Help: "Upstream /info calls by query and outcome",
		}, []string{"query", "status"}),

		FetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hyper_fetch_duration_seconds",
			Help:    "Upstream /info call latency",
			Buckets: fetchBuckets,
		}, []string{"query"}),

		FetchDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_fetch_degraded_total",
			Help: "Optional sections replaced by empty defaults",
		}, []string{"section"}),

		AccountMetric: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hyper_account_metric",
			Help: "Scalar account metrics keyed by sensor key",
		}, []string{"key"}),

		PositionUnrealizedPnl: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hyper_position_unrealized_pnl",
			Help: "Unrealized PnL per open position",
		}, []string{"coin"}),

		PositionValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hyper_position_value",
			Help: "Notional value per open position",
		}, []string{"coin"}),

		VaultEquity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hyper_vault_equity",
			Help: "Equity per vault deposit",
		}, []string{"vault_address"}),

		OrderValue: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hyper_order_value",
			Help: "Resting order value (price * size)",
		}, []string{"coin", "order_id"}),

		EntityEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_entity_events_total",
			Help: "Entity lifecycle events emitted by the reconciler",
		}, []string{"event_type"}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hyper_publish_errors_total",
			Help: "Failed NATS publishes",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hyper_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hyper_http_requests_total",
			Help: "HTTP API requests",
		}, []string{"endpoint", "status"}),

		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hyper_http_request_duration_seconds",
			Help:    "HTTP API request latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"endpoint"}),
	}
}
