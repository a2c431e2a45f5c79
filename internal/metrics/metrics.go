// Package metrics provides Prometheus instrumentation for the simulator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts settled trades, partitioned by account scope
	// (user, competition, team, competition_team) and side (buy, sell).
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksim_trades_total",
		Help: "Total number of trades settled",
	}, []string{"scope", "side"})

	// TradeLatency tracks settlement latency including the price lookup.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stocksim_trade_latency_seconds",
		Help:    "Trade settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeRejections counts trades rejected before settlement.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksim_trade_rejections_total",
		Help: "Trades rejected by a precondition",
	}, []string{"reason"})

	// PositionLimitRejections counts buys blocked by a competition limit.
	PositionLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocksim_position_limit_rejections_total",
		Help: "Buys rejected by a competition position limit",
	})

	// QuoteCacheHits / QuoteCacheMisses track the Redis quote cache.
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocksim_quote_cache_hits_total",
		Help: "Price lookups served from the Redis cache",
	})
	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocksim_quote_cache_misses_total",
		Help: "Price lookups that fell through to the vendor",
	})

	// SnapshotRuns counts completed daily start-of-day snapshot runs.
	SnapshotRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocksim_snapshot_runs_total",
		Help: "Completed daily snapshot job runs",
	})

	// SnapshotAccounts counts accounts updated by the snapshot job.
	SnapshotAccounts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stocksim_snapshot_accounts_total",
		Help: "Accounts whose start-of-day value was recorded",
	})

	// WebSocketClients tracks connected trade-feed clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stocksim_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stocksim_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stocksim_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route shapes here are flat
		// enough that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
