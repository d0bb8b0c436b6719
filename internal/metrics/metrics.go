package metrics

import (
	"net/http" // Handler type
	"time"     // Durations

	"github.com/prometheus/client_golang/prometheus"            // Collectors
	"github.com/prometheus/client_golang/prometheus/collectors" // Process and Go runtime collectors
	"github.com/prometheus/client_golang/prometheus/promhttp"   // Exposition handler
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "digipiggy",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digipiggy",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "digipiggy",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	deposits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "digipiggy",
			Subsystem: "ledger",
			Name:      "deposits_total",
			Help:      "Deposits attempted, by outcome.",
		},
		[]string{"outcome"},
	)

	depositAmount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "digipiggy",
			Subsystem: "ledger",
			Name:      "deposited_amount_total",
			Help:      "Sum of committed deposit amounts.",
		},
	)

	inconsistentWallets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "digipiggy",
			Subsystem: "ledger",
			Name:      "inconsistent_wallets",
			Help:      "Wallets whose balance differed from their ledger at the last sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		deposits,
		depositAmount,
		inconsistentWallets,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncInFlight marks a request as started and returns the matching decrement.
func IncInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(method, path, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RecordDeposit records a deposit outcome; amount only counts on success.
func RecordDeposit(ok bool, amount float64) {
	if !ok {
		deposits.WithLabelValues("failed").Inc()
		return
	}
	deposits.WithLabelValues("committed").Inc()
	depositAmount.Add(amount)
}

// SetInconsistentWallets publishes the result of the last reconciliation sweep.
func SetInconsistentWallets(n int) {
	inconsistentWallets.Set(float64(n))
}
