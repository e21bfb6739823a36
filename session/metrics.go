package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for API requests.
//
// Metrics:
//   - reddit_requests_total{method,status} - requests by final status class
//   - reddit_request_duration_seconds{method} - per-attempt latency
//   - reddit_request_retries_total - retried attempts
//   - reddit_ratelimit_remaining - last X-Ratelimit-Remaining reported
type Metrics struct {
	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RetriesTotal       prometheus.Counter
	RateLimitRemaining prometheus.Gauge
}

// NewMetrics creates the request metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reddit_requests_total",
				Help: "Total number of reddit API requests",
			},
			[]string{"method", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "reddit_request_duration_seconds",
				Help:    "Duration of reddit API request attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		RetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "reddit_request_retries_total",
			Help: "Total number of retried reddit API request attempts",
		}),
		RateLimitRemaining: f.NewGauge(prometheus.GaugeOpts{
			Name: "reddit_ratelimit_remaining",
			Help: "Requests remaining in the current reddit rate limit window",
		}),
	}
}
