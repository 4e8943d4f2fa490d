// Package metrics holds the Prometheus collectors for the client engine and
// the read API. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "meterclient"

// Outcomes of a single upstream attempt.
const (
	OutcomeSuccess      = "success"
	OutcomeUnauthorized = "unauthorized"
	OutcomeStatus       = "status"
	OutcomeTimeout      = "timeout"
	OutcomeTransport    = "transport"
	OutcomeInvalidBody  = "invalid_body"
	OutcomeFailure      = "failure"
)

type Metrics struct {
	Attempts       *prometheus.CounterVec
	Retries        *prometheus.CounterVec
	Latency        *prometheus.HistogramVec
	TokenRefreshes *prometheus.CounterVec
	Chunks         *prometheus.CounterVec
	EarlyStops     prometheus.Counter
	HTTPRequests   *prometheus.CounterVec
	HTTPLatency    *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_attempts_total",
			Help:      "Upstream API attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		Retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Backoff waits before a retried upstream attempt.",
		}, []string{"endpoint"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_attempt_duration_seconds",
			Help:      "Duration of single upstream attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Bearer token exchange attempts by outcome.",
		}, []string{"outcome"}),
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_fetched_total",
			Help:      "Date-range chunks fetched during paginated queries.",
		}, []string{"series_type"}),
		EarlyStops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pagination_early_stops_total",
			Help:      "Paginated queries that stopped at an empty chunk.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Read API requests by route and status code.",
		}, []string{"route", "code"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Read API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.Attempts,
		m.Retries,
		m.Latency,
		m.TokenRefreshes,
		m.Chunks,
		m.EarlyStops,
		m.HTTPRequests,
		m.HTTPLatency,
	)
	return m
}

func (m *Metrics) ObserveAttempt(endpoint, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(endpoint, outcome).Inc()
	m.Latency.WithLabelValues(endpoint).Observe(d.Seconds())
}

func (m *Metrics) ObserveRetry(endpoint string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(endpoint).Inc()
}

func (m *Metrics) ObserveTokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveChunk(seriesType string) {
	if m == nil {
		return
	}
	m.Chunks.WithLabelValues(seriesType).Inc()
}

func (m *Metrics) ObserveEarlyStop() {
	if m == nil {
		return
	}
	m.EarlyStops.Inc()
}

func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, code).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
}
