// Package telemetry unifies OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes used as the "outcome" label.
const (
	OutcomeCreated  = "created"
	OutcomeExisting = "existing"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"
	OutcomeRecorded = "recorded"
)

var (
	subscribeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calis_subscribe_total",
			Help: "Total number of subscription requests, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	welcomeSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calis_welcome_emails_sent_total",
			Help: "Total number of welcome emails handed to the mail provider.",
		},
	)

	trackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calis_track_events_total",
			Help: "Total number of tracking calls, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	secondaryWriteFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calis_secondary_write_failures_total",
			Help: "Writes whose failure was logged but not surfaced to the caller.",
		},
		[]string{"op"},
	)

	canonicalRedirectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "calis_canonical_redirects_total",
			Help: "Requests redirected to the canonical host.",
		},
	)

	mailThrottleDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "calis_mail_throttle_delay_seconds",
			Help:    "Histogram of time spent waiting for the mail rate limiter.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			routePattern = rctx.RoutePattern()
		}
		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveSubscribe counts one subscription request.
func ObserveSubscribe(outcome string) {
	subscribeTotal.WithLabelValues(outcome).Inc()
}

// ObserveWelcomeSent counts a delivered welcome email.
func ObserveWelcomeSent() {
	welcomeSentTotal.Inc()
}

// ObserveTrack counts one tracking call. Event types are client-chosen and
// stay out of the labels.
func ObserveTrack(outcome string) {
	trackEventsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSecondaryWriteFailure counts a swallowed write failure for op.
func ObserveSecondaryWriteFailure(op string) {
	secondaryWriteFailuresTotal.WithLabelValues(op).Inc()
}

// ObserveCanonicalRedirect counts a canonical host redirect.
func ObserveCanonicalRedirect() {
	canonicalRedirectsTotal.Inc()
}

// ObserveMailThrottleDelay records how long a send waited on the limiter.
func ObserveMailThrottleDelay(d time.Duration) {
	mailThrottleDelaySeconds.Observe(d.Seconds())
}
