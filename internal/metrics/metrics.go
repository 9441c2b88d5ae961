// Package metrics exposes Prometheus collectors for meeting lifecycle,
// check-in and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/meeting-checkin/internal/application"
)

const namespace = "meetings"

// Collector owns a private registry so tests and multiple servers do not share state.
type Collector struct {
	registry *prometheus.Registry

	transitions  *prometheus.CounterVec
	checkIns     *prometheus.CounterVec
	tokensIssued prometheus.Counter
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	rateLimited  prometheus.Counter
}

// NewCollector registers every collector plus the Go and process collectors.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Meeting lifecycle operations by operation and error kind.",
		}, []string{"operation", "result"}),
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkins_total",
			Help:      "Public check-in attempts by outcome.",
		}, []string{"outcome"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkin_tokens_issued_total",
			Help:      "Check-in tokens issued.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkin_rate_limited_total",
			Help:      "Check-in requests rejected by the rate limiter.",
		}),
	}
	c.registry.MustRegister(
		c.transitions,
		c.checkIns,
		c.tokensIssued,
		c.requests,
		c.duration,
		c.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// ObserveTransition implements application.MetricsRecorder. An empty error
// kind is recorded as "ok".
func (c *Collector) ObserveTransition(operation string, errorKind string) {
	if errorKind == "" {
		errorKind = "ok"
	}
	c.transitions.WithLabelValues(operation, errorKind).Inc()
}

// ObserveCheckIn implements application.MetricsRecorder.
func (c *Collector) ObserveCheckIn(outcome application.CheckInOutcome) {
	c.checkIns.WithLabelValues(string(outcome)).Inc()
}

// ObserveTokenIssued implements application.MetricsRecorder.
func (c *Collector) ObserveTokenIssued() {
	c.tokensIssued.Inc()
}

// ObserveRateLimited counts a rejected check-in.
func (c *Collector) ObserveRateLimited() {
	c.rateLimited.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Middleware records request counts and durations labelled by the matched route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(rec.status)
		c.requests.WithLabelValues(r.Method, path, status).Inc()
		c.duration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	r.wrote = true
	return r.ResponseWriter.Write(b)
}

var _ application.MetricsRecorder = (*Collector)(nil)
