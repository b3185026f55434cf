// Package metrics is the shared Prometheus instrumentation for the
// three HTTP daemons (gateway, tracker, storage peer): one request
// counter and one latency histogram, both labeled by service so a
// single Prometheus target scraping all three can still tell them
// apart, plus the route and status of each request.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hivechunk_http_requests_total",
		Help: "Total HTTP requests handled, by service, route, method, and status code.",
	}, []string{"service", "route", "method", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hivechunk_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds, by service and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "route"})
)

// statusRecorder wraps a ResponseWriter to capture the status code a
// handler wrote, since http.ResponseWriter doesn't expose it back.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Middleware returns mux.MiddlewareFunc instrumenting every request
// against requestsTotal and requestDuration under service's name. It
// must be installed after routes are registered, since it reads the
// matched route's path template (not the raw, digest-bearing path) to
// keep the route label's cardinality bounded.
func Middleware(service string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			route := "unmatched"
			if m := mux.CurrentRoute(r); m != nil {
				if tmpl, err := m.GetPathTemplate(); err == nil {
					route = tmpl
				}
			}

			requestsTotal.WithLabelValues(service, route, r.Method, strconv.Itoa(rec.status)).Inc()
			requestDuration.WithLabelValues(service, route).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler returns the promhttp handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
