package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP server metrics.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Polling and upstream API metrics.
var (
	PollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesamum_poll_fetches_total",
			Help: "Fetches performed by pollers, by kind (explicit/background) and outcome.",
		},
		[]string{"poller", "kind", "outcome"},
	)

	PollFetchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sesamum_poll_fetch_duration_seconds",
			Help:    "Duration of poller fetch functions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"poller"},
	)

	PollSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesamum_poll_skipped_total",
			Help: "Interval ticks skipped by pollers, by reason.",
		},
		[]string{"poller", "reason"},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sesamum_upstream_requests_total",
			Help: "Requests sent to the credentialing API.",
		},
		[]string{"method", "path", "status"},
	)

	UpstreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sesamum_upstream_request_duration_seconds",
			Help:    "Latency of requests sent to the credentialing API.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var initOnce sync.Once

// Init registers all collectors in the default registry. Safe to call twice.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			PollFetches, PollFetchDuration, PollSkipped,
			UpstreamRequests, UpstreamDuration,
		)
	})
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records in-flight, count and latency for every request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// CanonicalPath collapses numeric identifiers so metric label cardinality
// stays bounded: /api/v1/events/12/ becomes /api/v1/events/:id/.
func CanonicalPath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	parts := strings.Split(p, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if _, err := strconv.ParseInt(part, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Flush keeps SSE handlers working behind the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
