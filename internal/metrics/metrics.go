// Package metrics provides Prometheus metrics for the incipit backend.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/starford/incipit/internal/models"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incipit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incipit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Compile metrics
	compilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incipit_compiles_total",
			Help: "Total number of finished compilations",
		},
		[]string{"mode", "status"},
	)

	compileDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incipit_compile_duration_seconds",
			Help:    "Wall time of a compilation including engine startup",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"mode"},
	)

	compileOutputBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "incipit_compile_output_bytes",
			Help:    "Size of produced PDF documents",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
		},
	)

	compilesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "incipit_compiles_in_flight",
			Help: "Number of compilations currently running",
		},
	)

	// Event stream metrics
	sseClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "incipit_sse_clients",
			Help: "Number of connected event stream clients",
		},
	)
)

// CompileStarted records a compilation entering the engine.
func CompileStarted(models.CompileRecord) {
	compilesInFlight.Inc()
}

// CompileFinished records the outcome of a compilation.
func CompileFinished(rec models.CompileRecord) {
	compilesInFlight.Dec()
	status := "success"
	if !rec.Success {
		status = "failure"
	}
	compilesTotal.WithLabelValues(rec.Mode, status).Inc()
	compileDuration.WithLabelValues(rec.Mode).Observe(rec.Duration.Seconds())
	if rec.Success {
		compileOutputBytes.Observe(float64(rec.OutputBytes))
	}
}

// SetSSEClients records the number of connected event stream clients.
func SetSSEClients(n int) {
	sseClients.Set(float64(n))
}

// Middleware records request counts and latencies labelled by route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
