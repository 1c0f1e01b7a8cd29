// Package metrics holds the Prometheus collectors of the gallery service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_http_requests_total",
			Help: "HTTP requests served, by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gallery_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// PaintingOps counts painting service operations by outcome.
	PaintingOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_painting_operations_total",
			Help: "Painting operations, by operation and result.",
		},
		[]string{"op", "result"},
	)

	// ReorderBatchSize observes how many paintings each reorder touches.
	ReorderBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gallery_reorder_batch_size",
		Help:    "Number of order updates per reorder request.",
		Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
	})

	// UploadBytes observes accepted upload sizes before processing.
	UploadBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gallery_upload_bytes",
		Help:    "Size of accepted image uploads in bytes.",
		Buckets: prometheus.ExponentialBuckets(64<<10, 4, 8),
	})

	// ContactMessages counts contact form submissions by result.
	ContactMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gallery_contact_messages_total",
			Help: "Contact form submissions, by result.",
		},
		[]string{"result"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request count and latency per route. Requests are
// labelled with the ServeMux pattern that served them, or with the
// normalized path when no pattern matched.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := routeLabel(r)
		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// routeLabel uses the pattern ServeMux stored on r, without its method.
func routeLabel(r *http.Request) string {
	if r.Pattern != "" {
		_, route, found := strings.Cut(r.Pattern, " ")
		if !found {
			route = r.Pattern
		}
		return route
	}
	return NormalizePath(r.URL.Path)
}

// knownPaths are the fixed routes of the API.
var knownPaths = map[string]bool{
	"/api/auth/login":          true,
	"/api/auth/logout":         true,
	"/api/auth/password":       true,
	"/api/users":               true,
	"/api/paintings":           true,
	"/api/paintings/order":     true,
	"/api/paintings/normalize": true,
	"/api/upload":              true,
	"/api/contact":             true,
	"/metrics":                 true,
	"/healthz":                 true,
}

// NormalizePath maps a request path onto a bounded set of labels. IDs and
// image names become placeholders and anything outside the API is "other".
func NormalizePath(path string) string {
	switch {
	case knownPaths[path]:
		return path
	case strings.HasPrefix(path, "/images/"):
		return "/images/{name}"
	case strings.HasPrefix(path, "/api/paintings/"):
		return "/api/paintings/{id}"
	case strings.HasPrefix(path, "/api/users/"):
		return "/api/users/{id}"
	}
	return "other"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
