package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zenotheomni/fifth-dimension-3d-world-sub001/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(duration)
	})
}

// normalizePath collapses ids out of paths to avoid high cardinality in
// metrics labels.
func normalizePath(path string) string {
	if strings.HasPrefix(path, "/ws/events/") {
		return "/ws/events/:id"
	}
	if !strings.HasPrefix(path, "/events/") {
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/events/"), "/")
	switch {
	case len(parts) >= 4 && parts[1] == "tickets":
		return "/events/:id/tickets/:ticketID/" + parts[3]
	case len(parts) >= 4 && parts[1] == "messages":
		return "/events/:id/messages/:messageID/" + parts[3]
	case len(parts) >= 2:
		return "/events/:id/" + parts[1]
	default:
		return "/events/:id"
	}
}
