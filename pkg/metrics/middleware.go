package metrics

import (
	"net/http"
	"time"
)

// RouteFunc maps a request to a low-cardinality route label. It is called
// after the handler ran, so router-populated patterns are available.
type RouteFunc func(*http.Request) string

// Middleware records request counts and latency. A nil route uses the raw
// URL path, which is only safe for fixed route sets.
func (r *Registry) Middleware(route RouteFunc) func(http.Handler) http.Handler {
	if route == nil {
		route = func(req *http.Request) string { return req.URL.Path }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, req)

			r.RecordHTTPRequest(req.Method, route(req), sw.status, time.Since(start))
		})
	}
}

// statusWriter captures the status code written by the handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
