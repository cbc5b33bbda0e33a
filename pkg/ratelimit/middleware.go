package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"
)

// LimitedFunc writes the response for a throttled request.
type LimitedFunc func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration)

// Middleware enforces per-IP limits. A nil limiter passes every request
// through. Retry-After is set before onLimited runs; a nil onLimited
// writes a plain 429.
func Middleware(limiter *PerIPLimiter, onLimited LimitedFunc) func(http.Handler) http.Handler {
	if onLimited == nil {
		onLimited = func(w http.ResponseWriter, _ *http.Request, _ time.Duration) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}
	}

	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := limiter.Allow(limiter.ClientIP(r))
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			secs := int64(math.Ceil(retryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.FormatInt(max(secs, 1), 10))
			onLimited(w, r, retryAfter)
		})
	}
}
