// Package ratelimit throttles requests per client IP.
//
// Each client address gets its own golang.org/x/time/rate limiter that
// refills continuously at the configured per-minute rate and can burst up
// to that many requests. Idle entries are dropped by a background cleanup
// loop, so Stop must be called when the limiter is discarded.
package ratelimit
