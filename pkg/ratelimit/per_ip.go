package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default per-IP limiter values.
const (
	DefaultCleanupInterval = 1 * time.Minute
	DefaultEntryTTL        = 5 * time.Minute
)

// PerIPConfig configures a PerIPLimiter.
type PerIPConfig struct {
	PerMinute       int              // sustained requests per minute, also the burst size
	TrustedProxies  []string         // CIDR ranges or IPs whose forwarding headers are honoured
	CleanupInterval time.Duration    // how often idle entries are dropped
	EntryTTL        time.Duration    // how long an entry lives without activity
	Now             func() time.Time // clock, defaults to time.Now
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// PerIPLimiter keeps one token bucket per client IP.
type PerIPLimiter struct {
	limit          rate.Limit
	burst          int
	now            func() time.Time
	trustedProxies []*net.IPNet
	entryTTL       time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewPerIPLimiter creates a limiter and starts its cleanup goroutine.
// PerMinute values below one are raised to one.
func NewPerIPLimiter(cfg PerIPConfig) *PerIPLimiter {
	perMinute := max(cfg.PerMinute, 1)
	cleanupInterval := cfg.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	entryTTL := cfg.EntryTTL
	if entryTTL <= 0 {
		entryTTL = DefaultEntryTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := &PerIPLimiter{
		limit:          rate.Every(time.Minute / time.Duration(perMinute)),
		burst:          perMinute,
		now:            now,
		trustedProxies: parseTrustedProxies(cfg.TrustedProxies),
		entryTTL:       entryTTL,
		entries:        make(map[string]*entry),
		stopCh:         make(chan struct{}),
		stoppedCh:      make(chan struct{}),
	}

	go rl.cleanup(cleanupInterval)

	return rl
}

// Burst returns the bucket capacity.
func (rl *PerIPLimiter) Burst() int {
	return rl.burst
}

// Allow consumes one token for ip. When the bucket is empty it reports how
// long the caller should wait before retrying.
func (rl *PerIPLimiter) Allow(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	e, ok := rl.entries[ip]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.entries[ip] = e
	}
	e.lastSeen = now
	rl.mu.Unlock()

	r := e.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// Len returns the number of tracked client addresses.
func (rl *PerIPLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.entries)
}

// ClientIP extracts the client IP from r. Forwarding headers are only
// honoured when the direct peer is a trusted proxy.
func (rl *PerIPLimiter) ClientIP(r *http.Request) string {
	remoteIP := extractRemoteIP(r.RemoteAddr)

	if rl.isTrustedProxy(remoteIP) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.IndexByte(xff, ','); idx != -1 {
				xff = xff[:idx]
			}
			if ip := strings.TrimSpace(xff); net.ParseIP(ip) != nil {
				return ip
			}
		}
		if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); net.ParseIP(ip) != nil {
			return ip
		}
	}

	return remoteIP
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (rl *PerIPLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
	<-rl.stoppedCh
}

func (rl *PerIPLimiter) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(rl.stoppedCh)

	for {
		select {
		case <-ticker.C:
			rl.removeStaleEntries()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *PerIPLimiter) removeStaleEntries() int {
	cutoff := rl.now().Add(-rl.entryTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for ip, e := range rl.entries {
		if e.lastSeen.Before(cutoff) {
			delete(rl.entries, ip)
			removed++
		}
	}
	return removed
}

func (rl *PerIPLimiter) isTrustedProxy(ip string) bool {
	if len(rl.trustedProxies) == 0 {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range rl.trustedProxies {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

func parseTrustedProxies(specs []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, spec := range specs {
		_, network, err := net.ParseCIDR(spec)
		if err != nil {
			ip := net.ParseIP(spec)
			if ip == nil {
				continue
			}
			bits := 128
			if ip.To4() != nil {
				bits = 32
			}
			network = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		nets = append(nets, network)
	}
	return nets
}

// extractRemoteIP strips the port from RemoteAddr when present.
func extractRemoteIP(remoteAddr string) string {
	ip, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return ip
}
