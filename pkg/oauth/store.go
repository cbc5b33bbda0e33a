package oauth

import (
	"fmt"
	"time"

	"github.com/getmockd/mockidp/internal/id"
)

// maxIssueAttempts bounds retries when a freshly generated value collides
// with a live entry.
const maxIssueAttempts = 3

// evictOverCapacity trims m to capacity. Expired entries go first; if the
// map is still over capacity the entry closest to expiry is removed until
// it fits.
func evictOverCapacity[V any](m map[string]V, capacity int, now time.Time, expiresAt func(V) time.Time) {
	if capacity <= 0 || len(m) <= capacity {
		return
	}
	for k, v := range m {
		if now.After(expiresAt(v)) {
			delete(m, k)
		}
	}
	for len(m) > capacity {
		var oldestKey string
		var oldestTime time.Time
		for k, v := range m {
			if oldestKey == "" || expiresAt(v).Before(oldestTime) {
				oldestKey = k
				oldestTime = expiresAt(v)
			}
		}
		if oldestKey == "" {
			return
		}
		delete(m, oldestKey)
	}
}

// sweepExpired removes every entry that expired before now and returns how
// many were removed.
func sweepExpired[V any](m map[string]V, now time.Time, expiresAt func(V) time.Time) int {
	removed := 0
	for k, v := range m {
		if now.After(expiresAt(v)) {
			delete(m, k)
			removed++
		}
	}
	return removed
}

// uniqueToken draws random tokens of n bytes until taken reports false.
// Callers hold the store lock.
func uniqueToken(n int, taken func(string) bool) (string, error) {
	for range maxIssueAttempts {
		tok, err := id.Token(n)
		if err != nil {
			return "", err
		}
		if !taken(tok) {
			return tok, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique token after %d attempts", maxIssueAttempts)
}

func clockOrNow(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}
