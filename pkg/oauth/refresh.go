package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultRefreshTTL is the refresh token lifetime, 14 days.
	DefaultRefreshTTL = 14 * 24 * time.Hour

	// maxRefreshTokens is the maximum number of refresh tokens stored.
	maxRefreshTokens = 100000

	refreshBytes = 64
)

// RefreshStoreConfig configures a RefreshStore. Zero values select
// defaults.
type RefreshStoreConfig struct {
	TTL      time.Duration
	Capacity int
	Now      func() time.Time
}

// RefreshStore holds issued refresh tokens in memory. Validating a token
// does not consume it.
type RefreshStore struct {
	mu       sync.Mutex
	tokens   map[string]*RefreshToken
	ttl      time.Duration
	capacity int
	now      func() time.Time
}

// NewRefreshStore creates an empty store.
func NewRefreshStore(cfg RefreshStoreConfig) *RefreshStore {
	s := &RefreshStore{
		tokens:   make(map[string]*RefreshToken),
		ttl:      cfg.TTL,
		capacity: cfg.Capacity,
		now:      clockOrNow(cfg.Now),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultRefreshTTL
	}
	if s.capacity <= 0 {
		s.capacity = maxRefreshTokens
	}
	return s
}

// Issue creates a refresh token for userID and clientID.
func (s *RefreshStore) Issue(ctx context.Context, userID, clientID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := uniqueToken(refreshBytes, func(t string) bool {
		_, ok := s.tokens[t]
		return ok
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue refresh token: %w", err)
	}

	now := s.now()
	s.tokens[tok] = &RefreshToken{
		Token:     tok,
		UserID:    userID,
		ClientID:  clientID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	evictOverCapacity(s.tokens, s.capacity, now, refreshExpiry)

	return tok, nil
}

// Validate returns the record for token if it is live and was issued to
// clientID. Expired tokens are removed.
func (s *RefreshStore) Validate(token, clientID string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tokens[token]
	if !ok {
		return nil, ErrRefreshNotFound
	}
	if s.now().After(rec.ExpiresAt) {
		delete(s.tokens, token)
		return nil, ErrRefreshExpired
	}
	if rec.ClientID != clientID {
		return nil, ErrRefreshMismatch
	}

	out := *rec
	return &out, nil
}

// Len returns the number of stored tokens, expired ones included.
func (s *RefreshStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Sweep removes tokens that expired before now.
func (s *RefreshStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sweepExpired(s.tokens, now, refreshExpiry)
}

func refreshExpiry(t *RefreshToken) time.Time { return t.ExpiresAt }
