package oauth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultCodeTTL is how long an authorization code stays redeemable.
	DefaultCodeTTL = 600 * time.Second

	// maxAuthCodes is the maximum number of authorization codes stored
	// before entries are evicted.
	maxAuthCodes = 10000

	codeBytes = 32
)

// CodeRequest carries everything bound to a new authorization code.
type CodeRequest struct {
	UserID              string
	ClientID            string
	RedirectURI         string
	Scope               string
	State               string
	Nonce               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// CodeStoreConfig configures a CodeStore. Zero values select defaults.
type CodeStoreConfig struct {
	TTL      time.Duration
	PKCE     PKCEPolicy
	Capacity int
	Now      func() time.Time
}

// CodeStore holds issued authorization codes in memory.
type CodeStore struct {
	mu       sync.Mutex
	codes    map[string]*AuthorizationCode
	ttl      time.Duration
	pkce     PKCEPolicy
	capacity int
	now      func() time.Time
}

// NewCodeStore creates an empty store.
func NewCodeStore(cfg CodeStoreConfig) *CodeStore {
	s := &CodeStore{
		codes:    make(map[string]*AuthorizationCode),
		ttl:      cfg.TTL,
		pkce:     cfg.PKCE,
		capacity: cfg.Capacity,
		now:      clockOrNow(cfg.Now),
	}
	if s.ttl <= 0 {
		s.ttl = DefaultCodeTTL
	}
	if s.capacity <= 0 {
		s.capacity = maxAuthCodes
	}
	return s
}

// Issue generates a fresh code bound to req and stores it until the TTL
// elapses.
func (s *CodeStore) Issue(ctx context.Context, req CodeRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := uniqueToken(codeBytes, func(c string) bool {
		_, ok := s.codes[c]
		return ok
	})
	if err != nil {
		return "", fmt.Errorf("failed to issue authorization code: %w", err)
	}

	now := s.now()
	s.codes[code] = &AuthorizationCode{
		Code:                code,
		UserID:              req.UserID,
		ClientID:            req.ClientID,
		RedirectURI:         req.RedirectURI,
		Scope:               req.Scope,
		State:               req.State,
		Nonce:               req.Nonce,
		CodeChallenge:       req.CodeChallenge,
		CodeChallengeMethod: req.CodeChallengeMethod,
		IssuedAt:            now,
		ExpiresAt:           now.Add(s.ttl),
	}
	evictOverCapacity(s.codes, s.capacity, now, codeExpiry)

	return code, nil
}

// Consume redeems code. Lookup, expiry, binding and PKCE checks and the
// removal happen under one lock, so of two concurrent callers at most one
// succeeds. A binding or PKCE mismatch leaves the code in place.
func (s *CodeStore) Consume(code, clientID, redirectURI, codeVerifier string) (*AuthorizationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.codes[code]
	if !ok {
		return nil, ErrCodeNotFound
	}
	if s.now().After(rec.ExpiresAt) {
		delete(s.codes, code)
		return nil, ErrCodeExpired
	}
	if rec.ClientID != clientID || rec.RedirectURI != redirectURI {
		return nil, ErrCodeMismatch
	}
	if err := s.pkce.verify(rec, codeVerifier); err != nil {
		return nil, err
	}

	delete(s.codes, code)
	out := *rec
	return &out, nil
}

// Len returns the number of stored codes, expired ones included.
func (s *CodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.codes)
}

// Sweep removes codes that expired before now.
func (s *CodeStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sweepExpired(s.codes, now, codeExpiry)
}

// TTL returns the configured code lifetime.
func (s *CodeStore) TTL() time.Duration {
	return s.ttl
}

func codeExpiry(c *AuthorizationCode) time.Time { return c.ExpiresAt }
