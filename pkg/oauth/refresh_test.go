package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRefreshStore_Validate(t *testing.T) {
	clock := newFakeClock()
	s := NewRefreshStore(RefreshStoreConfig{Now: clock.Now})

	tok, err := s.Issue(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Len(t, tok, 86)

	rec, err := s.Validate(tok, "c1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, clock.Now().Add(14*24*time.Hour), rec.ExpiresAt)

	// Validation does not consume the token.
	_, err = s.Validate(tok, "c1")
	require.NoError(t, err)

	_, err = s.Validate(tok, "c2")
	assert.ErrorIs(t, err, ErrRefreshMismatch)
	_, err = s.Validate("nope", "c1")
	assert.ErrorIs(t, err, ErrRefreshNotFound)
}

func TestRefreshStore_Expiry(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
	}{
		{"13 days", 13 * 24 * time.Hour, nil},
		{"exactly 14 days", 14 * 24 * time.Hour, nil},
		{"14 days and a second", 14*24*time.Hour + time.Second, ErrRefreshExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			s := NewRefreshStore(RefreshStoreConfig{Now: clock.Now})
			tok, err := s.Issue(context.Background(), "u", "c")
			require.NoError(t, err)

			clock.Advance(tt.elapsed)
			_, err = s.Validate(tok, "c")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, 1, s.Len())
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, s.Len(), "expired token is removed")
		})
	}
}

func TestRefreshStore_SweepAndCapacity(t *testing.T) {
	clock := newFakeClock()
	s := NewRefreshStore(RefreshStoreConfig{Now: clock.Now, TTL: time.Hour, Capacity: 2})

	a, err := s.Issue(context.Background(), "u", "c")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.Issue(context.Background(), "u", "c")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = s.Issue(context.Background(), "u", "c")
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	_, err = s.Validate(a, "c")
	assert.ErrorIs(t, err, ErrRefreshNotFound)

	assert.Equal(t, 2, s.Sweep(clock.Now().Add(2*time.Hour)))
	assert.Equal(t, 0, s.Len())
}
