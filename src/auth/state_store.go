package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aromapulse/authgate/src/cache"
	"github.com/aromapulse/authgate/src/models"
)

const stateKeyPrefix = "oauth_state:"

type StateStore struct {
	cache *cache.RedisCache
	ttl   time.Duration
	now   func() time.Time
}

func NewStateStore(c *cache.RedisCache, ttl time.Duration) *StateStore {
	return &StateStore{
		cache: c,
		ttl:   ttl,
		now:   time.Now,
	}
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *StateStore) TTL() time.Duration {
	return s.ttl
}

func (s *StateStore) Save(ctx context.Context, state string, provider models.Provider, returnTo string) error {
	oauthState := OAuthState{
		State:     state,
		Provider:  provider,
		ReturnTo:  returnTo,
		ExpiresAt: s.now().Add(s.ttl),
	}

	if err := s.cache.SetJSON(ctx, stateKeyPrefix+state, oauthState, s.ttl); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Consume returns the pending login for state and removes it. A missing,
// already used, or expired state yields nil with no error.
func (s *StateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	if state == "" {
		return nil, nil
	}

	var oauthState OAuthState
	found, err := s.cache.TakeJSON(ctx, stateKeyPrefix+state, &oauthState)
	if err != nil {
		return nil, fmt.Errorf("failed to consume state: %w", err)
	}
	if !found {
		return nil, nil
	}

	if !s.now().Before(oauthState.ExpiresAt) {
		return nil, nil
	}

	return &oauthState, nil
}
