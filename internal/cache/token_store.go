package cache

import (
	"context"
	"time"
)

// TokenStore keeps gateway OAuth tokens in redis so api and worker processes share them
type TokenStore struct{}

// NewTokenStore returns nil when redis is disabled, so callers fall back to in-process caching
func NewTokenStore() *TokenStore {
	if !Enabled() {
		return nil
	}
	return &TokenStore{}
}

// GetToken reads a cached token
func (*TokenStore) GetToken(ctx context.Context, key string) (string, bool, error) {
	return GetString(ctx, key)
}

// SetToken caches a token for ttl
func (*TokenStore) SetToken(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return SetString(ctx, key, token, ttl)
}
