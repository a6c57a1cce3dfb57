package shared

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenStore issues and resolves opaque bearer tokens backed by Redis.
// A token maps to the principal ID it was issued for and expires after
// the configured TTL unless revoked first.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// Issue creates a fresh token for the principal.
func (s *TokenStore) Issue(ctx context.Context, principalID int64) (string, error) {
	token := uuid.NewString()
	err := s.client.Set(ctx, s.key(token), strconv.FormatInt(principalID, 10), s.ttl).Err()
	if err != nil {
		return "", fmt.Errorf("shared: store token: %w: %v", ErrBackendUnavailable, err)
	}
	return token, nil
}

// Resolve returns the principal ID the token was issued for. Unknown or
// expired tokens yield ErrUnauthenticated; a Redis outage yields
// ErrBackendUnavailable so callers never treat it as a missing session.
func (s *TokenStore) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrUnauthenticated
	}
	raw, err := s.client.Get(ctx, s.key(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrUnauthenticated
		}
		return 0, fmt.Errorf("shared: resolve token: %w: %v", ErrBackendUnavailable, err)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrUnauthenticated
	}
	return id, nil
}

// Revoke deletes the token. Revoking an unknown token is not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("shared: revoke token: %w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

func (s *TokenStore) key(token string) string {
	return "token:" + token
}
