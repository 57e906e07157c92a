package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "revoked:"

var ErrEmptyTokenID = errors.New("empty token id")

// Store keeps revoked credential ids in Redis. Entries expire after ttl,
// which must be at least the maximum credential lifetime: past that point
// the credential is rejected as expired anyway.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Revoke records jti as revoked. Revoking an id twice is not an error and
// keeps the first revocation timestamp.
func (s *Store) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return ErrEmptyTokenID
	}
	revokedAt := s.now().UTC().Format(time.RFC3339)
	if err := s.client.SetNX(ctx, keyPrefix+jti, revokedAt, s.ttl).Err(); err != nil {
		return fmt.Errorf("revoke %s: %w", jti, err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, ErrEmptyTokenID
	}
	n, err := s.client.Exists(ctx, keyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation %s: %w", jti, err)
	}
	return n > 0, nil
}

// RevokedAt returns when jti was revoked, or redis.Nil when it was not.
func (s *Store) RevokedAt(ctx context.Context, jti string) (time.Time, error) {
	raw, err := s.client.Get(ctx, keyPrefix+jti).Result()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}
