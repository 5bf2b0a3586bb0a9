package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTokenTTL covers an export's attempts including asynq's retry backoff.
const DefaultTokenTTL = 30 * time.Minute

const tokenKeyPrefix = "jobs:export:token:"

// ErrTokenGone is returned when an export's token has expired or was consumed.
var ErrTokenGone = errors.New("jobs: export token missing")

// TokenStore parks the bearer token of a queued export in redis under its
// request id. Task payloads, and the retried or archived copies asynq keeps,
// never contain the token.
type TokenStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewTokenStore wraps client. A non-positive ttl uses DefaultTokenTTL.
func NewTokenStore(client redis.UniversalClient, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenStore{client: client, ttl: ttl}
}

// Put stores token for requestID.
func (s *TokenStore) Put(ctx context.Context, requestID, token string) error {
	if err := s.client.Set(ctx, tokenKeyPrefix+requestID, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("jobs: store export token: %w", err)
	}
	return nil
}

// Get returns the token of requestID.
func (s *TokenStore) Get(ctx context.Context, requestID string) (string, error) {
	token, err := s.client.Get(ctx, tokenKeyPrefix+requestID).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTokenGone
	}
	if err != nil {
		return "", fmt.Errorf("jobs: load export token: %w", err)
	}
	return token, nil
}

// Delete removes the token of requestID.
func (s *TokenStore) Delete(ctx context.Context, requestID string) error {
	if err := s.client.Del(ctx, tokenKeyPrefix+requestID).Err(); err != nil {
		return fmt.Errorf("jobs: delete export token: %w", err)
	}
	return nil
}
