package querycache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	versionKeyPrefix = "querycache:version:"
	bumpChannel      = "querycache.bump"
)

// RedisStore shares cached results and resource versions between console
// replicas. Version bumps are announced on a pub/sub channel.
type RedisStore struct {
	client  *redis.Client
	channel string
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, channel: bumpChannel}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querycache: get %s: %w", key, err)
	}
	return payload, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("querycache: set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("querycache: delete %s: %w", key, err)
	}
	return nil
}

// Version implements Store, initialising a missing counter to 1.
func (s *RedisStore) Version(ctx context.Context, resource string) (int64, error) {
	key := versionKeyPrefix + resource
	ver, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, fmt.Errorf("querycache: init version: %w", err)
		}
		return s.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, fmt.Errorf("querycache: version: %w", err)
	}
	if ver <= 0 {
		ver = 1
		if err := s.client.Set(ctx, key, ver, 0).Err(); err != nil {
			return 0, fmt.Errorf("querycache: reset version: %w", err)
		}
	}
	return ver, nil
}

// Bump implements Store and publishes the new version.
func (s *RedisStore) Bump(ctx context.Context, resource string) (int64, error) {
	if _, err := s.Version(ctx, resource); err != nil {
		return 0, err
	}
	ver, err := s.client.Incr(ctx, versionKeyPrefix+resource).Result()
	if err != nil {
		return 0, fmt.Errorf("querycache: bump: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, fmt.Sprintf("%s:%d", resource, ver)).Err(); err != nil {
		return ver, fmt.Errorf("querycache: publish bump: %w", err)
	}
	return ver, nil
}

// Subscribe implements Subscriber. fn runs on a background goroutine until ctx
// is cancelled.
func (s *RedisStore) Subscribe(ctx context.Context, fn func(resource string)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("querycache: subscribe: %w", err)
	}
	go func() {
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				resource := msg.Payload
				if i := strings.LastIndexByte(resource, ':'); i > 0 {
					resource = resource[:i]
				}
				if resource != "" {
					fn(resource)
				}
			}
		}
	}()
	return nil
}
