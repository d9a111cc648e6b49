package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore is the production Store, backed by a shared Redis instance so
// cached portal data survives bot restarts.
type RedisStore struct {
	client  *redis.Client
	nowFunc func() time.Time
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "[NewRedisStore] parse REDIS_URL")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "[NewRedisStore] ping")
	}
	return &RedisStore{client: client, nowFunc: time.Now}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string, out interface{}) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "[RedisStore.Get] get")
	}
	cachedAt, err := open(raw, out)
	if err != nil {
		// A corrupt entry behaves like a miss; the next Set overwrites it
		return time.Time{}, false, nil
	}
	return cachedAt, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := seal(value, s.nowFunc())
	if err != nil {
		return errors.Wrap(err, "[RedisStore.Set] encode")
	}
	return errors.Wrap(s.client.Set(ctx, key, raw, ttl).Err(), "[RedisStore.Set] set")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return errors.Wrap(s.client.Del(ctx, key).Err(), "[RedisStore.Delete] del")
}

func (s *RedisStore) ClearUser(ctx context.Context, chatID int64) error {
	patterns := []string{
		fmt.Sprintf("*:%d", chatID),
		fmt.Sprintf("*:%d:*", chatID),
	}
	for _, pattern := range patterns {
		iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return errors.Wrap(err, "[RedisStore.ClearUser] del")
			}
		}
		if err := iter.Err(); err != nil {
			return errors.Wrap(err, "[RedisStore.ClearUser] scan")
		}
	}
	return nil
}

// Close releases the underlying Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
