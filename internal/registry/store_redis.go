package registry

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct{ rdb *redis.Client }

// NewRedisStore connects to REDIS_URL and returns a store that shares the
// room-code space across replicas.
func NewRedisStore(redisURL string) (Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for redis store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{rdb: rdb}, nil
}

// NewRedisStoreFromClient wraps an existing client; used by tests.
func NewRedisStoreFromClient(rdb *redis.Client) Store { return &redisStore{rdb: rdb} }

func (s *redisStore) key(code string) string { return "sala:" + strings.TrimSpace(code) }

func (s *redisStore) Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, s.key(code), "1", ttl).Result()
}

func (s *redisStore) Refresh(ctx context.Context, code string, ttl time.Duration) error {
	return s.rdb.Expire(ctx, s.key(code), ttl).Err()
}

func (s *redisStore) Release(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, s.key(code)).Err()
}

func (s *redisStore) Close() error { return s.rdb.Close() }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
