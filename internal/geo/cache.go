package geo

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skotchmaster/waterworks/internal/logging"
)

var ErrCacheMiss = errors.New("geo: cache miss")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type RedisStore struct {
	Client *redis.Client
}

func (s RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	return v, err
}

func (s RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.Client.Set(ctx, key, value, ttl).Err()
}

// Cached memoizes successful lookups. Cache errors are logged and bypassed.
type Cached struct {
	Store Store
	Next  Lookup
	TTL   time.Duration
}

func cacheKey(ip string) string { return "geo:" + ip }

func (c *Cached) Lookup(ctx context.Context, ip string) (string, error) {
	l := logging.FromContext(ctx)

	v, err := c.Store.Get(ctx, cacheKey(ip))
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		l.Warn("geo_cache_get_failed", "ip", ip, "error", err)
	}

	loc, err := c.Next.Lookup(ctx, ip)
	if err != nil {
		return "", err
	}
	if loc != UnknownLocation {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		if err := c.Store.Set(ctx, cacheKey(ip), loc, ttl); err != nil {
			l.Warn("geo_cache_set_failed", "ip", ip, "error", err)
		}
	}
	return loc, nil
}

func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
