package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/experta/session-engine/token"
)

// Config is parsed from environment variables (caarlos0/env).
type Config struct {
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
}

// New creates a Redis client and verifies the connection.
func New(ctx context.Context, cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

const revokedKeyPrefix = "revoked-token:"

var _ token.RevokedTokenCache = (*RevokedTokenCache)(nil)

// RevokedTokenCache implements token.RevokedTokenCache on Redis. Entries
// expire with the token itself, so no explicit cleanup pass is needed.
type RevokedTokenCache struct {
	client *redis.Client
}

func NewRevokedTokenCache(client *redis.Client) *RevokedTokenCache {
	return &RevokedTokenCache{client: client}
}

func (c *RevokedTokenCache) Add(ctx context.Context, jti string, exp time.Time) error {
	ttl := time.Until(exp)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return errors.Wrap(err, "cache revoked token")
	}
	return nil
}

func (c *RevokedTokenCache) IsRevoked(ctx context.Context, jti string) bool {
	n, err := c.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	return err == nil && n > 0
}

// Cleanup is a no-op: Redis key TTLs expire revoked entries on their own.
func (c *RevokedTokenCache) Cleanup(_ context.Context) {}
