package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/rpc"
)

// ProfileTTL is how long a cached profile lives without being read.
const ProfileTTL = time.Hour

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForProfile generates Redis key for a user's public profile
func (c *RedisCache) KeyForProfile(userID string) string {
	return fmt.Sprintf("identity:profile:%s", userID)
}

// KeyForLoginAttempts generates Redis key for the login throttle of an email
func (c *RedisCache) KeyForLoginAttempts(email string) string {
	return fmt.Sprintf("identity:login:%s", strings.ToLower(email))
}

func (c *RedisCache) SetProfile(ctx context.Context, p rpc.Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForProfile(p.ID), raw, ProfileTTL).Err()
}

// GetProfile reports ok == false on a cache miss.
func (c *RedisCache) GetProfile(ctx context.Context, userID string) (rpc.Profile, bool, error) {
	key := c.KeyForProfile(userID)
	val, err := c.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return rpc.Profile{}, false, nil // cache miss
	} else if err != nil {
		return rpc.Profile{}, false, err
	}

	var p rpc.Profile
	if err := json.Unmarshal(val, &p); err != nil {
		// unreadable entries are treated as a miss and dropped
		_ = c.Client.Del(ctx, key).Err()
		return rpc.Profile{}, false, nil
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, ProfileTTL).Err()
	return p, true, nil
}

func (c *RedisCache) DelProfile(ctx context.Context, userID string) error {
	return c.Client.Del(ctx, c.KeyForProfile(userID)).Err()
}

// AllowLogin counts a login attempt for email and reports whether it is
// within limit attempts per window. The window starts with the first attempt.
func (c *RedisCache) AllowLogin(ctx context.Context, email string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	key := c.KeyForLoginAttempts(email)

	// INCR and set EXPIRE if new
	cnt, err := c.Client.Incr(ctx, key).Result()
	if err != nil {
		return true, err
	}
	if cnt == 1 {
		c.Client.Expire(ctx, key, window)
	}
	return cnt <= int64(limit), nil
}

// ResetLogin forgets the attempts of email after a successful login.
func (c *RedisCache) ResetLogin(ctx context.Context, email string) error {
	return c.Client.Del(ctx, c.KeyForLoginAttempts(email)).Err()
}
