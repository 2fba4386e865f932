package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/fahrme/internal/config"
	"github.com/oggyb/fahrme/internal/logger"
)

// DefaultChannel is the pub/sub channel carrying Change signals.
const DefaultChannel = "fahrme:storage-events"

// RedisStore is a tab onto a storage context kept in redis. Every write is
// published on a channel so tabs in other processes can follow along.
type RedisStore struct {
	client  *redis.Client
	id      string
	channel string
	log     *slog.Logger
}

var _ Store = (*RedisStore)(nil)

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

func WithTabID(id string) RedisOption {
	return func(s *RedisStore) {
		if id != "" {
			s.id = id
		}
	}
}

func WithChannel(ch string) RedisOption {
	return func(s *RedisStore) { s.channel = ch }
}

func WithLogger(l *slog.Logger) RedisOption {
	return func(s *RedisStore) { s.log = l }
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		client:  client,
		id:      uuid.NewString(),
		channel: DefaultChannel,
		log:     logger.L(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// NewRedisStoreFromConfig builds the client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisStoreFromConfig(cfg *config.Config, opts ...RedisOption) *RedisStore {
	ro := &redis.Options{Addr: cfg.Redis.Addr}
	if cfg.Redis.Password != "" {
		ro.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		ro.DB = cfg.Redis.DB
	}
	opts = append([]RedisOption{WithTabID(cfg.Storage.TabID)}, opts...)
	return NewRedisStore(redis.NewClient(ro), opts...)
}

func (s *RedisStore) ID() string { return s.id }

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	msg, err := s.encode(Change{Key: key, Source: s.id})
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, value, 0)
		p.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}
	return s.publish(ctx, Change{Key: key, Source: s.id})
}

func (s *RedisStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, escapeGlob(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *RedisStore) Dispatch(ctx context.Context, key string) error {
	return s.publish(ctx, Change{Key: key, Source: s.id, Synthetic: true})
}

// Watch subscribes to the change channel. The subscription is confirmed
// before Watch returns, so no change published afterwards is missed.
func (s *RedisStore) Watch(ctx context.Context) (<-chan Change, error) {
	sub := s.client.Subscribe(ctx, s.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", s.channel, err)
	}

	out := make(chan Change, watchBuffer)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(m.Payload), &c); err != nil {
					s.log.Warn("dropping malformed storage event", "payload", m.Payload, "err", err)
					continue
				}
				if !c.Synthetic && c.Source == s.id {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) publish(ctx context.Context, c Change) error {
	msg, err := s.encode(c)
	if err != nil {
		return err
	}
	if err := s.client.Publish(ctx, s.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", c.Key, err)
	}
	return nil
}

func (s *RedisStore) encode(c Change) (string, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode change: %w", err)
	}
	return string(b), nil
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
