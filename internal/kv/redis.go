package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisPrefix namespaces plaza keys in a shared Redis
const DefaultRedisPrefix = "plaza:"

// RedisStore keeps values as plain Redis strings. Every write is announced
// on the <prefix>changes channel tagged with the writer's instance id.
type RedisStore struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	quota    int
	instance string
	logger   *zerolog.Logger
}

// RedisOption configures a RedisStore
type RedisOption func(*RedisStore)

// WithPrefix sets the key prefix
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithTTL expires keys after ttl (session-scoped use); 0 keeps them forever
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

// WithValueQuota rejects single values larger than n bytes
func WithValueQuota(n int) RedisOption {
	return func(s *RedisStore) { s.quota = n }
}

// WithRedisLogger sets the logger
func WithRedisLogger(logger *zerolog.Logger) RedisOption {
	return func(s *RedisStore) { s.logger = logger }
}

// NewRedisStore wraps an existing client
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	nop := zerolog.Nop()
	s := &RedisStore{
		client:   client,
		prefix:   DefaultRedisPrefix,
		quota:    DefaultQuota,
		instance: uuid.NewString(),
		logger:   &nop,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewRedisClient creates a client from a redis:// URL or a bare host:port
// and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}

func (s *RedisStore) channel() string {
	return s.prefix + "changes"
}

// Get implements Store
func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// Set implements Store
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if s.quota > 0 && len(value) > s.quota {
		return quotaError(key, len(value), s.quota)
	}
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		if strings.HasPrefix(err.Error(), "OOM") {
			return fmt.Errorf("writing %s: %v: %w", key, err, ErrQuotaExceeded)
		}
		return err
	}
	s.announce(ctx, key)
	return nil
}

// Remove implements Store
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return err
	}
	s.announce(ctx, key)
	return nil
}

func (s *RedisStore) announce(ctx context.Context, key string) {
	if err := s.client.Publish(ctx, s.channel(), s.instance+"|"+key).Err(); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to announce change")
	}
}

// Watch implements Store with a pub/sub subscription
func (s *RedisStore) Watch(ctx context.Context, key string, fn func()) error {
	sub := s.client.Subscribe(ctx, s.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	go func() {
		defer func() { _ = sub.Close() }()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if s.isPeerChange(msg.Payload, key) {
					fn()
				}
			}
		}
	}()
	return nil
}

// isPeerChange reports whether payload announces key written by another instance
func (s *RedisStore) isPeerChange(payload, key string) bool {
	origin, changed, ok := strings.Cut(payload, "|")
	return ok && changed == key && origin != s.instance
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
