package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/iammrherb/authensi-smart-sub008/internal/engine"
)

const defaultPrefix = "scoping:decision:"

// Redis implements DecisionCache on a Redis server.
type Redis struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration for cached evaluations. Zero keeps them forever.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis connects using a redis:// URL.
func NewRedis(url string, opts ...Option) (*Redis, error) {
	parsed, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(parsed), opts...), nil
}

// NewFromClient wraps an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Redis {
	r := &Redis{
		client: client,
		prefix: defaultPrefix,
		ttl:    10 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

func (r *Redis) Get(ctx context.Context, key string) (engine.Evaluation, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return engine.Evaluation{}, ErrMiss
		}
		return engine.Evaluation{}, fmt.Errorf("redis get: %w", err)
	}
	var eval engine.Evaluation
	if err := json.Unmarshal(val, &eval); err != nil {
		return engine.Evaluation{}, fmt.Errorf("decode cached evaluation: %w", err)
	}
	return eval, nil
}

func (r *Redis) Set(ctx context.Context, key string, eval engine.Evaluation) error {
	data, err := json.Marshal(eval)
	if err != nil {
		return fmt.Errorf("encode evaluation: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
