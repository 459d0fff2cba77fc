package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is used when no key is configured.
const DefaultRedisKey = "tasklist:tasks"

// Redis stores the document under a single key.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr, key string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return NewRedisWithClient(client, key), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Name returns the backend identifier.
func (r *Redis) Name() string { return DriverRedis }

// Read returns the stored document or nil if the key is absent.
func (r *Redis) Read(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", r.key, err)
	}
	return data, nil
}

// Write replaces the stored document.
func (r *Redis) Write(ctx context.Context, data []byte) error {
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", r.key, err)
	}
	return nil
}

// Quarantine renames the key to <key>:corrupt:<unix seconds>.
func (r *Redis) Quarantine(ctx context.Context) (string, error) {
	dst := fmt.Sprintf("%s:corrupt:%d", r.key, time.Now().Unix())
	if err := r.client.Rename(ctx, r.key, dst).Err(); err != nil {
		return "", fmt.Errorf("rename %s: %w", r.key, err)
	}
	return dst, nil
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.client.Close()
}
