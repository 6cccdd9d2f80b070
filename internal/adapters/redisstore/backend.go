package redisstore

// Package redisstore provides a Redis-backed StorageBackend for durable
// session persistence across process restarts.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helmgate/sessiond/internal/ports"
)

// Backend stores values in Redis under a configurable key prefix.
type Backend struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ ports.StorageBackend = (*Backend)(nil)

// NewBackend creates a Redis-backed storage backend with the default
// "sessiond:" prefix. A zero TTL means values do not expire; the session
// store revalidates staleness on load regardless.
func NewBackend(client redis.UniversalClient, ttl time.Duration) *Backend {
	return NewBackendWithPrefix(client, "sessiond:", ttl)
}

// NewBackendWithPrefix creates a Redis-backed storage backend with a custom key prefix.
func NewBackendWithPrefix(client redis.UniversalClient, prefix string, ttl time.Duration) *Backend {
	return &Backend{client: client, prefix: prefix, ttl: ttl}
}

func (b *Backend) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ports.ErrKeyNotFound
	}
	val, err := b.client.Get(ctx, b.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ports.ErrKeyNotFound
		}
		return "", fmt.Errorf("redis get: %w", err)
	}
	return val, nil
}

func (b *Backend) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return errors.New("storage key cannot be empty")
	}
	if err := b.client.Set(ctx, b.prefix+key, value, b.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *Backend) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to remove
	}
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
