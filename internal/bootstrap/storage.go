package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/helmgate/sessiond/config"
	"github.com/helmgate/sessiond/internal/adapters/redisstore"
	"github.com/helmgate/sessiond/internal/adapters/storage"
	"github.com/helmgate/sessiond/internal/ports"
)

// ConnectRedis builds and pings a Redis client for session persistence.
// Returns nil without error when Redis is not configured; the storage probe
// then selects the in-memory backend.
//
//nolint:ireturn // returning redis.UniversalClient lets us pick single or sentinel clients at runtime.
func ConnectRedis(cfg config.RedisConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	var client redis.UniversalClient
	if cfg.UseSentinel {
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:       cfg.SentinelMasterName,
			SentinelAddrs:    cfg.SentinelNodes,
			SentinelPassword: cfg.SentinelPassword,
			Password:         cfg.Password,
			DB:               cfg.DB,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		// Reachability is re-checked by the storage probe; report but let
		// the caller decide whether a dead Redis is fatal.
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close redis client failed", "error", closeErr)
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	logger.Info("redis connected", "sentinel", cfg.UseSentinel)
	return client, nil
}

// SelectSessionStorage runs the one-time storage probe over the configured
// backend. A nil redis client yields the in-memory adapter.
func SelectSessionStorage(
	ctx context.Context,
	client redis.UniversalClient,
	cfg config.RedisConfig,
	logger *slog.Logger,
) *storage.Adapter {
	var candidate ports.StorageBackend
	if client != nil {
		candidate = redisstore.NewBackendWithPrefix(client, cfg.KeyPrefix, 0)
	}
	return storage.Select(ctx, candidate, logger)
}

// ConnectProfileDB builds and pings the PostgreSQL pool for the profile store.
func ConnectProfileDB(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create profile db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping profile db: %w", err)
	}

	logger.Info("profile database connected", "host", cfg.Host, "db", cfg.Name)
	return pool, nil
}
