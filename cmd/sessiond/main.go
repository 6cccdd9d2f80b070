package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/helmgate/sessiond/config"
	"github.com/helmgate/sessiond/internal/bootstrap"
	"github.com/helmgate/sessiond/internal/observability/statsd"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	cfgPtr := &cfg

	logStartupInfo(ctx, logger, cfgPtr)

	if err = bootstrap.ValidateAuthConfig(cfgPtr); err != nil {
		return err
	}

	redisClient, profileDB, err := initInfrastructure(ctx, cfgPtr, logger)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}
	if profileDB != nil {
		defer profileDB.Close()
	}

	metrics, err := statsd.NewClient(statsd.Config{
		Enabled: cfg.Observability.Metrics.IsEnabled(),
		Address: cfg.Observability.Metrics.StatsdAddress,
		Prefix:  cfg.Observability.Metrics.Prefix,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("create statsd client: %w", err)
	}
	defer func() {
		if cerr := metrics.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close statsd failed", "error", cerr)
		}
	}()

	sessionStorage := bootstrap.SelectSessionStorage(ctx, redisClient, cfg.Redis, logger)

	svc, err := bootstrap.BuildAuthService(ctx, bootstrap.AuthDeps{
		Config:    cfgPtr,
		Storage:   sessionStorage,
		ProfileDB: profileDB,
		Logger:    logger,
		Metrics:   metrics,
	})
	if err != nil {
		return err
	}

	svc.Start(ctx)

	waitForShutdown(ctx, logger)
	svc.Destroy()
	logger.InfoContext(ctx, "auth service stopped")
	return nil
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting sessiond",
		"auth_mode", cfg.Auth.Mode,
		"redis_enabled", cfg.Redis.Enabled(),
		"require_mfa", cfg.Session.RequireMFA,
		"session_timeout", cfg.Session.Timeout)
}

// initInfrastructure connects shared dependencies used by the service runtime.
// The profile database is only needed in OIDC mode, where profiles live in
// PostgreSQL instead of dev config.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel support flexible.
func initInfrastructure(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (redis.UniversalClient, *pgxpool.Pool, error) {
	redisClient, err := bootstrap.ConnectRedis(cfg.Redis, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}

	var profileDB *pgxpool.Pool
	if cfg.Auth.Mode == config.AuthModeOIDC {
		profileDB, err = bootstrap.ConnectProfileDB(ctx, cfg.Profiles, logger)
		if err != nil {
			if redisClient != nil {
				if cerr := redisClient.Close(); cerr != nil {
					logger.ErrorContext(ctx, "close redis after profile db connect failure", "error", cerr)
				}
			}
			return nil, nil, fmt.Errorf("connect profile db: %w", err)
		}
	}

	return redisClient, profileDB, nil
}

// waitForShutdown blocks until SIGINT or SIGTERM arrives.
func waitForShutdown(ctx context.Context, logger *slog.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	<-quit
	logger.InfoContext(ctx, "shutting down...")
}
