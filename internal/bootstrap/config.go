package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/helmgate/sessiond/config"
)

// InitLogger initializes the structured logger.
func InitLogger() *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateAuthConfig checks that the selected auth mode is fully configured.
func ValidateAuthConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	switch cfg.Auth.Mode {
	case config.AuthModeOIDC:
		oidc := cfg.Auth.OIDC
		if oidc.DiscoveryURL == "" || oidc.ClientID == "" || oidc.ClientSecret == "" {
			return fmt.Errorf("auth mode %q requires OIDC discovery URL, client id, and client secret",
				cfg.Auth.Mode)
		}
		return nil
	case config.AuthModeDev:
		if !cfg.IsDev {
			return errors.New("dev auth mode is only allowed with DEV=true")
		}
		return nil
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
}
