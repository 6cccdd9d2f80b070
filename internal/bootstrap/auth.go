package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helmgate/sessiond/config"
	"github.com/helmgate/sessiond/internal/adapters/devidp"
	"github.com/helmgate/sessiond/internal/adapters/oidcidp"
	"github.com/helmgate/sessiond/internal/adapters/storage"
	"github.com/helmgate/sessiond/internal/adapters/totp"
	"github.com/helmgate/sessiond/internal/data"
	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/observability/statsd"
	"github.com/helmgate/sessiond/internal/ports"
	"github.com/helmgate/sessiond/internal/service"
)

// AuthDeps bundles the infrastructure the auth service is built from.
type AuthDeps struct {
	Config    *config.AppConfig
	Storage   *storage.Adapter
	ProfileDB *pgxpool.Pool // required for oidc mode, ignored in dev mode
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// BuildAuthService wires the identity provider, profile store, MFA
// verifier, and session store for the configured auth mode and returns the
// assembled service. Call Start on the result to restore any persisted
// session and launch the background timers.
func BuildAuthService(ctx context.Context, deps AuthDeps) (*service.AuthService, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if deps.Storage == nil {
		return nil, fmt.Errorf("storage adapter is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessions, err := service.NewSessionStore(service.SessionStoreOptions{
		Storage: deps.Storage,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	var (
		provider ports.IdentityProvider
		profiles ports.ProfileStore
		verifier ports.MFAVerifier
	)
	switch deps.Config.Auth.Mode {
	case config.AuthModeDev:
		provider, profiles, verifier, err = buildDevStack(deps.Config.Auth.Dev)
	case config.AuthModeOIDC:
		provider, profiles, verifier, err = buildOIDCStack(ctx, deps)
	default:
		return nil, fmt.Errorf("unknown auth mode %q", deps.Config.Auth.Mode)
	}
	if err != nil {
		return nil, err
	}

	svc, err := service.NewAuthService(service.AuthServiceOptions{
		Provider: provider,
		Profiles: profiles,
		MFA:      verifier,
		Sessions: sessions,
		Config:   deps.Config.Session,
		Logger:   logger,
		Metrics:  deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create auth service: %w", err)
	}
	return svc, nil
}

func buildDevStack(cfg config.DevAuthConfig) (ports.IdentityProvider, ports.ProfileStore, ports.MFAVerifier, error) {
	provider, err := devidp.NewProvider(devidp.Config{
		UserID:   cfg.UserID,
		Email:    cfg.Email,
		Password: cfg.Password,
		Secret:   []byte(cfg.Secret),
		TokenTTL: cfg.TokenTTL,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create dev identity provider: %w", err)
	}

	profiles := &devidp.StaticProfileStore{
		UserID: provider.UserID(),
		Profile: domainauth.Profile{
			Role:        domainauth.Role(cfg.Role),
			TenantID:    cfg.TenantID,
			Permissions: cfg.Permissions,
			MFAEnabled:  cfg.MFASecret != "",
		},
	}

	verifier, err := totp.NewVerifier(func(context.Context, string) (string, error) {
		return cfg.MFASecret, nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create totp verifier: %w", err)
	}

	return provider, profiles, verifier, nil
}

func buildOIDCStack(ctx context.Context, deps AuthDeps) (ports.IdentityProvider, ports.ProfileStore, ports.MFAVerifier, error) {
	if deps.ProfileDB == nil {
		return nil, nil, nil, fmt.Errorf("auth mode %q requires the profile database", config.AuthModeOIDC)
	}

	oidcCfg := deps.Config.Auth.OIDC
	provider, err := oidcidp.NewProvider(ctx, oidcidp.ProviderConfig{
		ClientID:      oidcCfg.ClientID,
		ClientSecret:  oidcCfg.ClientSecret,
		Scope:         oidcCfg.Scope,
		DiscoveryURL:  oidcCfg.DiscoveryURL,
		RevocationURL: oidcCfg.RevocationURL,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create oidc identity provider: %w", err)
	}

	repo := data.NewProfileRepo(deps.ProfileDB)
	verifier, err := totp.NewVerifier(repo.FetchMFASecret)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create totp verifier: %w", err)
	}

	return provider, repo, verifier, nil
}
