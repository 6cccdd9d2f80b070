package oidcidp

// Package oidcidp implements the IdentityProvider port against an
// OIDC-compliant IdP using the resource-owner password grant. Endpoints are
// taken from the discovery document; user identity is extracted from the
// verified ID token when present, with the userinfo endpoint as fallback.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

// ErrSignInRejected is returned when the IdP rejects the credentials.
var ErrSignInRejected = errors.New("identity provider rejected credentials")

// ProviderConfig holds configuration for the OIDC identity provider.
type ProviderConfig struct {
	ClientID      string
	ClientSecret  string
	Scope         string
	DiscoveryURL  string
	RevocationURL string       // optional; enables SignOut token revocation
	HTTPClient    *http.Client // Optional, defaults to a 30s-timeout client
}

// Provider implements ports.IdentityProvider using OIDC/OAuth2.
type Provider struct {
	config        *oauth2.Config
	revocationURL string
	httpClient    *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider creates a new OIDC identity provider. It performs a single
// discovery fetch at construction.
func NewProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if cfg.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	issuer := strings.TrimSuffix(cfg.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		},
		revocationURL: cfg.RevocationURL,
		httpClient:    httpClient,
		oidcProvider:  op,
		verifier:      op.Verifier(&gooidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// SignIn exchanges email/password for tokens via the password grant.
func (p *Provider) SignIn(ctx context.Context, email, password string) (domainauth.TokenBundle, error) {
	if email == "" || password == "" {
		return domainauth.TokenBundle{}, ErrSignInRejected
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.PasswordCredentialsToken(ctx, email, password)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return domainauth.TokenBundle{}, fmt.Errorf("%w: %s", ErrSignInRejected, retrieveErr.ErrorCode)
		}
		return domainauth.TokenBundle{}, fmt.Errorf("password grant: %w", err)
	}

	return p.toBundle(ctx, token)
}

// Refresh exchanges a refresh token for a fresh token bundle.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenBundle, error) {
	if refreshToken == "" {
		return domainauth.TokenBundle{}, errors.New("refresh token is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	src := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return domainauth.TokenBundle{}, fmt.Errorf("refresh token grant: %w", err)
	}

	bundle, err := p.toBundle(ctx, token)
	if err != nil {
		return domainauth.TokenBundle{}, err
	}
	// Some IdPs rotate refresh tokens; keep the old one when they don't.
	if bundle.RefreshToken == "" {
		bundle.RefreshToken = refreshToken
	}
	return bundle, nil
}

// SignOut revokes the access token when a revocation endpoint is configured.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	if p.revocationURL == "" || accessToken == "" {
		return nil
	}

	form := url.Values{
		"token":           {accessToken},
		"token_type_hint": {"access_token"},
		"client_id":       {p.config.ClientID},
		"client_secret":   {p.config.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revocationURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build revocation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("revoke token: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// toBundle maps an oauth2 token to the domain bundle, resolving the user id
// from the verified ID token or, failing that, the userinfo endpoint.
func (p *Provider) toBundle(ctx context.Context, token *oauth2.Token) (domainauth.TokenBundle, error) {
	userID, err := p.resolveUserID(ctx, token)
	if err != nil {
		return domainauth.TokenBundle{}, err
	}

	expiresAt := token.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}

	return domainauth.TokenBundle{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    expiresAt,
		UserID:       userID,
	}, nil
}

func (p *Provider) resolveUserID(ctx context.Context, token *oauth2.Token) (string, error) {
	if rawIDToken, ok := token.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := p.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return "", fmt.Errorf("verify id_token: %w", err)
		}
		return idToken.Subject, nil
	}

	// No ID token in the response; fall back to userinfo.
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return "", fmt.Errorf("fetch user info: %w", err)
	}
	if ui.Subject == "" {
		return "", errors.New("identity provider returned no subject")
	}
	return ui.Subject, nil
}
