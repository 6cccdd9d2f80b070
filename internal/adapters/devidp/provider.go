package devidp

// Package devidp provides a config-driven IdentityProvider for local
// development and tests. It authenticates a single configured user with a
// bcrypt-checked password and mints HS256 tokens locally, so the daemon can
// run without a live IdP.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// ErrBadCredentials is returned when the email or password does not match
// the configured dev user.
var ErrBadCredentials = errors.New("dev idp: invalid email or password")

// Config controls the dev identity provider.
type Config struct {
	UserID   string
	Email    string
	Password string        // plaintext; hashed at construction
	Secret   []byte        // HS256 signing secret, at least 32 bytes
	TokenTTL time.Duration // default 1h when zero
}

// Provider implements ports.IdentityProvider for local development.
type Provider struct {
	userID       string
	email        string
	passwordHash []byte
	secret       []byte
	tokenTTL     time.Duration
}

var _ ports.IdentityProvider = (*Provider)(nil)

// NewProvider constructs a dev identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Email == "" {
		return nil, errors.New("dev idp: Email is required")
	}
	if cfg.Password == "" {
		return nil, errors.New("dev idp: Password is required")
	}
	if len(cfg.Secret) < 32 {
		return nil, errors.New("dev idp: Secret must be at least 32 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("dev idp: hash password: %w", err)
	}

	userID := cfg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &Provider{
		userID:       userID,
		email:        cfg.Email,
		passwordHash: hash,
		secret:       cfg.Secret,
		tokenTTL:     ttl,
	}, nil
}

// SignIn checks the credentials against the configured user and mints a
// fresh token bundle.
func (p *Provider) SignIn(_ context.Context, email, password string) (domainauth.TokenBundle, error) {
	if email != p.email {
		// Still burn a bcrypt comparison so the miss is not observable by timing.
		_ = bcrypt.CompareHashAndPassword(p.passwordHash, []byte(password))
		return domainauth.TokenBundle{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(p.passwordHash, []byte(password)); err != nil {
		return domainauth.TokenBundle{}, ErrBadCredentials
	}
	return p.mintBundle()
}

// Refresh validates the refresh token and mints a fresh token bundle.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.TokenBundle, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(refreshToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.secret, nil
	})
	if err != nil {
		return domainauth.TokenBundle{}, fmt.Errorf("dev idp: parse refresh token: %w", err)
	}
	if !token.Valid {
		return domainauth.TokenBundle{}, errors.New("dev idp: refresh token invalid")
	}
	if typ, _ := claims["typ"].(string); typ != tokenTypeRefresh {
		return domainauth.TokenBundle{}, errors.New("dev idp: token is not a refresh token")
	}
	if sub, _ := claims["sub"].(string); sub != p.userID {
		return domainauth.TokenBundle{}, errors.New("dev idp: refresh token subject mismatch")
	}
	return p.mintBundle()
}

// SignOut is a no-op; the dev provider keeps no server-side session.
func (p *Provider) SignOut(context.Context, string) error { return nil }

// UserID returns the identifier of the configured dev user. When Config
// left it blank a random one was generated at construction.
func (p *Provider) UserID() string { return p.userID }

func (p *Provider) mintBundle() (domainauth.TokenBundle, error) {
	now := time.Now()
	expiresAt := now.Add(p.tokenTTL)

	access, err := p.signToken(tokenTypeAccess, now, expiresAt)
	if err != nil {
		return domainauth.TokenBundle{}, fmt.Errorf("dev idp: sign access token: %w", err)
	}
	// Refresh tokens outlive the access token.
	refresh, err := p.signToken(tokenTypeRefresh, now, now.Add(p.tokenTTL*24))
	if err != nil {
		return domainauth.TokenBundle{}, fmt.Errorf("dev idp: sign refresh token: %w", err)
	}

	return domainauth.TokenBundle{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		UserID:       p.userID,
	}, nil
}

func (p *Provider) signToken(typ string, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   p.userID,
		"email": p.email,
		"typ":   typ,
		"jti":   uuid.NewString(),
		"iat":   issuedAt.Unix(),
		"exp":   expiresAt.Unix(),
	})
	return token.SignedString(p.secret)
}
