package data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
	"github.com/helmgate/sessiond/internal/ports"
)

// ProfileRepo reads user profiles (role, tenant, permissions, MFA flag)
// from PostgreSQL. It is the authoritative source for authorization data;
// tokens from the identity provider never carry it.
type ProfileRepo struct {
	pool *pgxpool.Pool
}

var _ ports.ProfileStore = (*ProfileRepo)(nil)

// NewProfileRepo creates a new ProfileRepo backed by the given pool.
func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

// FetchProfile returns the profile for the given user id.
// Returns ports.ErrProfileNotFound when no row exists.
func (r *ProfileRepo) FetchProfile(ctx context.Context, userID string) (domainauth.Profile, error) {
	const query = `
		SELECT role, tenant_id, permissions, mfa_enabled
		FROM user_profiles
		WHERE user_id = $1`

	var (
		role        string
		tenantID    *string
		permissions []string
		mfaEnabled  bool
	)
	err := r.pool.QueryRow(ctx, query, userID).Scan(&role, &tenantID, &permissions, &mfaEnabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, ports.ErrProfileNotFound
		}
		return domainauth.Profile{}, fmt.Errorf("query profile: %w", err)
	}

	profile := domainauth.Profile{
		Role:        domainauth.Role(role),
		Permissions: permissions,
		MFAEnabled:  mfaEnabled,
	}
	if tenantID != nil {
		profile.TenantID = *tenantID
	}
	return profile, nil
}

// FetchMFASecret returns the user's base32 TOTP secret, or empty when the
// user has not enrolled. Used by the TOTP verifier's secret lookup.
func (r *ProfileRepo) FetchMFASecret(ctx context.Context, userID string) (string, error) {
	const query = `SELECT mfa_secret FROM user_profiles WHERE user_id = $1`

	var secret *string
	err := r.pool.QueryRow(ctx, query, userID).Scan(&secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ports.ErrProfileNotFound
		}
		return "", fmt.Errorf("query mfa secret: %w", err)
	}
	if secret == nil {
		return "", nil
	}
	return *secret, nil
}
