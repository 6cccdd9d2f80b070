package config

import (
	"fmt"
	"strings"
	"time"

	domainauth "github.com/helmgate/sessiond/internal/domain/auth"
)

// AuthMode represents the identity provider mode for the application.
type AuthMode string

const (
	// AuthModeOIDC authenticates against an OIDC identity provider.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeDev uses a config-driven local identity provider (development only).
	AuthModeDev AuthMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "dev":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: oidc, dev)", v)
	}
}

// OIDCConfig contains the OIDC identity provider configuration.
type OIDCConfig struct {
	ClientID      string `env:"CLIENT_ID"`
	ClientSecret  string `env:"CLIENT_SECRET"`
	Scope         string `env:"SCOPE"          envDefault:"openid profile email offline_access"`
	DiscoveryURL  string `env:"DISCOVERY_URL"`
	RevocationURL string `env:"REVOCATION_URL"`
}

// DevAuthConfig controls the local dev identity provider and its static
// profile. Used when AUTH_MODE=dev for development and testing.
type DevAuthConfig struct {
	UserID      string        `env:"USER_ID"     envDefault:"dev-user"`
	Email       string        `env:"EMAIL"       envDefault:"dev@example.com"`
	Password    string        `env:"PASSWORD"    envDefault:"Dev-password1"`
	Secret      string        `env:"SECRET"      envDefault:"dev-only-signing-secret-32-bytes!!"`
	TokenTTL    time.Duration `env:"TOKEN_TTL"   envDefault:"1h"`
	Role        string        `env:"ROLE"        envDefault:"admin"`
	TenantID    string        `env:"TENANT_ID"`
	Permissions []string      `env:"PERMISSIONS" envSeparator:";"`
	MFASecret   string        `env:"MFA_SECRET"`
}

// AuthConfig groups identity-provider configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"oidc"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"OIDC_"`

	// Dev configuration (used when Mode=dev).
	Dev DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// PasswordPolicyConfig holds the password policy rules.
type PasswordPolicyConfig struct {
	MinLength           int  `env:"MIN_LENGTH"            envDefault:"8"`
	RequireUppercase    bool `env:"REQUIRE_UPPERCASE"     envDefault:"true"`
	RequireLowercase    bool `env:"REQUIRE_LOWERCASE"     envDefault:"true"`
	RequireNumbers      bool `env:"REQUIRE_NUMBERS"       envDefault:"true"`
	RequireSpecialChars bool `env:"REQUIRE_SPECIAL_CHARS" envDefault:"false"`
}

// ToPolicy converts the config into the domain policy type.
func (c PasswordPolicyConfig) ToPolicy() domainauth.PasswordPolicy {
	return domainauth.PasswordPolicy{
		MinLength:           c.MinLength,
		RequireUppercase:    c.RequireUppercase,
		RequireLowercase:    c.RequireLowercase,
		RequireNumbers:      c.RequireNumbers,
		RequireSpecialChars: c.RequireSpecialChars,
	}
}

// SessionConfig controls the session lifecycle.
type SessionConfig struct {
	// Timeout is the base session renewal window. RememberMe multiplies it by 24.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"60m"`

	// RequireMFA enforces a second factor for accounts that have MFA enabled.
	RequireMFA bool `env:"REQUIRE_MFA" envDefault:"false"`

	// MaxFailedAttempts is the failure count that triggers a lockout.
	MaxFailedAttempts int `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`

	// LockoutDuration is the sliding lockout window.
	LockoutDuration time.Duration `env:"LOCKOUT_DURATION" envDefault:"15m"`

	// RefreshLead is how long before expiry the proactive refresh fires.
	RefreshLead time.Duration `env:"REFRESH_LEAD" envDefault:"5m"`

	// ExpiryCheckInterval is the cadence of the background expiry check.
	ExpiryCheckInterval time.Duration `env:"EXPIRY_CHECK_INTERVAL" envDefault:"60s"`

	// Password holds the password policy.
	Password PasswordPolicyConfig `envPrefix:"PASSWORD_"`
}

// Sanitize applies guardrails to session configuration values.
func (c *SessionConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Minute
	}
	if c.MaxFailedAttempts <= 0 {
		c.MaxFailedAttempts = 5
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = 15 * time.Minute
	}
	if c.RefreshLead <= 0 {
		c.RefreshLead = 5 * time.Minute
	}
	if c.ExpiryCheckInterval < time.Second {
		c.ExpiryCheckInterval = time.Minute
	}
	if c.Password.MinLength <= 0 {
		c.Password.MinLength = 8
	}
}
