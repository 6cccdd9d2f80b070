package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: Identity provider and session lifecycle configuration
//   - storage.go: Session storage and profile database configuration
//   - observability.go: Metrics configuration
type AppConfig struct {
	// IsDev controls development mode behavior (debug logging, dev IdP defaults).
	IsDev bool `env:"DEV" envDefault:"false"`

	// Auth selects and configures the identity provider.
	Auth AuthConfig

	// Session controls the session lifecycle: timeout, lockout, password
	// policy, and refresh cadence.
	Session SessionConfig `envPrefix:"SESSION_"`

	// Storage configures session persistence and the profile database.
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Profiles DBConfig    `envPrefix:"PROFILE_DB_"`

	// Observability configuration.
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Session.Sanitize()
	c.Observability.Sanitize()
	c.detectDevMode()
}

// detectDevMode checks both DEV and APP_ENV environment variables.
// This is called by Sanitize() to ensure IsDev is set correctly.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}
