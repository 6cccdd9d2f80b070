package config

// RedisConfig contains Redis configuration for persistent session storage.
// When no address is configured the storage probe is skipped and sessions
// live in process memory only.
type RedisConfig struct {
	Addr               string   `env:"ADDR"                 envDefault:""`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"sessiond:"`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:""`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
}

// Enabled reports whether a Redis backend is configured at all.
func (c RedisConfig) Enabled() bool {
	return c.Addr != "" || (c.UseSentinel && len(c.SentinelNodes) > 0)
}

// DBConfig contains the PostgreSQL profile database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"sessiond"`
	Password string `env:"PASSWORD" envDefault:"sessiond"`
	Name     string `env:"NAME"     envDefault:"sessiond"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
}
