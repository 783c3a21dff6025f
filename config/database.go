package config

import (
	"net"
	"net/url"
	"strconv"
	"time"
)

// DBConfig contains PostgreSQL connection settings.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"residency"`
	Password string `env:"PASSWORD" envDefault:"residency"`
	Name     string `env:"NAME"     envDefault:"residency"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production.

	// Pool limits, handed to database/sql verbatim.
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"    envDefault:"25"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"    envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" envDefault:"5m"`

	// RunMigrationsOnStart controls whether the application applies pending
	// migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// Sanitize keeps the pool limits usable. Idle connections never exceed the
// open connection cap.
func (d *DBConfig) Sanitize() {
	d.MaxOpenConns = clampInt(d.MaxOpenConns, 1, 1000)
	d.MaxIdleConns = clampInt(d.MaxIdleConns, 0, d.MaxOpenConns)
	d.ConnMaxLifetime = floorDuration(d.ConnMaxLifetime, 0)
}

// DSN renders the connection string. Credentials go through url.UserPassword
// so special characters survive.
func (d DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	// Enabled controls whether Redis is connected at all. When false the
	// job status cache is skipped and reads always hit PostgreSQL.
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	URI     string `env:"URI"     envDefault:"localhost:6379"`
	// KeyPrefix namespaces every cache key. Estate deployments often share a
	// Redis instance between environments, so keep the prefixes distinct.
	KeyPrefix          string   `env:"KEY_PREFIX"           envDefault:"residency:"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}

// StatusCacheConfig contains the job status cache configuration (Redis-based).
type StatusCacheConfig struct {
	// TTL is how long a cached job status snapshot stays valid. Kept short
	// so status polling reflects dispatch progress quickly.
	TTL time.Duration `env:"STATUS_CACHE_TTL" envDefault:"2s"`
}
