package config

import (
	"strings"
	"time"
)

// AppConfig is the process-wide configuration, assembled from environment
// variables by github.com/caarlos0/env. Each section lives in its own file
// next to a short note on what it controls; the env tags on the section
// structs are the authoritative list of variables.
type AppConfig struct {
	// IsDev switches on development conveniences such as seeded data and
	// console transports. Set DEV=true to enable.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Services names the service modes this process runs, comma separated.
	Services string `env:"SERVICES" envDefault:"http,janitor"`

	// Storage backends.
	Postgres    DBConfig    `envPrefix:"DB_"`
	Redis       RedisConfig `envPrefix:"REDIS_"`
	StatusCache StatusCacheConfig

	HTTP HTTPConfig

	// Message channels and providers.
	Messaging MessagingConfig

	// Background maintenance.
	Janitor JanitorConfig

	Observability ObservabilityConfig
}

// Sanitize repairs out-of-range values after env parsing and fills defaults
// that depend on more than one section. Call it once, right after parsing.
func (c *AppConfig) Sanitize() {
	c.Postgres.Sanitize()
	c.HTTP.Sanitize()
	c.Messaging.Sanitize()
	c.Janitor.Sanitize()
	c.Observability.Sanitize()

	// Slack job links fall back to the public base URL when no explicit
	// prefix is configured.
	if slack := &c.Observability.Notifications.Slack; slack.Enabled && slack.JobURLPrefix == "" {
		if base := strings.TrimRight(c.HTTP.BaseURL, "/"); base != "" {
			slack.JobURLPrefix = base + "/jobs"
		}
	}
}

// GetEnabledServices parses the Services field into a ServiceSet.
func (c *AppConfig) GetEnabledServices() (ServiceSet, error) {
	return ParseServices(c.Services)
}

// clampInt bounds v to the inclusive range [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// floorDuration raises d to floor when it falls below it.
func floorDuration(d, floor time.Duration) time.Duration {
	if d < floor {
		return floor
	}
	return d
}

// durationOr substitutes def when d is zero or negative.
func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
