package config

import (
	"strings"
	"time"
)

// serviceName labels outbound telemetry (alert sources, default usernames)
// when nothing more specific is configured.
const serviceName = "residency"

// ObservabilityConfig collects the knobs for metrics and failure fan-out.
type ObservabilityConfig struct {
	Metrics       ObservabilityMetricsConfig
	Notifications ObservabilityNotificationsConfig
}

// Sanitize cascades into both sections.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.Notifications.Sanitize()
}

// ObservabilityMetricsConfig controls StatsD emission.
type ObservabilityMetricsConfig struct {
	Enabled       bool   `env:"OBSERVABILITY_METRICS_ENABLED" envDefault:"false"`
	StatsdAddress string `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS" envDefault:"127.0.0.1:8125"`
}

// Sanitize trims the address and refuses to enable metrics without one.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
}

// IsEnabled reports whether metrics should actually be emitted.
func (c *ObservabilityMetricsConfig) IsEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

// ObservabilityNotificationsConfig controls where dispatch failures are
// announced. A sink delivers only when the top switch and its own switch are
// both on and it has somewhere to deliver to.
type ObservabilityNotificationsConfig struct {
	Enabled    bool          `env:"OBSERVABILITY_NOTIFICATIONS_ENABLED" envDefault:"false"`
	Timeout    time.Duration `env:"OBSERVABILITY_NOTIFICATIONS_TIMEOUT" envDefault:"5s"`
	RetryLimit int           `env:"OBSERVABILITY_NOTIFICATIONS_RETRY_LIMIT" envDefault:"3"`

	Slack     SlackNotificationConfig     `envPrefix:"OBSERVABILITY_NOTIFICATIONS_SLACK_"`
	PagerDuty PagerDutyNotificationConfig `envPrefix:"OBSERVABILITY_NOTIFICATIONS_PAGERDUTY_"`
}

// Sanitize normalizes the sink configs and applies the enable cascade.
func (c *ObservabilityNotificationsConfig) Sanitize() {
	c.Timeout = durationOr(c.Timeout, 5*time.Second)
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}

	slack := &c.Slack
	slack.WebhookURL = strings.TrimSpace(slack.WebhookURL)
	slack.Channel = strings.TrimSpace(slack.Channel)
	slack.JobURLPrefix = strings.TrimSpace(slack.JobURLPrefix)
	if slack.Username == "" {
		slack.Username = serviceName
	}
	slack.Enabled = c.Enabled && slack.Enabled && slack.WebhookURL != ""

	pd := &c.PagerDuty
	pd.RoutingKey = strings.TrimSpace(pd.RoutingKey)
	if pd.Source = strings.TrimSpace(pd.Source); pd.Source == "" {
		pd.Source = serviceName
	}
	if pd.Component = strings.TrimSpace(pd.Component); pd.Component == "" {
		pd.Component = serviceName
	}
	pd.Enabled = c.Enabled && pd.Enabled && pd.RoutingKey != ""
}

// SlackNotificationConfig points failure notifications at a Slack incoming
// webhook.
type SlackNotificationConfig struct {
	Enabled    bool   `env:"ENABLED" envDefault:"false"`
	WebhookURL string `env:"WEBHOOK_URL"`
	Channel    string `env:"CHANNEL"`
	Username   string `env:"USERNAME" envDefault:"residency"`

	// JobURLPrefix is the base under which job detail pages live; the job
	// ID is appended to build the link in each notification. Left empty,
	// it is derived from APP_BASE_URL during Sanitize.
	JobURLPrefix string `env:"JOB_URL_PREFIX"`
}

// PagerDutyNotificationConfig points failure notifications at the PagerDuty
// Events API v2.
type PagerDutyNotificationConfig struct {
	Enabled    bool   `env:"ENABLED" envDefault:"false"`
	RoutingKey string `env:"ROUTING_KEY"`
	Source     string `env:"SOURCE" envDefault:"residency"`
	Component  string `env:"COMPONENT" envDefault:"residency"`
}
