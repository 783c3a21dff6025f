package config

import (
	"fmt"
	"strings"
	"time"
)

// EmailBackend selects the provider used for email delivery.
type EmailBackend string

const (
	// EmailBackendConsole logs messages instead of sending them (for development).
	EmailBackendConsole EmailBackend = "console"
	// EmailBackendSMTP delivers messages through an SMTP server.
	EmailBackendSMTP EmailBackend = "smtp"
)

// UnmarshalText implements encoding.TextUnmarshaler for EmailBackend.
func (b *EmailBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "console", "smtp":
		*b = EmailBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid EmailBackend: %q (valid options: console, smtp)", v)
	}
}

// SMSBackend selects the provider used for SMS delivery.
type SMSBackend string

const (
	// SMSBackendConsole logs messages instead of sending them (for development).
	SMSBackendConsole SMSBackend = "console"
	// SMSBackendMNotify delivers messages through the MNotify HTTP API.
	SMSBackendMNotify SMSBackend = "mnotify"
)

// UnmarshalText implements encoding.TextUnmarshaler for SMSBackend.
func (b *SMSBackend) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "console", "mnotify":
		*b = SMSBackend(v)
		return nil
	default:
		return fmt.Errorf("invalid SMSBackend: %q (valid options: console, mnotify)", v)
	}
}

// ChannelSettings controls dispatch pacing for a single message channel.
type ChannelSettings struct {
	// BatchSize is the number of recipients claimed per dispatch batch.
	BatchSize int `env:"BATCH_SIZE" envDefault:"50"`

	// BatchDelay is the pause between dispatch batches. Zero disables pacing.
	BatchDelay time.Duration `env:"BATCH_DELAY" envDefault:"1s"`
}

// Sanitize applies guardrails to channel settings.
func (c *ChannelSettings) Sanitize() {
	c.BatchSize = clampInt(c.BatchSize, 1, 1000)
	c.BatchDelay = floorDuration(c.BatchDelay, 0)
}

// SMTPConfig contains SMTP provider configuration (used when EMAIL_BACKEND=smtp).
type SMTPConfig struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT"      envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`

	// From is the sender address for outgoing mail.
	From string `env:"FROM"`

	// FromName is the display name shown to recipients.
	FromName string `env:"FROM_NAME" envDefault:"Residency Administrator"`

	// RequireTLS refuses to send unless STARTTLS succeeds.
	RequireTLS bool `env:"REQUIRE_TLS" envDefault:"false"`

	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to SMTP configuration values.
func (c *SMTPConfig) Sanitize() {
	c.Host = strings.TrimSpace(c.Host)
	c.From = strings.TrimSpace(c.From)
	if c.Port <= 0 || c.Port > 65535 {
		c.Port = 587
	}
	c.Timeout = durationOr(c.Timeout, 30*time.Second)
}

// MNotifyConfig contains MNotify provider configuration (used when SMS_BACKEND=mnotify).
type MNotifyConfig struct {
	APIKey   string `env:"API_KEY"`
	SenderID string `env:"SENDER_ID"`

	// Endpoint is the quick-send API URL.
	Endpoint string `env:"ENDPOINT" envDefault:"https://api.mnotify.com/api/sms/quick"`

	// ResultPath is a JMESPath expression into the provider response body.
	// The value found there is compared against SuccessCode.
	ResultPath  string `env:"RESULT_PATH"  envDefault:"code"`
	SuccessCode string `env:"SUCCESS_CODE" envDefault:"2000"`

	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to MNotify configuration values.
func (c *MNotifyConfig) Sanitize() {
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.SenderID = strings.TrimSpace(c.SenderID)
	c.Endpoint = strings.TrimSpace(c.Endpoint)
	c.ResultPath = strings.TrimSpace(c.ResultPath)
	c.SuccessCode = strings.TrimSpace(c.SuccessCode)
	c.Timeout = durationOr(c.Timeout, 30*time.Second)
}

// MessagingConfig groups message dispatch configuration for both channels.
type MessagingConfig struct {
	// EmailBackend selects the email provider.
	EmailBackend EmailBackend `env:"EMAIL_BACKEND" envDefault:"console"`

	// SMSBackend selects the SMS provider.
	SMSBackend SMSBackend `env:"SMS_BACKEND" envDefault:"console"`

	// Email pacing configuration (EMAIL_BATCH_SIZE, EMAIL_BATCH_DELAY).
	Email ChannelSettings `envPrefix:"EMAIL_"`

	// SMS pacing configuration (SMS_BATCH_SIZE, SMS_BATCH_DELAY).
	SMS ChannelSettings `envPrefix:"SMS_"`

	// SMTP provider configuration.
	SMTP SMTPConfig `envPrefix:"SMTP_"`

	// MNotify provider configuration.
	MNotify MNotifyConfig `envPrefix:"MNOTIFY_"`
}

// Sanitize applies guardrails to messaging configuration values.
func (m *MessagingConfig) Sanitize() {
	m.Email.Sanitize()
	m.SMS.Sanitize()
	m.SMTP.Sanitize()
	m.MNotify.Sanitize()
}
