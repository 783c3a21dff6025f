package mailer

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/gagyekum/residency/internal/transport"
)

// DefaultFromName is the display name used when none is configured.
const DefaultFromName = "Residency Administrator"

const (
	defaultPort    = 587
	defaultTimeout = 30 * time.Second
)

// Config captures the SMTP settings the mailer needs.
type Config struct {
	Host       string
	Port       int    // Defaults to 587.
	Username   string // Optional. PLAIN auth is used when set.
	Password   string
	From       string // Sender address, e.g. noreply@example.com.
	FromName   string // Display name shown to recipients.
	RequireTLS bool   // Refuse to send unless STARTTLS succeeds.
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Mailer delivers email messages through an SMTP server.
type Mailer struct {
	client   *mail.Client
	from     string
	fromName string
}

// NewMailer builds an SMTP mailer. A missing host or sender address does not
// fail construction; it surfaces as a configuration fault on the first send,
// so an unconfigured deployment fails the affected job rather than the whole
// process.
func NewMailer(cfg Config) (*Mailer, error) {
	logger := cmp.Or(cfg.Logger, slog.Default())

	m := &Mailer{
		from:     strings.TrimSpace(cfg.From),
		fromName: cmp.Or(strings.TrimSpace(cfg.FromName), DefaultFromName),
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" || m.from == "" {
		logger.Warn("smtp mailer not fully configured, email sends will fail",
			"host_set", host != "",
			"from_set", m.from != "")
		return m, nil
	}

	port := cfg.Port
	if port <= 0 {
		port = defaultPort
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tlsPolicy := mail.TLSOpportunistic
	if cfg.RequireTLS {
		tlsPolicy = mail.TLSMandatory
	}

	opts := []mail.Option{
		mail.WithPort(port),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(tlsPolicy),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	m.client = client

	return m, nil
}

// Send delivers one email message.
func (m *Mailer) Send(ctx context.Context, msg transport.Message) error {
	if m.client == nil {
		return &transport.ConfigError{Backend: "smtp", Reason: "SMTP host and sender address are required"}
	}

	message := mail.NewMsg()
	if err := message.FromFormat(m.fromName, m.from); err != nil {
		// A bad sender address poisons every delivery, not just this one.
		return &transport.ConfigError{
			Backend: "smtp",
			Reason:  fmt.Sprintf("invalid sender address %q: %v", m.from, err),
		}
	}
	if err := message.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient address %q: %w", msg.To, err)
	}
	message.Subject(msg.Subject)
	message.SetBodyString(mail.TypeTextPlain, msg.Body)

	if err := m.client.DialAndSendWithContext(ctx, message); err != nil {
		return fmt.Errorf("send email to %s: %w", msg.To, err)
	}
	return nil
}
