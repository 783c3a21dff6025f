package bootstrap

import (
	"log/slog"
	"testing"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/transport"
	"github.com/gagyekum/residency/internal/transport/mailer"
	"github.com/gagyekum/residency/internal/transport/mnotify"
)

func TestErrorChannelBufferSize(t *testing.T) {
	tests := []struct {
		name    string
		enabled config.ServiceSet
		want    int
	}{
		{name: "no services enabled keeps one spare slot", want: 1},
		{name: "http only", enabled: config.ServiceSet{config.ServiceModeHTTP: true}, want: 2},
		{name: "janitor only", enabled: config.ServiceSet{config.ServiceModeJanitor: true}, want: 2},
		{
			name:    "http and janitor",
			enabled: config.ServiceSet{config.ServiceModeHTTP: true, config.ServiceModeJanitor: true},
			want:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorChannelBufferSize(tt.enabled); got != tt.want {
				t.Fatalf("errorChannelBufferSize(%v) = %d, want %d", tt.enabled, got, tt.want)
			}
		})
	}
}

func TestBuildEmailTransport(t *testing.T) {
	logger := slog.Default()

	tr := buildEmailTransport(logger, config.MessagingConfig{EmailBackend: config.EmailBackendConsole})
	if _, ok := tr.(*transport.ConsoleEmail); !ok {
		t.Fatalf("expected console email transport, got %T", tr)
	}

	tr = buildEmailTransport(logger, config.MessagingConfig{
		EmailBackend: config.EmailBackendSMTP,
		SMTP: config.SMTPConfig{
			Host: "smtp.example.com",
			From: "noreply@example.com",
		},
	})
	if _, ok := tr.(*mailer.Mailer); !ok {
		t.Fatalf("expected smtp mailer, got %T", tr)
	}

	// Zero-value backend falls back to console
	tr = buildEmailTransport(logger, config.MessagingConfig{})
	if _, ok := tr.(*transport.ConsoleEmail); !ok {
		t.Fatalf("expected console email transport for zero-value backend, got %T", tr)
	}
}

func TestBuildSMSTransport(t *testing.T) {
	logger := slog.Default()

	tr := buildSMSTransport(logger, config.MessagingConfig{SMSBackend: config.SMSBackendConsole})
	if _, ok := tr.(*transport.ConsoleSMS); !ok {
		t.Fatalf("expected console sms transport, got %T", tr)
	}

	tr = buildSMSTransport(logger, config.MessagingConfig{
		SMSBackend: config.SMSBackendMNotify,
		MNotify: config.MNotifyConfig{
			APIKey:   "key",
			SenderID: "ESTATE",
		},
	})
	if _, ok := tr.(*mnotify.Client); !ok {
		t.Fatalf("expected mnotify client, got %T", tr)
	}
}
