package mailer

import (
	"context"
	"testing"

	"github.com/gagyekum/residency/internal/transport"
)

func TestSendUnconfigured(t *testing.T) {
	m, err := NewMailer(Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = m.Send(context.Background(), transport.Message{To: "resident@example.com", Body: "hi"})
	if !transport.IsConfigError(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewMailerDefaultsFromName(t *testing.T) {
	m, err := NewMailer(Config{Host: "smtp.example.com", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.fromName != DefaultFromName {
		t.Fatalf("expected default display name, got %q", m.fromName)
	}
	if m.client == nil {
		t.Fatal("expected smtp client to be configured")
	}
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	m, err := NewMailer(Config{Host: "smtp.example.com", From: "noreply@example.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = m.Send(context.Background(), transport.Message{To: "not-an-address", Body: "hi"})
	if err == nil {
		t.Fatal("expected error for invalid recipient address")
	}
	if transport.IsConfigError(err) {
		t.Fatalf("bad recipient should be an ordinary delivery failure, got %v", err)
	}
}

func TestSendInvalidSenderIsConfigFault(t *testing.T) {
	m, err := NewMailer(Config{Host: "smtp.example.com", From: "not an address"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = m.Send(context.Background(), transport.Message{To: "resident@example.com", Body: "hi"})
	if !transport.IsConfigError(err) {
		t.Fatalf("expected ConfigError for bad sender, got %v", err)
	}
}
