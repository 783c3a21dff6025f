package transport

import (
	"context"
	"log/slog"
)

// ConsoleEmail logs email messages instead of delivering them. It stands in
// for a real mail server during development.
type ConsoleEmail struct {
	logger *slog.Logger
}

// NewConsoleEmail builds a console email backend.
func NewConsoleEmail(logger *slog.Logger) *ConsoleEmail {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleEmail{logger: logger.With("component", "console_email")}
}

// Send logs the message and reports success.
func (t *ConsoleEmail) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "email message",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Body,
	)
	return nil
}

// ConsoleSMS logs SMS messages instead of delivering them.
type ConsoleSMS struct {
	logger *slog.Logger
}

// NewConsoleSMS builds a console SMS backend.
func NewConsoleSMS(logger *slog.Logger) *ConsoleSMS {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsoleSMS{logger: logger.With("component", "console_sms")}
}

// Send logs the message and reports success.
func (t *ConsoleSMS) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "sms message",
		"to", msg.To,
		"chars", len(msg.Body),
		"body", msg.Body,
	)
	return nil
}
