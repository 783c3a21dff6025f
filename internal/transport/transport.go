// Package transport defines the delivery contract dispatch uses to hand a
// single message to a channel backend, plus the console backends used in
// development. Provider backends live in subpackages.
package transport

import (
	"context"
	"errors"
	"fmt"
)

// Message is a single delivery addressed to one recipient.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Transport delivers messages for one channel. Send returns a plain error for
// an ordinary delivery failure, which marks that one recipient failed. A
// *ConfigError means the backend cannot deliver to anyone and stops the
// channel.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a function to the Transport interface (useful for tests).
type Func func(ctx context.Context, msg Message) error

// Send implements the Transport interface.
func (f Func) Send(ctx context.Context, msg Message) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// ConfigError reports a configuration-level fault, such as missing
// credentials. Dispatchers treat it as a job-level failure: remaining
// recipients on the channel stay pending instead of failing one by one.
type ConfigError struct {
	Backend string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s transport not configured: %s", e.Backend, e.Reason)
}

// IsConfigError reports whether err carries a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
