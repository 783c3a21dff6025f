package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gagyekum/residency/internal/transport"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	if got := Classify(nil); got != "" {
		t.Fatalf("Classify(nil) = %q, want empty", got)
	}

	if got := Classify(errors.New("boom")); got != "errors_errorstring" {
		t.Fatalf("plain error classified as %q", got)
	}

	ce := &transport.ConfigError{Backend: "mnotify", Reason: "API key and sender id are required"}
	if got := Classify(ce); got != "transport_configerror" {
		t.Fatalf("config error classified as %q", got)
	}

	// Wrapping must not hide the root cause.
	wrapped := fmt.Errorf("dispatch sms: %w", ce)
	if got := Classify(wrapped); got != "transport_configerror" {
		t.Fatalf("wrapped config error classified as %q", got)
	}

	// A join has no single chain to follow; it classifies as itself.
	joined := errors.Join(ce, errors.New("second"))
	if got := Classify(joined); got != "errors_joinerror" {
		t.Fatalf("joined error classified as %q", got)
	}
}
