package failurenotifier

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/gagyekum/residency/internal/observability/notify"
)

// captureSink records every payload it receives. Safe under the concurrent
// fan-out.
type captureSink struct {
	mu       sync.Mutex
	payloads []notify.MessageFailurePayload
}

func (c *captureSink) SendMessageFailure(_ context.Context, payload notify.MessageFailurePayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureSink) received() []notify.MessageFailurePayload {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.payloads)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyMessageFailureDefaultsSeverity(t *testing.T) {
	capture := &captureSink{}
	svc := New(discardLogger())
	svc.Register("capture", capture)

	svc.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{
		JobID:   "f3b1c9e2",
		Channel: "sms",
	})

	got := capture.received()
	if len(got) != 1 {
		t.Fatalf("sink received %d payloads, want 1", len(got))
	}
	if got[0].Severity != notify.SeverityCritical {
		t.Errorf("severity = %q, want it defaulted to critical", got[0].Severity)
	}
}

func TestNotifyMessageFailureKeepsExplicitSeverity(t *testing.T) {
	capture := &captureSink{}
	svc := New(discardLogger())
	svc.Register("capture", capture)

	svc.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{
		JobID:    "f3b1c9e2",
		Severity: "warning",
	})

	if got := capture.received(); got[0].Severity != "warning" {
		t.Errorf("severity = %q, want the caller's value kept", got[0].Severity)
	}
}

func TestNotifyMessageFailureFansOut(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	svc := New(discardLogger())
	svc.Register("slack", first)
	svc.Register("pagerduty", second)

	svc.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{JobID: "f3b1c9e2"})

	if len(first.received()) != 1 || len(second.received()) != 1 {
		t.Errorf("fan-out reached %d/%d sinks, want 1/1",
			len(first.received()), len(second.received()))
	}
}

// A failing sink must not keep the others from being notified.
func TestNotifyMessageFailureIsolatesSinkFailures(t *testing.T) {
	capture := &captureSink{}
	svc := New(discardLogger())
	svc.Register("flaky", notify.SinkFunc(func(context.Context, notify.MessageFailurePayload) error {
		return errors.New("boom")
	}))
	svc.Register("steady", capture)

	svc.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{JobID: "f3b1c9e2"})

	if got := len(capture.received()); got != 1 {
		t.Fatalf("steady sink received %d payloads, want 1", got)
	}
}

func TestNotifyMessageFailureLogsSinkErrors(t *testing.T) {
	var buf bytes.Buffer
	svc := New(slog.New(slog.NewTextHandler(&buf, nil)))
	svc.Register("flaky", notify.SinkFunc(func(context.Context, notify.MessageFailurePayload) error {
		return errors.New("boom")
	}))

	svc.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{
		JobID:   "f3b1c9e2",
		Channel: "email",
	})

	logged := buf.String()
	for _, want := range []string{"failure notification not delivered", "sink=flaky", "job_id=f3b1c9e2", "boom"} {
		if !strings.Contains(logged, want) {
			t.Errorf("log output missing %q:\n%s", want, logged)
		}
	}
}

func TestEnabled(t *testing.T) {
	var missing *Service
	if missing.Enabled() {
		t.Error("nil service reports enabled")
	}

	svc := New(nil)
	if svc.Enabled() {
		t.Error("empty notifier reports enabled")
	}

	svc.Register("ignored", nil)
	if svc.Enabled() {
		t.Error("nil sink registration enabled the notifier")
	}

	svc.Register("capture", &captureSink{})
	if !svc.Enabled() {
		t.Error("notifier with a sink reports disabled")
	}
}

func TestNotifyMessageFailureWithoutSinks(t *testing.T) {
	// Must be a cheap no-op, including on a nil service.
	var missing *Service
	missing.NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{JobID: "f3b1c9e2"})
	New(nil).NotifyMessageFailure(context.Background(), notify.MessageFailurePayload{JobID: "f3b1c9e2"})
}
