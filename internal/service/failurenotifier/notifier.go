// Package failurenotifier fans message-job failure events out to the
// configured alerting sinks.
package failurenotifier

import (
	"cmp"
	"context"
	"log/slog"
	"sync"

	"github.com/gagyekum/residency/internal/observability/notify"
)

// Service delivers failure events to every registered sink. A notifier
// without sinks reports itself disabled and drops events silently.
type Service struct {
	logger *slog.Logger
	sinks  []namedSink
}

type namedSink struct {
	name string
	sink notify.Sink
}

// New returns a notifier without any sinks.
func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Register adds sink under name for log attribution. Nil sinks are ignored.
// Wire all sinks during startup; Register is not safe to call concurrently
// with NotifyMessageFailure.
func (s *Service) Register(name string, sink notify.Sink) {
	if sink == nil {
		return
	}
	s.sinks = append(s.sinks, namedSink{name: cmp.Or(name, "sink"), sink: sink})
}

// Enabled reports whether at least one sink is registered.
func (s *Service) Enabled() bool {
	return s != nil && len(s.sinks) > 0
}

// NotifyMessageFailure delivers payload to every sink concurrently and waits
// for all of them to finish. Sink errors are logged, never returned; a broken
// webhook must not stall or fail dispatch.
func (s *Service) NotifyMessageFailure(ctx context.Context, payload notify.MessageFailurePayload) {
	if !s.Enabled() {
		return
	}
	payload.Severity = cmp.Or(payload.Severity, notify.SeverityCritical)

	var wg sync.WaitGroup
	for _, target := range s.sinks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.deliver(ctx, target, payload)
		}()
	}
	wg.Wait()
}

func (s *Service) deliver(ctx context.Context, target namedSink, payload notify.MessageFailurePayload) {
	if err := target.sink.SendMessageFailure(ctx, payload); err != nil {
		s.logger.ErrorContext(ctx, "failure notification not delivered",
			"sink", target.name,
			"job_id", payload.JobID,
			"channel", payload.Channel,
			"error", err,
		)
	}
}
