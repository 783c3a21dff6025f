// Package notify carries message-job failure notifications from the dispatch
// pipeline to operator-facing sinks such as Slack and PagerDuty.
package notify

import (
	"context"
	"time"
)

// SeverityCritical is what sinks assume when a payload carries no severity.
const SeverityCritical = "critical"

// MessageFailurePayload describes a failed message job to an operator.
// Channel names the delivery channel at fault and stays empty when the
// whole job failed.
type MessageFailurePayload struct {
	JobID   string
	Subject string
	Channel string

	Error      string
	ErrorClass string
	Severity   string

	OccurredAt time.Time
	Metadata   map[string]string
}

// Sink delivers a failure notification somewhere an operator will see it.
type Sink interface {
	SendMessageFailure(ctx context.Context, payload MessageFailurePayload) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, payload MessageFailurePayload) error

func (f SinkFunc) SendMessageFailure(ctx context.Context, payload MessageFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}
