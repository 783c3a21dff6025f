package pagerduty

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gagyekum/residency/internal/observability/notify"
)

// Events API v2 ingest endpoint.
const apiEndpoint = "https://events.pagerduty.com/v2/enqueue"

const (
	defaultTimeout = 5 * time.Second
	defaultName    = "residency"

	// Linear backoff step between API retries.
	retryStep = 200 * time.Millisecond

	// Error responses beyond this are truncated before they reach logs.
	maxErrorBodyBytes = 4 << 10
)

// Config configures the PagerDuty Events API sink.
type Config struct {
	RoutingKey string // Events API v2 integration key, required

	// Source and Component label the incident; blank values fall back to
	// the service name.
	Source    string
	Component string

	Timeout    time.Duration // per-call bound when Client is nil
	RetryLimit int           // retries after the first attempt

	// Client, when set, replaces the default client and its timeout.
	Client *http.Client
}

// Client triggers PagerDuty incidents for failed message jobs.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	attempts   int
	httpClient *http.Client
}

// NewClient validates cfg and returns an events client.
func NewClient(cfg Config) (*Client, error) {
	routingKey := strings.TrimSpace(cfg.RoutingKey)
	if routingKey == "" {
		return nil, errors.New("pagerduty routing key is required")
	}

	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		routingKey: routingKey,
		source:     cmp.Or(strings.TrimSpace(cfg.Source), defaultName),
		component:  cmp.Or(strings.TrimSpace(cfg.Component), defaultName),
		endpoint:   apiEndpoint,
		attempts:   max(cfg.RetryLimit, 0) + 1,
		httpClient: httpClient,
	}, nil
}

// event is an Events API v2 enqueue request.
type event struct {
	RoutingKey  string       `json:"routing_key"`
	EventAction string       `json:"event_action"`
	DedupKey    string       `json:"dedup_key,omitempty"`
	Payload     eventPayload `json:"payload"`
}

type eventPayload struct {
	Summary       string            `json:"summary"`
	Severity      string            `json:"severity"`
	Source        string            `json:"source"`
	Component     string            `json:"component,omitempty"`
	Timestamp     string            `json:"timestamp"`
	CustomDetails map[string]string `json:"custom_details,omitempty"`
}

// SendMessageFailure triggers an incident, retrying transient API errors.
func (c *Client) SendMessageFailure(ctx context.Context, payload notify.MessageFailurePayload) error {
	body, err := json.Marshal(c.buildEvent(payload))
	if err != nil {
		return fmt.Errorf("encode pagerduty event: %w", err)
	}

	return notify.Retry(ctx, c.attempts, retryStep, func(ctx context.Context) error {
		return c.enqueue(ctx, body)
	})
}

// buildEvent maps the failure payload onto a trigger event. Metadata rides
// along in custom_details but never displaces the canonical fields.
func (c *Client) buildEvent(payload notify.MessageFailurePayload) event {
	details := make(map[string]string, len(payload.Metadata)+5)
	record := func(key, value string) {
		if value != "" {
			details[key] = value
		}
	}
	record("job_id", payload.JobID)
	record("subject", payload.Subject)
	record("channel", payload.Channel)
	record("error", payload.Error)
	record("error_class", payload.ErrorClass)
	for key, value := range payload.Metadata {
		if _, taken := details[key]; !taken {
			details[key] = value
		}
	}

	occurred := payload.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	return event{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    dedupKey(payload),
		Payload: eventPayload{
			Summary:       summarize(payload),
			Severity:      cmp.Or(strings.ToLower(payload.Severity), notify.SeverityCritical),
			Source:        c.source,
			Component:     c.component,
			Timestamp:     occurred.UTC().Format(time.RFC3339),
			CustomDetails: details,
		},
	}
}

// One incident per job and channel; a job-wide fault dedups on the id alone.
func dedupKey(payload notify.MessageFailurePayload) string {
	return strings.Trim(payload.JobID+":"+payload.Channel, ":")
}

func summarize(payload notify.MessageFailurePayload) string {
	jobID := cmp.Or(payload.JobID, "unknown")
	if payload.Channel == "" {
		return fmt.Sprintf("Message job %s failed", jobID)
	}
	return fmt.Sprintf("Message job %s (%s) failed", jobID, payload.Channel)
}

func (c *Client) enqueue(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build pagerduty request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to pagerduty: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("pagerduty api %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
