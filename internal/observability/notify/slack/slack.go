package slack

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gagyekum/residency/internal/observability/notify"
)

const (
	defaultTimeout  = 5 * time.Second
	defaultUsername = "residency"

	// Linear backoff step between webhook retries.
	retryStep = 200 * time.Millisecond

	// Error responses beyond this are truncated before they reach logs.
	maxErrorBodyBytes = 4 << 10
)

// slackEscaper neutralises the characters Slack treats as markup control.
var slackEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Config configures the Slack incoming-webhook sink.
type Config struct {
	WebhookURL   string
	Channel      string // Slack channel override, not a delivery channel.
	Username     string
	Timeout      time.Duration
	RetryLimit   int
	Client       *http.Client
	JobURLPrefix string // base URL for linking to the job in the admin UI
}

// Client posts message-failure notifications to a Slack incoming webhook.
type Client struct {
	webhookURL  string
	channel     string
	username    string
	jobLinkBase string
	attempts    int
	httpClient  *http.Client
}

// NewClient validates cfg and returns a webhook client ready to send.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
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
		webhookURL:  webhookURL,
		channel:     strings.TrimSpace(cfg.Channel),
		username:    cmp.Or(strings.TrimSpace(cfg.Username), defaultUsername),
		jobLinkBase: strings.TrimSpace(cfg.JobURLPrefix),
		attempts:    max(cfg.RetryLimit, 0) + 1,
		httpClient:  httpClient,
	}, nil
}

// webhookMessage is the slice of the incoming-webhook schema this sink uses.
type webhookMessage struct {
	Text     string `json:"text"`
	Channel  string `json:"channel,omitempty"`
	Username string `json:"username,omitempty"`
}

// SendMessageFailure renders the payload as mrkdwn and posts it to the
// webhook, retrying transient errors.
func (c *Client) SendMessageFailure(ctx context.Context, payload notify.MessageFailurePayload) error {
	body, err := json.Marshal(c.message(payload))
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}

	return notify.Retry(ctx, c.attempts, retryStep, func(ctx context.Context) error {
		return c.post(ctx, body)
	})
}

func (c *Client) message(payload notify.MessageFailurePayload) webhookMessage {
	return webhookMessage{
		Text:     c.renderText(payload),
		Channel:  c.channel,
		Username: c.username,
	}
}

// renderText flattens the payload into the mrkdwn text Slack displays.
// Empty fields are skipped rather than rendered as blanks.
func (c *Client) renderText(payload notify.MessageFailurePayload) string {
	header := "*Message job failure*"
	if payload.JobID != "" {
		header += " `" + payload.JobID + "`"
	}
	if payload.Channel != "" {
		header += " (" + payload.Channel + ")"
	}

	lines := []string{header}
	field := func(label, value string) {
		if value != "" {
			lines = append(lines, "• "+label+": "+value)
		}
	}

	field("Severity", cmp.Or(payload.Severity, notify.SeverityCritical))
	field("Job", c.jobLink(payload.JobID))
	field("Subject", slackEscaper.Replace(payload.Subject))
	field("Channel", payload.Channel)
	field("Error class", payload.ErrorClass)
	field("Error", slackEscaper.Replace(payload.Error))

	if len(payload.Metadata) > 0 {
		lines = append(lines, "• Metadata:")
		for _, key := range slices.Sorted(maps.Keys(payload.Metadata)) {
			lines = append(lines, "    • "+key+": "+payload.Metadata[key])
		}
	}

	occurred := payload.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}
	lines = append(lines, "• Timestamp: "+occurred.UTC().Format(time.RFC3339))

	return strings.Join(lines, "\n")
}

// jobLink renders the job id as a Slack link. Without a configured, absolute
// link base the header's inline id has to do.
func (c *Client) jobLink(jobID string) string {
	if jobID == "" || c.jobLinkBase == "" {
		return ""
	}

	base, err := url.Parse(c.jobLinkBase)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return ""
	}

	href, err := url.JoinPath(c.jobLinkBase, jobID)
	if err != nil {
		return ""
	}
	return "<" + href + "|" + jobID + ">"
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post to slack webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return fmt.Errorf("slack webhook %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
