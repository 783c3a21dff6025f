package mnotify

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/gagyekum/residency/internal/transport"
)

// Defaults for the quick-send endpoint.
const (
	DefaultEndpoint    = "https://api.mnotify.com/api/sms/quick"
	DefaultResultPath  = "code"
	DefaultSuccessCode = "2000"
)

const defaultTimeout = 30 * time.Second

// Config captures the subset of the MNotify API surface we need.
type Config struct {
	APIKey      string
	SenderID    string
	Endpoint    string // Defaults to DefaultEndpoint.
	ResultPath  string // JMESPath into the response body, defaults to DefaultResultPath.
	SuccessCode string // Expected value at ResultPath, defaults to DefaultSuccessCode.
	Timeout     time.Duration
	Client      *http.Client
	Logger      *slog.Logger
}

// Client delivers SMS messages through the MNotify HTTP API.
type Client struct {
	apiKey      string
	senderID    string
	endpoint    string
	resultPath  string
	successCode string
	client      *http.Client
}

// NewClient builds an MNotify client. Missing credentials do not fail
// construction; they surface as a configuration fault on the first send, so
// an unconfigured deployment fails the affected job rather than the whole
// process.
func NewClient(cfg Config) (*Client, error) {
	logger := cmp.Or(cfg.Logger, slog.Default())

	endpoint := cmp.Or(strings.TrimSpace(cfg.Endpoint), DefaultEndpoint)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid mnotify endpoint: %w", err)
	}

	resultPath := cmp.Or(strings.TrimSpace(cfg.ResultPath), DefaultResultPath)
	if _, err := jmespath.Compile(resultPath); err != nil {
		return nil, fmt.Errorf("invalid mnotify result path: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	c := &Client{
		apiKey:      strings.TrimSpace(cfg.APIKey),
		senderID:    strings.TrimSpace(cfg.SenderID),
		endpoint:    endpoint,
		resultPath:  resultPath,
		successCode: cmp.Or(strings.TrimSpace(cfg.SuccessCode), DefaultSuccessCode),
		client:      hc,
	}
	if c.apiKey == "" || c.senderID == "" {
		logger.Warn("mnotify client not fully configured, sms sends will fail",
			"api_key_set", c.apiKey != "",
			"sender_id_set", c.senderID != "")
	}
	return c, nil
}

// smsRequest is the quick-send payload. The API expects is_schedule and
// schedule_date even for immediate sends.
type smsRequest struct {
	Recipient    []string `json:"recipient"`
	Sender       string   `json:"sender"`
	Message      string   `json:"message"`
	IsSchedule   bool     `json:"is_schedule"`
	ScheduleDate string   `json:"schedule_date"`
}

// Send delivers one SMS message. Delivery failures come back as plain errors
// and are never retried here; a failed recipient stays failed until an
// explicit job retry.
func (c *Client) Send(ctx context.Context, msg transport.Message) error {
	if c.apiKey == "" || c.senderID == "" {
		return &transport.ConfigError{Backend: "mnotify", Reason: "API key and sender id are required"}
	}

	body, err := json.Marshal(smsRequest{
		Recipient:    []string{msg.To},
		Sender:       c.senderID,
		Message:      msg.Body,
		IsSchedule:   false,
		ScheduleDate: "",
	})
	if err != nil {
		return fmt.Errorf("encode mnotify payload: %w", err)
	}

	respBody, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	return c.checkResult(respBody)
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create mnotify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	q := req.URL.Query()
	q.Set("key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mnotify request failed: %w", err)
	}

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		closeErr := resp.Body.Close()
		if closeErr != nil {
			return nil, errors.Join(
				fmt.Errorf("read mnotify response: %w", readErr),
				fmt.Errorf("close response body: %w", closeErr),
			)
		}
		return nil, fmt.Errorf("read mnotify response: %w", readErr)
	}
	if err := resp.Body.Close(); err != nil {
		return nil, fmt.Errorf("close response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("mnotify api %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

// checkResult validates the provider's result code. MNotify reports failures
// with HTTP 200 and a non-success code in the JSON body.
func (c *Client) checkResult(respBody []byte) error {
	var data any
	if err := json.Unmarshal(respBody, &data); err != nil {
		return fmt.Errorf("decode mnotify response: %w", err)
	}

	result, err := jmespath.Search(c.resultPath, data)
	if err != nil {
		return fmt.Errorf("evaluate mnotify result path: %w", err)
	}

	code := formatResult(result)
	if code != c.successCode {
		return fmt.Errorf("mnotify api error: %s (code: %s)", extractMessage(data), code)
	}
	return nil
}

// formatResult renders the extracted result value the way the API documents
// its codes, so numeric 2000 and string "2000" both match.
func formatResult(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", tv)
	}
}

func extractMessage(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return "unknown error"
	}
	msg, ok := obj["message"].(string)
	if !ok || strings.TrimSpace(msg) == "" {
		return "unknown error"
	}
	return msg
}
