package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func TestNormalizeMetricName(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" dispatch/recipient ": "dispatch_recipient",
		"dispatch..job":        "dispatch.job",
		".janitor.run.":        "janitor.run",
		"batch duration":       "batch_duration",
		"":                     "",
	}

	for input, want := range tests {
		if got := normalizeMetricName(input); got != want {
			t.Errorf("normalizeMetricName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestTagSuffixMergesAndSorts(t *testing.T) {
	t.Parallel()

	client := &Client{globalTags: cleanTags(map[string]string{
		"env":       "prod",
		" service ": " residency ",
	})}

	got := client.tagSuffix(map[string]string{
		"channel": " sms ",
		"":        "ignored",
		"env":     "stage",
	})
	want := "|#channel:sms,env:stage,service:residency"
	if got != want {
		t.Fatalf("tagSuffix mismatch\n got: %q\nwant: %q", got, want)
	}

	if got := (&Client{}).tagSuffix(nil); got != "" {
		t.Fatalf("tagSuffix with no tags = %q, want empty string", got)
	}
}

func TestCleanTagsReturnsCopy(t *testing.T) {
	t.Parallel()

	original := map[string]string{
		"env": "prod",
		"":    "ignored",
	}

	cleaned := cleanTags(original)
	cleaned["env"] = "stage"
	if original["env"] != "prod" {
		t.Fatal("cleanTags did not copy values")
	}
	if _, ok := cleaned[""]; ok {
		t.Fatal("cleanTags kept empty key")
	}
}

func TestClientLifecycle(t *testing.T) {
	t.Parallel()

	conn, peer := net.Pipe()
	defer peer.Close()

	client := &Client{conn: conn}
	if !client.Enabled() {
		t.Fatal("client with a live connection reports disabled")
	}

	// Close is idempotent and disables emission.
	for i := range 2 {
		if err := client.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
	if client.Enabled() {
		t.Fatal("client still enabled after Close")
	}
}

func TestNilClientIsInert(t *testing.T) {
	t.Parallel()

	var c *Client
	if c.Enabled() {
		t.Fatal("nil client reports enabled")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("nil close: %v", err)
	}
	c.Count("dispatch.recipient", 1, nil)
	c.Gauge("queue.depth", 1, nil)
	c.Timing("batch.duration", time.Second, nil)
}

func TestNewClientStaysDisabled(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{Enabled: true, Address: "   "},
		{Enabled: false, Address: "127.0.0.1:8125"},
	}

	for _, cfg := range cases {
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient(%+v): %v", cfg, err)
		}
		if client.Enabled() {
			t.Fatalf("NewClient(%+v) produced an enabled client", cfg)
		}
		// Emissions on a disabled client are dropped, not sent.
		client.Count("dispatch.recipient", 1, nil)
	}
}

func TestNewClientDialError(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{Enabled: true, Address: "bad address"}); err == nil {
		t.Fatal("NewClient accepted an unparseable address")
	} else if !strings.Contains(err.Error(), "dial statsd") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestClientEmitsLineProtocol(t *testing.T) {
	t.Parallel()

	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen udp: %v", err)
	}
	defer pc.Close()

	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     "residency",
		GlobalTags: map[string]string{"env": "test"},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	defer client.Close()

	readLine := func() string {
		t.Helper()
		if derr := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); derr != nil {
			t.Fatalf("set read deadline: %v", derr)
		}
		buf := make([]byte, 512)
		n, _, rerr := pc.ReadFrom(buf)
		if rerr != nil {
			t.Fatalf("read datagram: %v", rerr)
		}
		return string(buf[:n])
	}

	client.Count("dispatch.recipient", 1, map[string]string{"channel": "email", "result": "success"})
	want := "residency.dispatch.recipient:1|c|#channel:email,env:test,result:success"
	if got := readLine(); got != want {
		t.Fatalf("unexpected counter line\n got: %q\nwant: %q", got, want)
	}

	client.Gauge("queue.depth", 12.5, nil)
	want = "residency.queue.depth:12.5|g|#env:test"
	if got := readLine(); got != want {
		t.Fatalf("unexpected gauge line\n got: %q\nwant: %q", got, want)
	}

	client.Timing("batch.duration", 1500*time.Millisecond, nil)
	want = "residency.batch.duration:1500|ms|#env:test"
	if got := readLine(); got != want {
		t.Fatalf("unexpected timing line\n got: %q\nwant: %q", got, want)
	}
}
