package statsd

import (
	"cmp"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const dialTimeout = 5 * time.Second

// Sink accepts StatsD-style counters, gauges, and timings.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

// Config sets the emission target. Leave Address empty or Enabled false to
// run without metrics.
type Config struct {
	Enabled    bool
	Address    string            // UDP host:port of the statsd agent
	Prefix     string            // leading segment for every metric name
	Logger     *slog.Logger
	GlobalTags map[string]string // merged into every emission's tags
}

// Client emits metrics over UDP using the StatsD line protocol with
// DogStatsD-style tags. It is safe for concurrent use, and a nil or disabled
// client swallows every call, so emission sites never need a guard.
type Client struct {
	prefix     string
	globalTags map[string]string
	logger     *slog.Logger

	mu   sync.Mutex
	conn net.Conn
}

var _ Sink = (*Client)(nil)

// NewClient opens the UDP socket when metrics are enabled. A disabled config
// still yields a usable client whose emissions are dropped.
func NewClient(cfg Config) (*Client, error) {
	client := &Client{
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		globalTags: cleanTags(cfg.GlobalTags),
		logger:     cmp.Or(cfg.Logger, slog.Default()),
	}

	address := strings.TrimSpace(cfg.Address)
	if !cfg.Enabled || address == "" {
		return client, nil
	}

	conn, err := net.DialTimeout("udp", address, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial statsd at %s: %w", address, err)
	}
	client.conn = conn

	return client, nil
}

// Enabled reports whether emissions actually leave the process.
func (c *Client) Enabled() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	connected := c.conn != nil
	c.mu.Unlock()
	return connected
}

// Count adds value to a counter.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.emit(name, strconv.FormatInt(value, 10), "c", tags)
}

// Gauge sets the current level of a gauge.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.emit(name, formatFloat(value), "g", tags)
}

// Timing records a duration in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	c.emit(name, formatFloat(value.Seconds()*1e3), "ms", tags)
}

// Close drops the socket. Emissions after Close are discarded.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// emit assembles <prefix.name>:<value>|<kind>[|#tags] and sends it as a
// single datagram.
func (c *Client) emit(name, value, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	metric := c.metricName(name)
	if metric == "" {
		return
	}
	line := fmt.Sprintf("%s:%s|%s%s", metric, value, kind, c.tagSuffix(tags))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}

	// Metrics are best effort. A dropped datagram must never affect dispatch.
	if _, err := c.conn.Write([]byte(line)); err != nil {
		c.logger.Debug("statsd send failed", "metric", metric, "error", err)
	}
}

func (c *Client) metricName(name string) string {
	name = normalizeMetricName(name)
	if name == "" {
		return ""
	}
	if c.prefix == "" {
		return name
	}
	return c.prefix + "." + name
}

// tagSuffix renders the merged tag set as a DogStatsD suffix. Local tags win
// over global ones; keys are sorted so emitted lines are stable.
func (c *Client) tagSuffix(local map[string]string) string {
	merged := make(map[string]string, len(c.globalTags)+len(local))
	maps.Copy(merged, c.globalTags)
	for k, v := range local {
		if k = strings.TrimSpace(k); k != "" {
			merged[k] = strings.TrimSpace(v)
		}
	}
	if len(merged) == 0 {
		return ""
	}

	parts := make([]string, 0, len(merged))
	for _, key := range slices.Sorted(maps.Keys(merged)) {
		parts = append(parts, key+":"+merged[key])
	}
	return "|#" + strings.Join(parts, ",")
}

var metricNameCleaner = strings.NewReplacer(" ", "_", "/", "_")

// normalizeMetricName rewrites a name into dotted StatsD form: spaces and
// slashes become underscores, empty dot segments are dropped.
func normalizeMetricName(name string) string {
	cleaned := metricNameCleaner.Replace(strings.TrimSpace(name))
	return strings.Join(strings.FieldsFunc(cleaned, func(r rune) bool { return r == '.' }), ".")
}

// cleanTags copies tags, trimming keys and values and dropping empty keys.
func cleanTags(tags map[string]string) map[string]string {
	cleaned := make(map[string]string, len(tags))
	for k, v := range tags {
		if k = strings.TrimSpace(k); k != "" {
			cleaned[k] = strings.TrimSpace(v)
		}
	}
	return cleaned
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
