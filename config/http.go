package config

import "time"

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// Addr is the listen address.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is where this deployment is reachable from the outside,
	// e.g. "https://estate.example.com". Links in outbound notifications
	// are built against it.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// ReadTimeout, WriteTimeout and IdleTimeout are handed to the
	// net/http server verbatim.
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT"  envDefault:"120s"`

	// ShutdownTimeout bounds the graceful drain on exit.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// CompressionEnabled turns on gzip for responses that benefit from it.
	CompressionEnabled bool `env:"HTTP_COMPRESSION_ENABLED" envDefault:"false"`

	// CompressionLevel is the gzip level, 1 through 9.
	CompressionLevel int `env:"HTTP_COMPRESSION_LEVEL" envDefault:"6"`
}

// Sanitize repairs out-of-range HTTP settings.
func (h *HTTPConfig) Sanitize() {
	h.ReadTimeout = durationOr(h.ReadTimeout, 30*time.Second)
	h.WriteTimeout = durationOr(h.WriteTimeout, 30*time.Second)
	h.IdleTimeout = durationOr(h.IdleTimeout, 2*time.Minute)
	h.ShutdownTimeout = durationOr(h.ShutdownTimeout, 10*time.Second)
	h.CompressionLevel = clampInt(h.CompressionLevel, 1, 9)
}
