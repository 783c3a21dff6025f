package bootstrap

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/gagyekum/residency/config"
	"github.com/joho/godotenv"
)

// InitLogger builds the process-wide JSON logger and installs it as the slog
// default. LOG_LEVEL selects the minimum level; the zero value is info, and a
// malformed value falls through to it.
func InitLogger() *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL")))

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// LoadConfig reads configuration from the environment, after loading a .env
// file when one exists in the working directory.
func LoadConfig() (config.AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config.AppConfig{}, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[config.AppConfig]()
	if err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig rejects configurations that would start no services.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	if _, err := cfg.GetEnabledServices(); err != nil {
		return fmt.Errorf("validate services: %w", err)
	}
	return nil
}

// GetEnabledServices lists the enabled service names for startup logging.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return nil
	}
	set, err := cfg.GetEnabledServices()
	if err != nil {
		// Startup validation reports this properly; here it just means
		// there is nothing to log.
		return nil
	}
	return set.Names()
}
