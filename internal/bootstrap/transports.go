package bootstrap

import (
	"log/slog"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/transport"
	"github.com/gagyekum/residency/internal/transport/mailer"
	"github.com/gagyekum/residency/internal/transport/mnotify"
)

// buildEmailTransport selects the email backend from configuration.
// A backend that fails to construct is returned as nil; dispatch then fails
// jobs selecting the channel with a configuration fault instead of crashing
// the process at startup.
func buildEmailTransport(logger *slog.Logger, cfg config.MessagingConfig) transport.Transport {
	switch cfg.EmailBackend {
	case config.EmailBackendSMTP:
		m, err := mailer.NewMailer(mailer.Config{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			FromName:   cfg.SMTP.FromName,
			RequireTLS: cfg.SMTP.RequireTLS,
			Timeout:    cfg.SMTP.Timeout,
			Logger:     logger,
		})
		if err != nil {
			logger.Error("failed to initialise smtp mailer", "error", err)
			return nil
		}
		return m
	default:
		return transport.NewConsoleEmail(logger)
	}
}

// buildSMSTransport selects the SMS backend from configuration.
func buildSMSTransport(logger *slog.Logger, cfg config.MessagingConfig) transport.Transport {
	switch cfg.SMSBackend {
	case config.SMSBackendMNotify:
		c, err := mnotify.NewClient(mnotify.Config{
			APIKey:      cfg.MNotify.APIKey,
			SenderID:    cfg.MNotify.SenderID,
			Endpoint:    cfg.MNotify.Endpoint,
			ResultPath:  cfg.MNotify.ResultPath,
			SuccessCode: cfg.MNotify.SuccessCode,
			Timeout:     cfg.MNotify.Timeout,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("failed to initialise mnotify client", "error", err)
			return nil
		}
		return c
	default:
		return transport.NewConsoleSMS(logger)
	}
}
