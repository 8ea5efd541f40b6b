// Package sms holds the outbound SMS gateways. Each gateway sends one message
// to one recipient and returns the provider message id.
package sms

import (
	"context"
	"fmt"
	"log/slog"

	"roadAccident/internal/config"
)

type Gateway interface {
	Send(ctx context.Context, to, body string) (string, error)
	Name() string
	Enabled() bool
}

// New picks the gateway named by SMS_PROVIDER. Unknown or unconfigured
// providers degrade to the log gateway.
func New(cfg config.SMSConfig, logger *slog.Logger) Gateway {
	switch cfg.Provider {
	case "twilio":
		if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
			logger.Warn("twilio selected but credentials are missing, using log gateway")
			return NewLogGateway(logger)
		}
		logger.Info("Initializing Twilio SMS gateway", slog.String("from", cfg.Twilio.From))
		return NewTwilioGateway(cfg.Twilio)
	case "kavenegar":
		if cfg.Kavenegar.APIKey == "" {
			logger.Warn("kavenegar selected but KAVENEGAR_API_KEY is not set, using log gateway")
			return NewLogGateway(logger)
		}
		logger.Info("Initializing Kavenegar SMS gateway", slog.String("sender", cfg.Kavenegar.Sender))
		return NewKavenegarGateway(cfg.Kavenegar)
	case "", "log":
		return NewLogGateway(logger)
	default:
		logger.Warn("unknown SMS_PROVIDER, using log gateway", slog.String("provider", cfg.Provider))
		return NewLogGateway(logger)
	}
}

// callWithContext runs a blocking provider call and gives up when ctx is done.
// The provider SDKs take no context, so a timed-out call keeps running in the
// background and its result is dropped.
func callWithContext(ctx context.Context, fn func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	type result struct {
		id  string
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := fn()
		done <- result{id: id, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("sms send aborted: %w", ctx.Err())
	case r := <-done:
		return r.id, r.err
	}
}
