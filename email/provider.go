// Package email handles sending notification emails via multiple providers.
package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"reddit-live/pkg/notifier"
)

const (
	defaultSubject = "Live thread update"
	sendAttempts   = 3
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Sender sends notification emails using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	baseURL  string // For links in emails
}

// New creates a new email sender with the given provider.
func New(provider Provider, logger *slog.Logger, baseURL string) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		baseURL:  baseURL,
	}
}

// SendNotification sends an email notification about new updates.
func (s *Sender) SendNotification(ctx context.Context, sub *notifier.Subscription, watch *notifier.Watch, updates []*notifier.Update) error {
	if len(updates) == 0 {
		return nil
	}

	// The thread title is used as subject so clients group the emails.
	subject := subjectFor(watch)
	body := s.formatNotificationBody(sub, watch, updates)

	s.logger.Info("Sending notification email",
		"to", sub.Email,
		"subject", subject,
		"update_count", len(updates))

	return s.provider.Send(ctx, sub.Email, subject, body)
}

// SendWelcome sends a welcome email when a user first subscribes.
func (s *Sender) SendWelcome(ctx context.Context, sub *notifier.Subscription, watch *notifier.Watch, ip, userAgent string) error {
	subject := subjectFor(watch)
	body := s.formatWelcomeBody(sub, watch, ip, userAgent)

	s.logger.Info("Sending welcome email",
		"to", sub.Email,
		"subject", subject)

	return s.provider.Send(ctx, sub.Email, subject, body)
}

func subjectFor(watch *notifier.Watch) string {
	if watch.Title == "" {
		return defaultSubject
	}
	return watch.Title
}

// deliver runs one provider call with retries, logging each attempt. Errors
// wrapped with retry.Unrecoverable end the loop immediately.
func deliver(ctx context.Context, logger *slog.Logger, provider, to string, send func() error) error {
	return retry.Do(
		func() error {
			start := time.Now()
			err := send()
			duration := time.Since(start)
			if err != nil {
				logger.Warn("Email send attempt failed",
					"provider", provider,
					"to", to,
					"duration_ms", duration.Milliseconds(),
					"error", err)
				return err
			}
			logger.Info("Email sent",
				"provider", provider,
				"to", to,
				"duration_ms", duration.Milliseconds())
			return nil
		},
		retry.Attempts(sendAttempts),
		retry.Delay(time.Second),
		retry.MaxDelay(2*time.Minute),
		retry.MaxJitter(10*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("Retrying email send", "provider", provider, "attempt", n, "error", err)
		}),
	)
}
