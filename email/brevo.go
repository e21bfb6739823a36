package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const (
	brevoEndpoint = "https://api.brevo.com/v3/smtp/email"
	brevoTag      = "live-update"
)

// BrevoProvider delivers mail through Brevo's transactional API.
type BrevoProvider struct {
	endpoint string
	apiKey   string
	sender   brevoContact
	client   *http.Client
	logger   *slog.Logger
}

// NewBrevoProvider creates a Brevo provider sending as fromName <fromAddr>.
func NewBrevoProvider(apiKey, fromAddr, fromName string, logger *slog.Logger) *BrevoProvider {
	return &BrevoProvider{
		endpoint: brevoEndpoint,
		apiKey:   apiKey,
		sender:   brevoContact{Email: fromAddr, Name: fromName},
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

type brevoMessage struct {
	Sender  brevoContact   `json:"sender"`
	To      []brevoContact `json:"to"`
	Subject string         `json:"subject"`
	HTML    string         `json:"htmlContent"`
	Tags    []string       `json:"tags,omitempty"`
}

type brevoContact struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// brevoError is the body Brevo returns with a failed request.
type brevoError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Send implements Provider. Client errors other than 429 are not retried.
func (b *BrevoProvider) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(brevoMessage{
		Sender:  b.sender,
		To:      []brevoContact{{Email: to}},
		Subject: subject,
		HTML:    htmlBody,
		Tags:    []string{brevoTag},
	})
	if err != nil {
		return fmt.Errorf("marshal brevo message: %w", err)
	}

	return deliver(ctx, b.logger, "brevo", to, func() error {
		return b.post(ctx, payload)
	})
}

func (b *BrevoProvider) post(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			b.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	err = fmt.Errorf("brevo: HTTP %d%s", resp.StatusCode, brevoReason(resp.Body))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retry.Unrecoverable(err)
	}
	return err
}

func brevoReason(body io.Reader) string {
	var e brevoError
	if err := json.NewDecoder(io.LimitReader(body, 4096)).Decode(&e); err != nil || e.Message == "" {
		return ""
	}
	if e.Code == "" {
		return ": " + e.Message
	}
	return fmt.Sprintf(": %s (%s)", e.Message, e.Code)
}
