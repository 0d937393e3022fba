package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"time"

	"tokentra/internal/config"
	"tokentra/internal/models"
	"tokentra/internal/utils"
)

// RecipientSource resolves who should receive an organization's
// notification emails.
type RecipientSource interface {
	AdminEmails(ctx context.Context, orgID string) ([]string, error)
}

// EmailNotifier delivers notifications through a Resend-compatible
// transactional email API.
type EmailNotifier struct {
	client     *http.Client
	cfg        config.EmailConfig
	recipients RecipientSource
	logger     *utils.Logger
}

// NewEmailNotifier creates an email notifier.
func NewEmailNotifier(cfg config.EmailConfig, recipients RecipientSource, logger *utils.Logger) *EmailNotifier {
	return &EmailNotifier{
		client:     &http.Client{Timeout: 10 * time.Second},
		cfg:        cfg,
		recipients: recipients,
		logger:     logger,
	}
}

type emailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send emails the notification to the organization's admins. An
// organization with no admin recipients is skipped, not an error.
func (e *EmailNotifier) Send(ctx context.Context, n *models.Notification) error {
	to, err := e.recipients.AdminEmails(ctx, n.OrganizationID)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(to) == 0 {
		e.logger.Debug("no email recipients for organization", "org_id", n.OrganizationID)
		return nil
	}

	body, err := json.Marshal(emailRequest{
		From:    e.cfg.From,
		To:      to,
		Subject: n.Title,
		HTML:    renderHTML(n),
	})
	if err != nil {
		return fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("email API returned %d: %s", resp.StatusCode, detail)
	}

	e.logger.Debug("notification email sent",
		"org_id", n.OrganizationID,
		"type", n.Type,
		"recipients", len(to))
	return nil
}

func renderHTML(n *models.Notification) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <body style="font-family: sans-serif; color: #334155;">
    <h1 style="color: #0f172a;">%s</h1>
    <p>%s</p>
    <p style="color: #64748b; font-size: 12px;">Sent by TokenTRA alerting</p>
  </body>
</html>`, html.EscapeString(n.Title), html.EscapeString(n.Message))
}

// NoopNotifier discards notifications. Used when email delivery is
// disabled.
type NoopNotifier struct{}

// Send implements processor.Notifier.
func (NoopNotifier) Send(context.Context, *models.Notification) error { return nil }
