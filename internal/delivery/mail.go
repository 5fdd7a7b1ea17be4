// Package delivery sends outbound email and push messages through HTTP APIs.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hireflow/internal/retry"
)

// Email is one outbound message.
type Email struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// MailConfig holds configuration for the HTTP mail API.
type MailConfig struct {
	BaseURL  string
	APIKey   string
	From     string
	FromName string
	Timeout  time.Duration
}

// HTTPMailer posts messages to a Resend-compatible /emails endpoint.
type HTTPMailer struct {
	client *resty.Client
	from   string
}

// NewHTTPMailer creates a new HTTPMailer.
func NewHTTPMailer(cfg *MailConfig) *HTTPMailer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	from := cfg.From
	if cfg.FromName != "" {
		from = fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From)
	}
	return &HTTPMailer{client: client, from: from}
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendEmailError struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// Send implements Mailer. Non-2xx responses are returned as *retry.HTTPError.
func (m *HTTPMailer) Send(ctx context.Context, msg Email) error {
	if strings.TrimSpace(msg.To) == "" {
		return fmt.Errorf("send email: empty recipient")
	}

	var apiErr sendEmailError
	resp, err := m.client.R().
		SetContext(ctx).
		SetBody(sendEmailRequest{
			From:    m.from,
			To:      []string{msg.To},
			Subject: msg.Subject,
			HTML:    msg.HTML,
		}).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	if resp.IsError() {
		text := apiErr.Message
		if text == "" {
			text = strings.TrimSpace(string(resp.Body()))
		}
		return &retry.HTTPError{StatusCode: resp.StatusCode(), Message: text}
	}
	return nil
}
