package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/hireflow/internal/retry"
)

// PushMessage is a web-push payload for one device subscription.
type PushMessage struct {
	Endpoint string
	P256dh   string
	Auth     string
	Title    string
	Body     string
	URL      string
}

// Pusher delivers push notifications.
type Pusher interface {
	Push(ctx context.Context, msg PushMessage) error
}

// PushConfig holds configuration for the push gateway.
type PushConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// PushGateway forwards push messages to an HTTP gateway that owns the VAPID keys.
type PushGateway struct {
	client *resty.Client
}

// NewPushGateway creates a new PushGateway.
func NewPushGateway(cfg *PushConfig) *PushGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)
	return &PushGateway{client: client}
}

type pushRequest struct {
	Subscription pushSubscription `json:"subscription"`
	Payload      pushPayload      `json:"payload"`
}

type pushSubscription struct {
	Endpoint string            `json:"endpoint"`
	Keys     map[string]string `json:"keys"`
}

type pushPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
}

// Push implements Pusher.
func (g *PushGateway) Push(ctx context.Context, msg PushMessage) error {
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(pushRequest{
			Subscription: pushSubscription{
				Endpoint: msg.Endpoint,
				Keys:     map[string]string{"p256dh": msg.P256dh, "auth": msg.Auth},
			},
			Payload: pushPayload{Title: msg.Title, Body: msg.Body, URL: msg.URL},
		}).
		Post("/send")
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	if resp.IsError() {
		return &retry.HTTPError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(string(resp.Body()))}
	}
	return nil
}
