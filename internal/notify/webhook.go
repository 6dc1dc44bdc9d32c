package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/itc-hub/sitecontrol/internal/models"
)

// WebhookAdapter POSTs notifications to an external HTTP endpoint as
// {user_id, email, subject, message}.
type WebhookAdapter struct {
	url    string
	client *http.Client
}

// NewWebhookAdapter creates a webhook adapter for the given endpoint URL.
func NewWebhookAdapter(url string) *WebhookAdapter {
	return &WebhookAdapter{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name implements Adapter.
func (w *WebhookAdapter) Name() string { return "webhook" }

type webhookPayload struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Send implements Adapter.
func (w *WebhookAdapter) Send(ctx context.Context, n *models.Notification) error {
	body, err := json.Marshal(webhookPayload{
		UserID:  n.UserID,
		Email:   n.Email,
		Subject: n.Subject,
		Message: n.Message,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: post: status %d", resp.StatusCode)
	}
	return nil
}
