package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// webhookPayload is the JSON body POSTed for every alert.
type webhookPayload struct {
	Source  string            `json:"source"`
	Level   AlertLevel        `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	SentAt  time.Time         `json:"ts"`
}

// WebhookNotifier POSTs alerts as JSON to an HTTP endpoint. Any 2xx
// response counts as delivered.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier returns a notifier for url. timeout <= 0 uses 10s.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	body, err := json.Marshal(webhookPayload{
		Source:  "analyticsd",
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		Fields:  alert.Fields,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("webhook: encode alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post %q: %w", alert.Title, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	io.Copy(io.Discard, resp.Body)

	log.Printf("[webhook] delivered %s alert %q", alert.Level, alert.Title)
	return nil
}
