package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookNotifier posts the reminder as JSON. The "text" field makes the body
// acceptable to Slack-style incoming webhooks; ntfy reads "title" and
// "message".
type WebhookNotifier struct {
	url        string
	httpClient *http.Client
	now        func() time.Time
}

type webhookPayload struct {
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sentAt"`
}

func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WebhookNotifier{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		now: time.Now,
	}
}

func (w *WebhookNotifier) GetType() string {
	return "webhook"
}

func (w *WebhookNotifier) Deliver(ctx context.Context, message string) error {
	body, err := json.Marshal(webhookPayload{
		Title:   "Court session reminder",
		Message: message,
		Text:    message,
		SentAt:  w.now(),
	})
	if err != nil {
		return fmt.Errorf("encoding webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "docket-watcher")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook request failed - Status: %d, Body: %s", resp.StatusCode, string(snippet))
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
