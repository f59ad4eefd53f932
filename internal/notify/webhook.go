package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/iammyeongho/pymonitor/internal/domain"
)

// Webhook posts alert events as JSON to a configured URL.
type Webhook struct {
	URL    string
	Client *http.Client
}

// NewWebhook builds a dispatcher that defaults to url. An empty url is
// fine: delivery then happens only for targets that set their own.
func NewWebhook(url string) *Webhook {
	return &Webhook{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type webhookPayload struct {
	Type      string `json:"type"`
	TargetID  string `json:"target_id"`
	Message   string `json:"message"`
	Severity  string `json:"severity"`
	Timestamp string `json:"timestamp"`
}

func (w *Webhook) Dispatch(ctx context.Context, ev domain.AlertEvent) error {
	url := w.URL
	if ev.WebhookURL != "" {
		url = ev.WebhookURL
	}
	if url == "" {
		// No destination configured anywhere; nothing to deliver.
		return nil
	}
	body, _ := json.Marshal(webhookPayload{
		Type:      string(ev.Type),
		TargetID:  string(ev.TargetID),
		Message:   ev.Message,
		Severity:  string(ev.Severity),
		Timestamp: ev.OccurredAt.Format(time.RFC3339),
	})
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errors.New("webhook non-2xx")
	}
	return nil
}
