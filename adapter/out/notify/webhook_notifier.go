// Package notify implements the notifier port over an outbound webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"jobscout/core/domain"
	"jobscout/core/port/out"
	"jobscout/pkg/httputil"
	"jobscout/pkg/logger"
)

// WebhookNotifier posts digest, alert, and summary payloads as JSON to a
// single configured webhook URL. With no URL configured it degrades to
// logging, so a bare development setup still shows what would have been sent.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

var _ out.Notifier = (*WebhookNotifier)(nil)

// NewWebhookNotifier creates the webhook-backed notifier.
func NewWebhookNotifier(url string, client *http.Client) *WebhookNotifier {
	if client == nil {
		client = httputil.NewClient(nil)
	}
	return &WebhookNotifier{url: url, client: client}
}

// payload is the webhook envelope. Kind distinguishes the message types.
type payload struct {
	Kind    string `json:"kind"`
	Text    string `json:"text"`
	Data    any    `json:"data,omitempty"`
	SentAt  string `json:"sent_at"`
	Service string `json:"service"`
}

// SendJobDigest delivers the relevant postings of one run.
func (n *WebhookNotifier) SendJobDigest(ctx context.Context, jobs []domain.ExtractedJob) error {
	text := fmt.Sprintf("%d new job postings matched your profile", len(jobs))
	return n.post(ctx, payload{Kind: "job_digest", Text: text, Data: jobs})
}

// SendOperatorAlert surfaces an operator-facing problem.
func (n *WebhookNotifier) SendOperatorAlert(ctx context.Context, message string) error {
	return n.post(ctx, payload{Kind: "operator_alert", Text: message})
}

// SendDailySummary delivers the daily aggregate digest.
func (n *WebhookNotifier) SendDailySummary(ctx context.Context, s out.DailySummaryStats) error {
	text := fmt.Sprintf("daily summary: %d jobs found, %d notified", s.JobsFound, s.Notified)
	return n.post(ctx, payload{Kind: "daily_summary", Text: text, Data: s})
}

func (n *WebhookNotifier) post(ctx context.Context, p payload) error {
	p.SentAt = time.Now().UTC().Format(time.RFC3339)
	p.Service = "jobscout"

	if n.url == "" {
		logger.Info("notifier (no webhook configured): [%s] %s", p.Kind, p.Text)
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
