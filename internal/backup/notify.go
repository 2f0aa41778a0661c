package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"multidb-backup/internal/logging"
)

const notifyTimeout = 30 * time.Second

// Notifier delivers a finished run report to an external channel
type Notifier interface {
	Name() string
	Notify(ctx context.Context, report *RunReport) error
}

// WebhookConfig configures the generic webhook notifier
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Method string `yaml:"method"` // GET or POST, default POST
}

// MessagePusherConfig configures the message-pusher notifier
type MessagePusherConfig struct {
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// webhookPayload is the report shape sent to generic webhooks
type webhookPayload struct {
	Status    RunStatus       `json:"status"`
	StartTime string          `json:"start_time"`
	EndTime   string          `json:"end_time"`
	Duration  string          `json:"duration"`
	Success   []TargetOutcome `json:"success"`
	Failed    []TargetOutcome `json:"failed"`
}

// queryValues flattens the payload for GET delivery. List fields become
// repeated parameters carrying the target kinds.
func (p webhookPayload) queryValues() url.Values {
	values := url.Values{}
	values.Set("status", string(p.Status))
	values.Set("start_time", p.StartTime)
	values.Set("end_time", p.EndTime)
	values.Set("duration", p.Duration)
	for _, outcome := range p.Success {
		values.Add("success", string(outcome.Kind))
	}
	for _, outcome := range p.Failed {
		values.Add("failed", string(outcome.Kind))
	}
	return values
}

// WebhookNotifier POSTs (or GETs) the run report to an arbitrary HTTP
// endpoint. Any 2xx response counts as delivered.
type WebhookNotifier struct {
	url    string
	method string
	client *http.Client
	log    *logging.Logger
}

// NewWebhookNotifier creates a generic webhook notifier
func NewWebhookNotifier(cfg WebhookConfig, log *logging.Logger) *WebhookNotifier {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodPost
	}
	return &WebhookNotifier{
		url:    cfg.URL,
		method: method,
		client: &http.Client{Timeout: notifyTimeout},
		log:    log,
	}
}

func (w *WebhookNotifier) Name() string { return "webhook" }

// Notify delivers the run report: as a JSON body for POST, as URL query
// parameters for GET (a GET receiver reads the query string, not the body).
func (w *WebhookNotifier) Notify(ctx context.Context, report *RunReport) error {
	payload := webhookPayload{
		Status:    report.Status(),
		StartTime: report.StartedAt.Format(time.RFC3339),
		EndTime:   report.FinishedAt.Format(time.RFC3339),
		Duration:  FormatDuration(report.Duration()),
		Success:   report.Succeeded(),
		Failed:    report.Failed(),
	}

	var req *http.Request
	if w.method == http.MethodGet {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
		if err != nil {
			return fmt.Errorf("building webhook request: %w", err)
		}
		r.URL.RawQuery = payload.queryValues().Encode()
		req = r
	} else {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding webhook payload: %w", err)
		}
		r, err := http.NewRequestWithContext(ctx, w.method, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("building webhook request: %w", err)
		}
		r.Header.Set("Content-Type", "application/json")
		req = r
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	w.log.Debugf("webhook delivered to %s", w.url)
	return nil
}

// MessagePusherNotifier delivers run reports through a message-pusher
// service's admin push endpoint.
type MessagePusherNotifier struct {
	url     string
	token   string
	channel string
	client  *http.Client
	log     *logging.Logger
}

// NewMessagePusherNotifier creates a message-pusher notifier
func NewMessagePusherNotifier(cfg MessagePusherConfig, log *logging.Logger) *MessagePusherNotifier {
	return &MessagePusherNotifier{
		url:     strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		channel: cfg.Channel,
		client:  &http.Client{Timeout: notifyTimeout},
		log:     log,
	}
}

func (m *MessagePusherNotifier) Name() string { return "message-pusher" }

// Notify delivers a markdown summary of the run report
func (m *MessagePusherNotifier) Notify(ctx context.Context, report *RunReport) error {
	title := fmt.Sprintf("Backup %s", report.Status())
	description := fmt.Sprintf("%d succeeded, %d failed in %s",
		len(report.Succeeded()), len(report.Failed()), FormatDuration(report.Duration()))

	body := map[string]string{
		"title":       title,
		"description": description,
		"content":     formatMarkdownReport(report),
		"token":       m.token,
	}
	if m.channel != "" {
		body["channel"] = m.channel
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"/push/admin", bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivering push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("message-pusher returned status %d", resp.StatusCode)
	}

	m.log.Debugf("push delivered to %s", m.url)
	return nil
}

// formatMarkdownReport renders the run report as a markdown summary
func formatMarkdownReport(report *RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Backup run %s\n\n", report.Status())
	fmt.Fprintf(&b, "- Started: %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n\n", FormatDuration(report.Duration()))

	for _, outcome := range report.Outcomes {
		switch outcome.Status {
		case OutcomeSuccess:
			fmt.Fprintf(&b, "- ✅ **%s**: %s (%s)\n", outcome.Kind, outcome.Archive, outcome.Size)
		case OutcomeSkipped:
			fmt.Fprintf(&b, "- ⏭ **%s**: skipped (%s)\n", outcome.Kind, outcome.Reason)
		default:
			fmt.Fprintf(&b, "- ❌ **%s**: %s\n", outcome.Kind, outcome.Error)
		}
	}
	return b.String()
}
