// Package alerting pushes billing-run failures to a webhook (Slack,
// Discord, or a generic JSON endpoint) so a failed monthly run does not go
// unnoticed until customers complain.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds alerting configuration.
type Config struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom).
	WebhookURL string `yaml:"webhook_url"`
	// WebhookType determines the payload format: "slack", "discord", or
	// "generic". Empty auto-detects from the URL.
	WebhookType string `yaml:"webhook_type"`
	// MinFailures is the per-run failure threshold before alerting.
	MinFailures int `yaml:"min_failures"`
}

// Alerter sends alerts to the configured webhook. A nil Alerter or an
// empty webhook URL disables alerting.
type Alerter struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Alerter {
	if cfg.WebhookURL == "" {
		return nil
	}
	if cfg.WebhookType == "" {
		switch {
		case strings.Contains(cfg.WebhookURL, "slack.com"):
			cfg.WebhookType = "slack"
		case strings.Contains(cfg.WebhookURL, "discord.com"):
			cfg.WebhookType = "discord"
		default:
			cfg.WebhookType = "generic"
		}
	}
	if cfg.MinFailures <= 0 {
		cfg.MinFailures = 1
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

// RunAlert describes the outcome of one billing run.
type RunAlert struct {
	JobName       string        `json:"job_name"`
	Month         string        `json:"month"`
	Billed        int           `json:"billed"`
	Skipped       int           `json:"skipped"`
	MissingTariff int           `json:"missing_tariff"`
	Failed        int           `json:"failed"`
	Duration      time.Duration `json:"-"`
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// SendRunAlert reports a billing run whose failure count crossed the
// threshold. Calling it on a nil Alerter is a no-op.
func (a *Alerter) SendRunAlert(ctx context.Context, alert RunAlert) error {
	if a == nil {
		return nil
	}
	if alert.Failed < a.cfg.MinFailures && alert.Error == "" {
		return nil
	}

	var payload []byte
	var err error
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(alert)
	case "discord":
		payload, err = a.buildDiscordPayload(alert)
	default:
		payload, err = a.buildGenericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.Info("billing alert sent",
		zap.String("job", alert.JobName), zap.Int("failed", alert.Failed))
	return nil
}

func (a *Alerter) buildSlackPayload(alert RunAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.Error != "" {
		emoji = ":x:"
	}

	summary := fmt.Sprintf("billed %d, skipped %d, no tariff %d, failed %d",
		alert.Billed, alert.Skipped, alert.MissingTariff, alert.Failed)
	if alert.Error != "" {
		summary += "\nerror: " + alert.Error
	}

	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Billing run alert: %s %s", emoji, alert.JobName, alert.Month),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": "*Result:*\n" + summary},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(alert RunAlert) ([]byte, error) {
	color := 16776960 // yellow
	if alert.Error != "" {
		color = 16711680 // red
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       fmt.Sprintf("Billing run alert: %s %s", alert.JobName, alert.Month),
				"description": fmt.Sprintf("%d customers failed to bill", alert.Failed),
				"color":       color,
				"fields": []map[string]any{
					{"name": "Billed", "value": fmt.Sprintf("%d", alert.Billed), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.Failed), "inline": true},
					{"name": "No tariff", "value": fmt.Sprintf("%d", alert.MissingTariff), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Error", "value": orDash(alert.Error), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(alert RunAlert) ([]byte, error) {
	payload := map[string]any{
		"alert_type":     "billing_run_failure",
		"job_name":       alert.JobName,
		"month":          alert.Month,
		"billed":         alert.Billed,
		"skipped":        alert.Skipped,
		"missing_tariff": alert.MissingTariff,
		"failed":         alert.Failed,
		"duration_ms":    alert.Duration.Milliseconds(),
		"error":          alert.Error,
		"timestamp":      alert.Timestamp.Format(time.RFC3339),
	}
	return json.Marshal(payload)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
