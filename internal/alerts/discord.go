package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *DiscordSender) Name() string {
	return "discord"
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	embed := s.buildEmbed(payload)

	webhookPayload := map[string]interface{}{
		"embeds": []interface{}{embed},
	}

	body, err := json.Marshal(webhookPayload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return nil
}

func (s *DiscordSender) buildEmbed(payload *AlertPayload) map[string]interface{} {
	// Determine title and color
	var title string
	var color int
	switch payload.Tier {
	case "HIGH":
		title = "🚀 High-potential launch"
		color = 0x00C853 // Green
	case "MEDIUM":
		title = "📈 Promising launch"
		color = 0xFFA500 // Orange
	default:
		title = "ℹ️ Launch worth watching"
		color = 0x0099FF // Blue
	}

	description := fmt.Sprintf("**%s** on **%s** scored **%.1f/100**\n%s",
		displayName(payload),
		payload.Chain,
		payload.Score,
		payload.ActionText,
	)

	fields := []map[string]interface{}{
		{
			"name":   "Address",
			"value":  fmt.Sprintf("`%s`", payload.AddressShort),
			"inline": true,
		},
		{
			"name":   "Tier",
			"value":  payload.Tier,
			"inline": true,
		},
		{
			"name":   "Action",
			"value":  payload.Action,
			"inline": true,
		},
		{
			"name":   "Confidence",
			"value":  fmt.Sprintf("%s (%.0f%%)", payload.Level, payload.Confidence*100),
			"inline": true,
		},
		{
			"name":   "Risk",
			"value":  payload.Risk,
			"inline": true,
		},
		{
			"name":   "Timeframe",
			"value":  payload.Timeframe,
			"inline": true,
		},
	}

	if len(payload.Components) > 0 {
		fields = append(fields, map[string]interface{}{
			"name":   "📊 Score Breakdown",
			"value":  s.formatComponents(payload),
			"inline": false,
		})
	}

	footer := map[string]interface{}{
		"text": fmt.Sprintf("launchwatch • %s • threshold %.0f • %s",
			payload.Environment,
			payload.Threshold,
			payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC")),
	}

	return map[string]interface{}{
		"title":       title,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer":      footer,
		"timestamp":   payload.Timestamp.Format(time.RFC3339),
	}
}

func (s *DiscordSender) formatComponents(payload *AlertPayload) string {
	var parts []string
	for _, c := range payload.Components {
		parts = append(parts, fmt.Sprintf("%s: **%.0f**", c.Name, c.Score))
	}
	if len(payload.StrongPoints) > 0 {
		parts = append(parts, "💪 Strong: "+strings.Join(payload.StrongPoints, ", "))
	}
	if len(payload.WeakPoints) > 0 {
		parts = append(parts, "⚠️ Weak: "+strings.Join(payload.WeakPoints, ", "))
	}
	return truncate(strings.Join(parts, "\n"), 1000)
}
