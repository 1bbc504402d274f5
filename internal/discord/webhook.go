// Package discord posts run notifications to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
)

const (
	// Colors for Discord embeds
	colorRed   = 15158332 // 0xE74C3C
	colorGreen = 5763719  // 0x57F287

	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// RunSummary is what a finished generation run reports
type RunSummary struct {
	Days         int
	NewMatches   int
	TotalMatches int
	Champions    int
	Runtime      time.Duration
	Version      string // catalog patch
	Finished     time.Time
}

// NewRunSummaryPayload creates the payload for a successful run
func NewRunSummaryPayload(s RunSummary) WebhookPayload {
	embed := Embed{
		Title: "Item sets generated",
		Color: colorGreen,
		Fields: []EmbedField{
			{Name: "Champions", Value: formatNumber(s.Champions), Inline: true},
			{Name: "New Matches", Value: formatNumber(s.NewMatches), Inline: true},
			{Name: "Total Matches", Value: formatNumber(s.TotalMatches), Inline: true},
			{Name: "Window", Value: fmt.Sprintf("%d days", s.Days), Inline: true},
			{Name: "Runtime", Value: formatDuration(s.Runtime), Inline: true},
		},
	}
	if s.Version != "" {
		embed.Footer = &EmbedFooter{Text: "Patch " + s.Version}
	}
	if !s.Finished.IsZero() {
		embed.Timestamp = s.Finished.UTC().Format(time.RFC3339)
	}
	return WebhookPayload{Embeds: []Embed{embed}}
}

// NewKeyExpiredPayload creates the payload sent when the API rejects the key
func NewKeyExpiredPayload(apiKey string, matchesStored int, runtime time.Duration) WebhookPayload {
	return WebhookPayload{
		Content: "@here API Key Expired!",
		Embeds: []Embed{
			{
				Title: "🔑 API Key Expired",
				Color: colorRed,
				Fields: []EmbedField{
					{Name: "Key", Value: maskAPIKey(apiKey), Inline: true},
					{Name: "Matches Stored", Value: formatNumber(matchesStored), Inline: true},
					{Name: "Runtime", Value: formatDuration(runtime), Inline: true},
				},
				Footer: &EmbedFooter{
					Text: "Set a fresh RIOT_API_KEY and rerun generate",
				},
			},
		},
	}
}

// NewRunFailedPayload creates the payload for a run that stopped on an error
func NewRunFailedPayload(stage string, err error) WebhookPayload {
	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       "Generation failed",
				Description: err.Error(),
				Color:       colorRed,
				Fields:      []EmbedField{{Name: "Stage", Value: stage, Inline: true}},
			},
		},
	}
}

// WebhookClient sends notifications to Discord webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
	}
}

// Send posts a payload, retrying when Discord rate limits
func (c *WebhookClient) Send(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	s := strconv.Itoa(n)
	if n < 1000 {
		return s
	}

	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xh Ym", or "Xm Ys" under an hour
func formatDuration(d time.Duration) string {
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

// maskAPIKey masks an API key for display (e.g., "RGAPI-xxxx-xxxx" -> "RGAPI...xxxx")
func maskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
