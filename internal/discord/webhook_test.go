package discord

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func TestRunSummaryPayload_Format(t *testing.T) {
	finished := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	payload := NewRunSummaryPayload(RunSummary{
		Days:         3,
		NewMatches:   1250,
		TotalMatches: 47832,
		Champions:    168,
		Runtime:      2*time.Hour + 5*time.Minute,
		Version:      "14.9.1",
		Finished:     finished,
	})

	if len(payload.Embeds) != 1 {
		t.Fatalf("Expected 1 embed, got %d", len(payload.Embeds))
	}
	embed := payload.Embeds[0]
	if embed.Color != colorGreen {
		t.Errorf("Expected green color, got %d", embed.Color)
	}

	want := map[string]string{
		"Champions":     "168",
		"New Matches":   "1,250",
		"Total Matches": "47,832",
		"Window":        "3 days",
		"Runtime":       "2h 5m",
	}
	for _, f := range embed.Fields {
		if v, ok := want[f.Name]; ok && v != f.Value {
			t.Errorf("field %s: got %q, want %q", f.Name, f.Value, v)
		}
		delete(want, f.Name)
	}
	if len(want) != 0 {
		t.Errorf("missing fields: %v", want)
	}
	if embed.Footer == nil || embed.Footer.Text != "Patch 14.9.1" {
		t.Errorf("footer: got %+v", embed.Footer)
	}
	if embed.Timestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("timestamp: got %q", embed.Timestamp)
	}
}

func TestKeyExpiredPayload_MasksKey(t *testing.T) {
	payload := NewKeyExpiredPayload("RGAPI-12345678-abcd-efgh-ijkl-mnopqrstuvwx", 10, 90*time.Second)

	if !strings.Contains(payload.Content, "@here") {
		t.Error("Expected @here mention in content")
	}
	key := payload.Embeds[0].Fields[0].Value
	if key != "RGAPI...uvwx" {
		t.Errorf("masked key: got %q", key)
	}
	if got := payload.Embeds[0].Fields[2].Value; got != "1m 30s" {
		t.Errorf("runtime: got %q", got)
	}
}

func TestRunFailedPayload(t *testing.T) {
	payload := NewRunFailedPayload("ingest", errors.New("batch failed"))
	if payload.Embeds[0].Description != "batch failed" || payload.Embeds[0].Fields[0].Value != "ingest" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d): got %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestWebhookClient_Send(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected JSON content type")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &received); err != nil {
			t.Errorf("Failed to parse payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	err := NewWebhookClient(server.URL).Send(context.Background(), NewRunSummaryPayload(RunSummary{Champions: 2}))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(received.Embeds) != 1 || received.Embeds[0].Title != "Item sets generated" {
		t.Errorf("received: got %+v", received)
	}
}

func TestWebhookClient_RetriesOn429(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "hi"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestWebhookClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	if err := NewWebhookClient(server.URL).Send(context.Background(), WebhookPayload{Content: "hi"}); err == nil {
		t.Error("Expected error for 400 response")
	}
}
