package riot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := NewClient("RGAPI-test-key", "euw1", "europe",
		WithHosts(server.URL, server.URL),
		WithRateLimits(1000, 1000),
	)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c
}

func TestNewClient_RequiresKey(t *testing.T) {
	if _, err := NewClient("", "euw1", "europe"); err == nil {
		t.Error("Expected error for missing API key")
	}
}

func TestChallengerPUUIDs_SortedByLeaguePoints(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"tier":"CHALLENGER","entries":[
			{"puuid":"c","leaguePoints":1500},
			{"puuid":"a","leaguePoints":900},
			{"puuid":"","leaguePoints":1000},
			{"puuid":"b","leaguePoints":1200}
		]}`))
	}))

	got, err := c.ChallengerPUUIDs(context.Background())
	if err != nil {
		t.Fatalf("ChallengerPUUIDs failed: %v", err)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestMatchIDs_PagesAndWindow(t *testing.T) {
	start := time.Unix(1700000000, 0)
	end := start.Add(24 * time.Hour)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("queue") != "420" {
			t.Errorf("queue: got %q", q.Get("queue"))
		}
		if q.Get("startTime") != "1700000000" || q.Get("endTime") != "1700086400" {
			t.Errorf("window: got %s..%s", q.Get("startTime"), q.Get("endTime"))
		}

		// first page is full, second page is short
		n := matchIDsPageSize
		if q.Get("start") != "0" {
			n = 3
		}
		ids := make([]string, n)
		for i := range ids {
			ids[i] = fmt.Sprintf("EUW1_%s_%d", q.Get("start"), i)
		}
		fmt.Fprintf(w, "[")
		for i, id := range ids {
			if i > 0 {
				fmt.Fprintf(w, ",")
			}
			fmt.Fprintf(w, "%q", id)
		}
		fmt.Fprintf(w, "]")
	}))

	got, err := c.MatchIDs(context.Background(), "puuid-1", start, end)
	if err != nil {
		t.Fatalf("MatchIDs failed: %v", err)
	}
	if len(got) != matchIDsPageSize+3 {
		t.Errorf("got %d ids, want %d", len(got), matchIDsPageSize+3)
	}
}

func TestDoRequest_RetriesOn429(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"metadata":{"matchId":"EUW1_1"},"info":{"platformId":"EUW1","gameDuration":1800}}`))
	}))

	var waited []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waited = append(waited, d)
		return nil
	}

	match, err := c.GetMatch(context.Background(), "EUW1_1")
	if err != nil {
		t.Fatalf("GetMatch failed: %v", err)
	}
	if match.Metadata.MatchID != "EUW1_1" || match.Info.PlatformID != "EUW1" {
		t.Errorf("unexpected match %+v", match)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
	if len(waited) != 1 || waited[0] != time.Second {
		t.Errorf("waited: got %v, want [1s]", waited)
	}
}

func TestDoRequest_GivesUpAfterRetries(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	if _, err := c.GetMatch(context.Background(), "EUW1_1"); err == nil {
		t.Error("Expected error after exhausting retries")
	}
}

func TestDoRequest_StatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusForbidden, ErrForbidden},
		{http.StatusUnauthorized, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		_, err := c.GetTimeline(context.Background(), "EUW1_1")
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: got %v, want %v", tt.status, err, tt.want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	if got := retryAfter("3"); got != 3*time.Second {
		t.Errorf("retryAfter(3): got %v", got)
	}
	if got := retryAfter(""); got != defaultRetryAfter {
		t.Errorf("retryAfter(empty): got %v", got)
	}
	if got := retryAfter("soon"); got != defaultRetryAfter {
		t.Errorf("retryAfter(soon): got %v", got)
	}
}

func TestItemPurchases(t *testing.T) {
	timeline := &TimelineResponse{Info: TimelineInfo{Frames: []TimelineFrame{
		{Events: []TimelineEvent{
			{Type: EventItemPurchased, Timestamp: 1000, ParticipantID: 1, ItemID: 1056},
			{Type: "ITEM_SOLD", Timestamp: 2000, ParticipantID: 1, ItemID: 1056},
		}},
		{Events: []TimelineEvent{
			{Type: EventItemPurchased, Timestamp: 300000, ParticipantID: 2, ItemID: 3089},
		}},
		{},
	}}}

	got := ItemPurchases(timeline)
	if len(got) != 2 || got[0].ItemID != 1056 || got[1].ItemID != 3089 {
		t.Errorf("ItemPurchases: got %+v", got)
	}
}
