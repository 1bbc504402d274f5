// Package riot is a rate-limited client for the Riot League and Match APIs.
package riot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"itemset-builder/internal/logger"
)

const (
	// Rate limits for dev key (conservative values)
	requestsPerSecond = 15 // Actual: 20
	requestsPer2Min   = 90 // Actual: 100

	// RankedSoloQueue is the match-v5 queue id of ranked solo/duo
	RankedSoloQueue = 420

	defaultRetryAfter = 10 * time.Second
	maxRetries        = 5
	matchIDsPageSize  = 100
)

var (
	ErrForbidden = errors.New("API returned 403 Forbidden - check if your API key is valid")
	ErrNotFound  = errors.New("API returned 404 Not Found - player/match may not exist")
)

// Client is a rate-limited Riot API client
type Client struct {
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger

	platformURL string // e.g. https://euw1.api.riotgames.com
	regionalURL string // e.g. https://europe.api.riotgames.com

	// both limiters must grant a token before a request goes out
	shortWindow *rate.Limiter
	longWindow  *rate.Limiter

	sleep func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHosts points both routing hosts at custom URLs (useful for testing)
func WithHosts(platformURL, regionalURL string) ClientOption {
	return func(c *Client) {
		c.platformURL = platformURL
		c.regionalURL = regionalURL
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) ClientOption {
	return func(c *Client) {
		c.log = l
	}
}

// WithRateLimits overrides the per-second and per-2-minute budgets
func WithRateLimits(perSecond, per2Min int) ClientOption {
	return func(c *Client) {
		c.shortWindow = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		c.longWindow = rate.NewLimiter(rate.Every(2*time.Minute/time.Duration(per2Min)), per2Min)
	}
}

// NewClient creates a new Riot API client for the platform (euw1, na1, ...)
// and its regional route (europe, americas, ...)
func NewClient(apiKey, platform, region string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("RIOT_API_KEY or RIOT-DEV-KEY environment variable not set")
	}

	c := &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log:         logger.Nop(),
		platformURL: fmt.Sprintf("https://%s.api.riotgames.com", platform),
		regionalURL: fmt.Sprintf("https://%s.api.riotgames.com", region),
		sleep:       sleepCtx,
	}
	WithRateLimits(requestsPerSecond, requestsPer2Min)(c)

	for _, opt := range opts {
		opt(c)
	}

	c.log.Debug("Riot client ready", "api_key", apiKey, "platform", c.platformURL, "region", c.regionalURL)
	return c, nil
}

// waitForRateLimit blocks until both windows allow another request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.shortWindow.Wait(ctx); err != nil {
		return err
	}
	return c.longWindow.Wait(ctx)
}

// doRequest makes a rate-limited GET and decodes the JSON body into result
func (c *Client) doRequest(ctx context.Context, url string, result interface{}) error {
	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= maxRetries {
				return fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.log.Warn("[429 Rate Limited] waiting", "seconds", wait.Seconds(), "attempt", attempt+1)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, result)
		resp.Body.Close()
		return err
	}
}

func decodeResponse(resp *http.Response, result interface{}) error {
	switch resp.StatusCode {
	case http.StatusOK:
		return json.NewDecoder(resp.Body).Decode(result)
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
}

func retryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultRetryAfter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ChallengerPUUIDs returns the ranked solo challenger players ordered by
// league points, lowest first
func (c *Client) ChallengerPUUIDs(ctx context.Context) ([]string, error) {
	url := fmt.Sprintf("%s/lol/league/v4/challengerleagues/by-queue/RANKED_SOLO_5x5", c.platformURL)

	var league LeagueListResponse
	if err := c.doRequest(ctx, url, &league); err != nil {
		return nil, fmt.Errorf("challenger league: %w", err)
	}

	entries := league.Entries
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].LeaguePoints < entries[j].LeaguePoints
	})

	puuids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.PUUID != "" {
			puuids = append(puuids, e.PUUID)
		}
	}
	return puuids, nil
}

// MatchIDs returns every ranked solo match id of the player in [start, end)
func (c *Client) MatchIDs(ctx context.Context, puuid string, start, end time.Time) ([]string, error) {
	var all []string
	for offset := 0; ; offset += matchIDsPageSize {
		q := url.Values{}
		q.Set("queue", strconv.Itoa(RankedSoloQueue))
		q.Set("startTime", strconv.FormatInt(start.Unix(), 10))
		q.Set("endTime", strconv.FormatInt(end.Unix(), 10))
		q.Set("start", strconv.Itoa(offset))
		q.Set("count", strconv.Itoa(matchIDsPageSize))

		reqURL := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?%s",
			c.regionalURL, url.PathEscape(puuid), q.Encode())

		var page []string
		if err := c.doRequest(ctx, reqURL, &page); err != nil {
			return all, err
		}
		all = append(all, page...)
		if len(page) < matchIDsPageSize {
			return all, nil
		}
	}
}

// GetMatch fetches match details
func (c *Client) GetMatch(ctx context.Context, matchID string) (*MatchResponse, error) {
	url := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalURL, matchID)

	var match MatchResponse
	if err := c.doRequest(ctx, url, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetTimeline fetches match timeline
func (c *Client) GetTimeline(ctx context.Context, matchID string) (*TimelineResponse, error) {
	url := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", c.regionalURL, matchID)

	var timeline TimelineResponse
	if err := c.doRequest(ctx, url, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}

// ItemPurchases extracts every ITEM_PURCHASED event from a timeline, in order
func ItemPurchases(timeline *TimelineResponse) []TimelineEvent {
	var events []TimelineEvent
	for _, frame := range timeline.Info.Frames {
		for _, event := range frame.Events {
			if event.Type == EventItemPurchased {
				events = append(events, event)
			}
		}
	}
	return events
}
