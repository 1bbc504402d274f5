package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

const defaultDDragonURL = "https://ddragon.leagueoflegends.com"

// Loader fetches the catalog from Data Dragon
type Loader struct {
	baseURL    string
	locale     string
	httpClient *http.Client
}

// LoaderOption configures a Loader
type LoaderOption func(*Loader)

// WithDDragonURL overrides the Data Dragon host (for testing)
func WithDDragonURL(url string) LoaderOption {
	return func(l *Loader) {
		l.baseURL = url
	}
}

// WithLocale selects the locale of the names
func WithLocale(locale string) LoaderOption {
	return func(l *Loader) {
		l.locale = locale
	}
}

// WithHTTPClient replaces the default client
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) {
		l.httpClient = c
	}
}

// NewLoader creates a Data Dragon loader
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		baseURL:    defaultDDragonURL,
		locale:     "en_US",
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type ddChampion struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type ddItem struct {
	Name  string   `json:"name"`
	Depth int      `json:"depth"`
	Tags  []string `json:"tags"`
	Into  []string `json:"into"`
}

// LatestVersion returns the newest patch listed by Data Dragon
func (l *Loader) LatestVersion(ctx context.Context) (string, error) {
	var versions []string
	if err := l.getJSON(ctx, l.baseURL+"/api/versions.json", &versions); err != nil {
		return "", fmt.Errorf("failed to fetch versions: %w", err)
	}
	if len(versions) == 0 {
		return "", fmt.Errorf("no versions available")
	}
	return versions[0], nil
}

// Load fetches champions and items for version. An empty version means latest.
func (l *Loader) Load(ctx context.Context, version string) (*Index, error) {
	if version == "" {
		v, err := l.LatestVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = v
	}

	var champData struct {
		Data map[string]ddChampion `json:"data"`
	}
	champURL := fmt.Sprintf("%s/cdn/%s/data/%s/champion.json", l.baseURL, version, l.locale)
	if err := l.getJSON(ctx, champURL, &champData); err != nil {
		return nil, fmt.Errorf("failed to fetch champions: %w", err)
	}

	var itemData struct {
		Data map[string]ddItem `json:"data"`
	}
	itemURL := fmt.Sprintf("%s/cdn/%s/data/%s/item.json", l.baseURL, version, l.locale)
	if err := l.getJSON(ctx, itemURL, &itemData); err != nil {
		return nil, fmt.Errorf("failed to fetch items: %w", err)
	}

	champions, err := decodeChampions(champData.Data)
	if err != nil {
		return nil, err
	}
	items, err := decodeItems(itemData.Data)
	if err != nil {
		return nil, err
	}
	return New(version, champions, items), nil
}

func decodeChampions(data map[string]ddChampion) ([]Champion, error) {
	out := make([]Champion, 0, len(data))
	for mapKey, c := range data {
		id, err := strconv.Atoi(c.Key)
		if err != nil {
			return nil, &EntryError{Kind: "champion", ID: mapKey, Err: err}
		}
		key := c.ID
		if key == "" {
			key = mapKey
		}
		out = append(out, Champion{ID: id, Key: key, Name: c.Name})
	}
	return out, nil
}

func decodeItems(data map[string]ddItem) ([]Item, error) {
	out := make([]Item, 0, len(data))
	for idStr, it := range data {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, &EntryError{Kind: "item", ID: idStr, Err: err}
		}
		into := make([]int, 0, len(it.Into))
		for _, s := range it.Into {
			target, err := strconv.Atoi(s)
			if err != nil {
				return nil, &EntryError{Kind: "item", ID: idStr, Err: fmt.Errorf("into %q: %w", s, err)}
			}
			into = append(into, target)
		}
		out = append(out, Item{ID: id, Name: it.Name, Depth: it.Depth, Tags: it.Tags, Into: into})
	}
	return out, nil
}

func (l *Loader) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Data Dragon returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
