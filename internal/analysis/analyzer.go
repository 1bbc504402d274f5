// Package analysis rolls up one champion's purchase events into per-item
// statistics split by purchase time and item category.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"itemset-builder/internal/catalog"
	"itemset-builder/internal/store"
)

// Catalog is the subset of the catalog index the analyzer reads
type Catalog interface {
	IsFinalItem(id int) bool
	ItemsWithAnyTag(tags []string) map[int]struct{}
}

// Stat is the aggregate of one item for one champion.
// Percentage is AvgCount*100, so it exceeds 100 when the item is bought
// more than once per game on average.
type Stat struct {
	ItemID     int     `json:"itemId"`
	Count      int     `json:"count"`
	AvgCount   float64 `json:"avgCount"`
	Percentage float64 `json:"percentage"`
}

var (
	ErrEmptyChampion = errors.New("empty champion key")
	ErrMalformedRow  = errors.New("malformed purchase row")
)

// ChampionError identifies the champion (and item, when known) a failure
// belongs to
type ChampionError struct {
	Champion string
	ItemID   int
	Err      error
}

func (e *ChampionError) Error() string {
	if e.ItemID != 0 {
		return fmt.Sprintf("analyze %s item %d: %v", e.Champion, e.ItemID, e.Err)
	}
	return fmt.Sprintf("analyze %s: %v", e.Champion, e.Err)
}

func (e *ChampionError) Unwrap() error { return e.Err }

// list is a lazily computed result
type list struct {
	done  bool
	stats []Stat
}

// Analyzer computes the statistics of one champion. Each list is computed
// on first use and kept for the lifetime of the Analyzer. An Analyzer is
// not safe for concurrent use; run one per champion instead.
type Analyzer struct {
	reader   store.Reader
	catalog  Catalog
	champion string
	games    int

	startingItems list
	coreItems     list
	offensive     list
	defensive     list
	consumable    list
	other         list
}

// New creates an analyzer for championKey and reads its game count
func New(ctx context.Context, reader store.Reader, cat Catalog, championKey string) (*Analyzer, error) {
	if championKey == "" {
		return nil, &ChampionError{Err: ErrEmptyChampion}
	}

	games, err := reader.CountGamesForChampion(ctx, championKey)
	if err != nil {
		return nil, &ChampionError{Champion: championKey, Err: fmt.Errorf("count games: %w", err)}
	}

	return &Analyzer{
		reader:   reader,
		catalog:  cat,
		champion: championKey,
		games:    games,
	}, nil
}

// Champion returns the champion key
func (a *Analyzer) Champion() string { return a.champion }

// Games returns the number of games played by the champion
func (a *Analyzer) Games() int { return a.games }

// StartingItems returns purchases made before the starting window closes,
// without any finality filter
func (a *Analyzer) StartingItems(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.startingItems, func() ([]Stat, error) {
		return a.query(ctx, store.StartingWindow, nil)
	})
}

// CoreItems returns final items purchased after the starting window
func (a *Analyzer) CoreItems(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.coreItems, func() ([]Stat, error) {
		return a.query(ctx, store.CoreWindow, a.catalog.IsFinalItem)
	})
}

// OffensiveItems returns core items with an offensive tag
func (a *Analyzer) OffensiveItems(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.offensive, func() ([]Stat, error) {
		return a.tagged(ctx, catalog.Offensive)
	})
}

// DefensiveItems returns core items with a defensive tag
func (a *Analyzer) DefensiveItems(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.defensive, func() ([]Stat, error) {
		return a.tagged(ctx, catalog.Defensive)
	})
}

// Consumables returns core items with the consumable tag
func (a *Analyzer) Consumables(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.consumable, func() ([]Stat, error) {
		return a.tagged(ctx, catalog.Consumable)
	})
}

// OtherItems returns core items that are in none of the three tagged lists
func (a *Analyzer) OtherItems(ctx context.Context) ([]Stat, error) {
	return a.memo(&a.other, func() ([]Stat, error) {
		core, err := a.CoreItems(ctx)
		if err != nil {
			return nil, err
		}

		classified := make(map[int]bool)
		for _, view := range []func(context.Context) ([]Stat, error){a.OffensiveItems, a.DefensiveItems, a.Consumables} {
			stats, err := view(ctx)
			if err != nil {
				return nil, err
			}
			for _, s := range stats {
				classified[s.ItemID] = true
			}
		}

		var out []Stat
		for _, s := range core {
			if !classified[s.ItemID] {
				out = append(out, s)
			}
		}
		return out, nil
	})
}

func (a *Analyzer) memo(l *list, compute func() ([]Stat, error)) ([]Stat, error) {
	if l.done {
		return l.stats, nil
	}
	stats, err := compute()
	if err != nil {
		return nil, err
	}
	l.stats = stats
	l.done = true
	return stats, nil
}

// tagged filters the cached core items by the category's tag set
func (a *Analyzer) tagged(ctx context.Context, c catalog.Category) ([]Stat, error) {
	core, err := a.CoreItems(ctx)
	if err != nil {
		return nil, err
	}
	ids := a.catalog.ItemsWithAnyTag(catalog.TagsFor(c))

	var out []Stat
	for _, s := range core {
		if _, ok := ids[s.ItemID]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

// query reads grouped counts for the window and keeps rows accepted by keep
func (a *Analyzer) query(ctx context.Context, window store.Window, keep func(int) bool) ([]Stat, error) {
	if a.games == 0 {
		return nil, nil
	}

	counts, err := a.reader.PurchaseCounts(ctx, a.champion, window)
	if err != nil {
		return nil, &ChampionError{Champion: a.champion, Err: fmt.Errorf("%s purchases: %w", window, err)}
	}

	stats := make([]Stat, 0, len(counts))
	for _, c := range counts {
		if c.ItemID <= 0 || c.Count <= 0 {
			return nil, &ChampionError{
				Champion: a.champion,
				ItemID:   c.ItemID,
				Err:      fmt.Errorf("%w: count %d", ErrMalformedRow, c.Count),
			}
		}
		if keep != nil && !keep(c.ItemID) {
			continue
		}
		avg := float64(c.Count) / float64(a.games)
		stats = append(stats, Stat{
			ItemID:     c.ItemID,
			Count:      c.Count,
			AvgCount:   avg,
			Percentage: avg * 100,
		})
	}
	return stats, nil
}
