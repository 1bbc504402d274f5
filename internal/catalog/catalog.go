// Package catalog holds the static champion and item metadata of one game
// patch and answers the finality and category questions the aggregator asks.
package catalog

import (
	"fmt"
	"sort"
)

// Tags used by the item taxonomy
const (
	TagCriticalStrike = "CriticalStrike"
	TagSpellDamage    = "SpellDamage"
	TagDamage         = "Damage"
	TagAttackSpeed    = "AttackSpeed"
	TagLifeSteal      = "LifeSteal"
	TagArmor          = "Armor"
	TagHealth         = "Health"
	TagHealthRegen    = "HealthRegen"
	TagSpellBlock     = "SpellBlock"
	TagConsumable     = "Consumable"
)

// Category is one label of the item taxonomy
type Category string

const (
	Offensive  Category = "offensive"
	Defensive  Category = "defensive"
	Consumable Category = "consumable"
)

// Taxonomy lists the categories in precedence order with their tags
var Taxonomy = []struct {
	Category Category
	Tags     []string
}{
	{Offensive, []string{TagCriticalStrike, TagSpellDamage, TagDamage, TagAttackSpeed, TagLifeSteal}},
	{Defensive, []string{TagArmor, TagHealth, TagHealthRegen, TagSpellBlock}},
	{Consumable, []string{TagConsumable}},
}

// TagsFor returns the tags of a category, nil for unknown categories
func TagsFor(c Category) []string {
	for _, entry := range Taxonomy {
		if entry.Category == c {
			return entry.Tags
		}
	}
	return nil
}

// Categories is the set of labels an item carries. Empty means "other".
type Categories []Category

// Has reports whether c is one of the labels
func (cs Categories) Has(c Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// IsOther reports whether the item carries no taxonomy label
func (cs Categories) IsOther() bool { return len(cs) == 0 }

// Champion is one champion entry
type Champion struct {
	ID   int    `json:"id"`
	Key  string `json:"key"` // string identifier, e.g. "MonkeyKing"
	Name string `json:"name"`
}

// Item is one item entry
type Item struct {
	ID    int      `json:"id"`
	Name  string   `json:"name"`
	Depth int      `json:"depth,omitempty"`
	Tags  []string `json:"tags,omitempty"`
	Into  []int    `json:"into,omitempty"`
}

// Index is a read-only snapshot of the catalog. Build it once; it is safe
// for concurrent reads afterwards.
type Index struct {
	version   string
	champions map[int]Champion
	items     map[int]Item
}

// EntryError reports a malformed catalog entry
type EntryError struct {
	Kind string // "champion" or "item"
	ID   string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("malformed %s entry %q: %v", e.Kind, e.ID, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// New builds an Index from decoded entries. Duplicate ids keep the last entry.
func New(version string, champions []Champion, items []Item) *Index {
	idx := &Index{
		version:   version,
		champions: make(map[int]Champion, len(champions)),
		items:     make(map[int]Item, len(items)),
	}
	for _, c := range champions {
		idx.champions[c.ID] = c
	}
	for _, it := range items {
		idx.items[it.ID] = it
	}
	return idx
}

// Version returns the patch the catalog was loaded from
func (idx *Index) Version() string { return idx.version }

// IsFinalItem is true when the item builds into nothing. Unknown ids count
// as final.
func (idx *Index) IsFinalItem(id int) bool {
	it, ok := idx.items[id]
	return !ok || len(it.Into) == 0
}

// ItemsWithAnyTag returns every item id carrying at least one of the tags
func (idx *Index) ItemsWithAnyTag(tags []string) map[int]struct{} {
	want := make(map[string]bool, len(tags))
	for _, t := range tags {
		want[t] = true
	}

	out := make(map[int]struct{})
	for id, it := range idx.items {
		for _, t := range it.Tags {
			if want[t] {
				out[id] = struct{}{}
				break
			}
		}
	}
	return out
}

// Classify returns the taxonomy labels of the item in precedence order.
// Unknown ids have no tags and classify as other.
func (idx *Index) Classify(id int) Categories {
	it, ok := idx.items[id]
	if !ok {
		return nil
	}

	has := make(map[string]bool, len(it.Tags))
	for _, t := range it.Tags {
		has[t] = true
	}

	var out Categories
	for _, entry := range Taxonomy {
		for _, t := range entry.Tags {
			if has[t] {
				out = append(out, entry.Category)
				break
			}
		}
	}
	return out
}

// ChampionKey resolves a numeric champion id to its string key
func (idx *Index) ChampionKey(id int) (string, bool) {
	c, ok := idx.champions[id]
	if !ok {
		return "", false
	}
	return c.Key, true
}

// ChampionKeys returns every champion key, sorted
func (idx *Index) ChampionKeys() []string {
	keys := make([]string, 0, len(idx.champions))
	for _, c := range idx.champions {
		keys = append(keys, c.Key)
	}
	sort.Strings(keys)
	return keys
}

// ItemName returns the display name, or a placeholder for unknown ids
func (idx *Index) ItemName(id int) string {
	if it, ok := idx.items[id]; ok && it.Name != "" {
		return it.Name
	}
	return fmt.Sprintf("Item %d", id)
}

// ItemDepth returns the build depth. Base items have no depth and report 1.
func (idx *Index) ItemDepth(id int) int {
	if it, ok := idx.items[id]; ok && it.Depth > 0 {
		return it.Depth
	}
	return 1
}

// Champions returns every champion entry sorted by key
func (idx *Index) Champions() []Champion {
	out := make([]Champion, 0, len(idx.champions))
	for _, c := range idx.champions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Items returns every item entry sorted by id
func (idx *Index) Items() []Item {
	out := make([]Item, 0, len(idx.items))
	for _, it := range idx.items {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
