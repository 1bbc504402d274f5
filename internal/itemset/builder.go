// Package itemset turns a champion's purchase statistics into the item set
// document the game client reads.
package itemset

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"

	"itemset-builder/internal/analysis"
)

// Block names, in output order
const (
	BlockStarting   = "Starting items"
	BlockOffensive  = "Offensive items"
	BlockDefensive  = "Defensive items"
	BlockOther      = "Other items"
	BlockConsumable = "Consumables"
)

const (
	startingThreshold = 50.0
	blockThreshold    = 3.0
)

// Document is the serialized item set
type Document struct {
	Title  string  `json:"title"`
	Type   string  `json:"type"`
	Map    string  `json:"map"`
	Mode   string  `json:"mode"`
	Blocks []Block `json:"blocks"`
}

// Block is one named group of items
type Block struct {
	Type  string      `json:"type"`
	Items []BlockItem `json:"items"`
}

// BlockItem is one recommended item and how many to buy
type BlockItem struct {
	ID    string `json:"id"`
	Count int    `json:"count"`
}

// Source provides the five statistic lists of one champion.
// *analysis.Analyzer implements it.
type Source interface {
	Champion() string
	Games() int
	StartingItems(ctx context.Context) ([]analysis.Stat, error)
	OffensiveItems(ctx context.Context) ([]analysis.Stat, error)
	DefensiveItems(ctx context.Context) ([]analysis.Stat, error)
	OtherItems(ctx context.Context) ([]analysis.Stat, error)
	Consumables(ctx context.Context) ([]analysis.Stat, error)
}

// Rounded converts an average count to a purchase count. Anything under 1.1
// is 1, anything under 2 is 2, and larger values round down.
func Rounded(x float64) int {
	switch {
	case x < 1.1:
		return 1
	case x < 2:
		return 2
	default:
		return int(math.Floor(x))
	}
}

// Builder assembles the document of one champion
type Builder struct {
	source Source
}

// NewBuilder creates a builder over source
func NewBuilder(source Source) *Builder {
	return &Builder{source: source}
}

// Generate builds the document
func (b *Builder) Generate(ctx context.Context) (*Document, error) {
	starting, err := b.source.StartingItems(ctx)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Title: fmt.Sprintf("CB for %s (%d games)", b.source.Champion(), b.source.Games()),
		Type:  "custom",
		Map:   "SR",
		Mode:  "CLASSIC",
		Blocks: []Block{
			{Type: BlockStarting, Items: startingBlock(starting)},
		},
	}

	ranked := []struct {
		name string
		view func(context.Context) ([]analysis.Stat, error)
	}{
		{BlockOffensive, b.source.OffensiveItems},
		{BlockDefensive, b.source.DefensiveItems},
		{BlockOther, b.source.OtherItems},
		{BlockConsumable, b.source.Consumables},
	}
	for _, r := range ranked {
		stats, err := r.view(ctx)
		if err != nil {
			return nil, err
		}
		doc.Blocks = append(doc.Blocks, Block{Type: r.name, Items: rankedBlock(stats)})
	}
	return doc, nil
}

// startingBlock keeps the source order
func startingBlock(stats []analysis.Stat) []BlockItem {
	items := []BlockItem{}
	for _, s := range stats {
		if s.Percentage > startingThreshold {
			items = append(items, blockItem(s))
		}
	}
	return items
}

// rankedBlock orders by percentage, highest first
func rankedBlock(stats []analysis.Stat) []BlockItem {
	sorted := make([]analysis.Stat, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Percentage > sorted[j].Percentage
	})

	items := []BlockItem{}
	for _, s := range sorted {
		if s.Percentage > blockThreshold {
			items = append(items, blockItem(s))
		}
	}
	return items
}

func blockItem(s analysis.Stat) BlockItem {
	return BlockItem{ID: strconv.Itoa(s.ItemID), Count: Rounded(s.AvgCount)}
}
