package analysis

import (
	"context"
	"reflect"
	"testing"

	"itemset-builder/internal/store"
)

func seedStore(t *testing.T, matches []store.RawMatch) *store.SQLStore {
	t.Helper()
	ctx := context.Background()
	s, err := store.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.RecordMatches(ctx, matches); err != nil {
		t.Fatalf("RecordMatches failed: %v", err)
	}
	return s
}

func soloMatch(id, champ string, purchases ...store.RawPurchase) store.RawMatch {
	return store.RawMatch{
		MatchID:      id,
		Region:       "EUW1",
		Participants: []store.RawParticipant{{ParticipantID: 1, ChampionKey: champ}},
		Purchases:    purchases,
	}
}

func TestPartitionAgainstStore(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, []store.RawMatch{
		soloMatch("EUW1_1", "TestChamp",
			store.RawPurchase{ParticipantID: 1, ItemID: 3089, Timestamp: 50000},
			store.RawPurchase{ParticipantID: 1, ItemID: 3047, Timestamp: 110000},
			store.RawPurchase{ParticipantID: 1, ItemID: 2003, Timestamp: 110001},
		),
	})

	a, err := New(ctx, s, testCatalog(), "TestChamp")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Games() != 1 {
		t.Fatalf("Games: got %d, want 1", a.Games())
	}

	starting, _ := a.StartingItems(ctx)
	if got := ids(starting); !reflect.DeepEqual(got, []int{3089}) {
		t.Errorf("StartingItems: got %v, want [3089]", got)
	}
	core, _ := a.CoreItems(ctx)
	if got := ids(core); !reflect.DeepEqual(got, []int{2003}) {
		t.Errorf("CoreItems: got %v, want [2003]", got)
	}
}

func TestIdempotentAcrossAnalyzers(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t, []store.RawMatch{
		soloMatch("EUW1_1", "Azir",
			store.RawPurchase{ParticipantID: 1, ItemID: 3089, Timestamp: 900000},
			store.RawPurchase{ParticipantID: 1, ItemID: 2003, Timestamp: 200000},
			store.RawPurchase{ParticipantID: 1, ItemID: 1056, Timestamp: 1000},
		),
		soloMatch("EUW1_2", "Azir",
			store.RawPurchase{ParticipantID: 1, ItemID: 3047, Timestamp: 700000},
			store.RawPurchase{ParticipantID: 1, ItemID: 2003, Timestamp: 200000},
		),
	})

	run := func() [][]Stat {
		a, err := New(ctx, s, testCatalog(), "Azir")
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		var out [][]Stat
		for _, view := range []func(context.Context) ([]Stat, error){
			a.StartingItems, a.CoreItems, a.OffensiveItems, a.DefensiveItems, a.Consumables, a.OtherItems,
		} {
			stats, err := view(ctx)
			if err != nil {
				t.Fatalf("view failed: %v", err)
			}
			out = append(out, stats)
		}
		return out
	}

	if first, second := run(), run(); !reflect.DeepEqual(first, second) {
		t.Errorf("results differ between runs:\n%v\n%v", first, second)
	}
}
