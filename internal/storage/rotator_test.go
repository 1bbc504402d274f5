package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"itemset-builder/internal/store"
)

func match(i int) store.RawMatch {
	return store.RawMatch{
		MatchID:      fmt.Sprintf("EUW1_%d", i),
		Region:       "EUW1",
		GameCreation: 1700000000000 + int64(i),
		Participants: []store.RawParticipant{{ParticipantID: 1, ChampionKey: "Azir"}},
		Purchases:    []store.RawPurchase{{ParticipantID: 1, ItemID: 1056, Timestamp: 1000}},
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	return len(entries)
}

func TestMatchCache_RotatesAndReplays(t *testing.T) {
	base := t.TempDir()
	c, err := Open(base, WithMaxMatchesPerFile(2))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := c.Append(match(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if n, _ := c.Stats(); n != 1 {
		t.Errorf("matches in current file: got %d, want 1", n)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if got := countFiles(t, filepath.Join(base, "warm")); got != 3 {
		t.Errorf("warm files: got %d, want 3", got)
	}
	if got := countFiles(t, filepath.Join(base, "hot")); got != 0 {
		t.Errorf("hot files: got %d, want 0", got)
	}

	all, err := c.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("ReadAll: got %d matches, want 5", len(all))
	}
	for i, m := range all {
		if m.MatchID != fmt.Sprintf("EUW1_%d", i) {
			t.Errorf("match %d: got %s", i, m.MatchID)
		}
	}
	if all[0].Purchases[0].ItemID != 1056 || all[0].Participants[0].ChampionKey != "Azir" {
		t.Errorf("sub-records lost: %+v", all[0])
	}
}

func TestMatchCache_ArchiveKeepsMatchesReadable(t *testing.T) {
	base := t.TempDir()
	c, err := Open(base, WithMaxMatchesPerFile(3))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		c.Append(match(i))
	}
	c.Close()

	archived, err := c.Archive()
	if err != nil {
		t.Fatalf("Archive failed: %v", err)
	}
	if archived != 2 {
		t.Errorf("archived: got %d, want 2", archived)
	}
	if got := countFiles(t, filepath.Join(base, "warm")); got != 0 {
		t.Errorf("warm files after archive: got %d, want 0", got)
	}

	// a later run adds a warm file next to the archives
	c2, _ := Open(base)
	c2.Append(match(4))
	c2.Close()

	var batches []int
	total, err := c2.Replay(2, func(batch []store.RawMatch) error {
		batches = append(batches, len(batch))
		return nil
	})
	if err != nil {
		t.Fatalf("Replay failed: %v", err)
	}
	if total != 5 {
		t.Errorf("replayed: got %d, want 5", total)
	}
	if fmt.Sprint(batches) != "[2 2 1]" {
		t.Errorf("batch sizes: got %v, want [2 2 1]", batches)
	}
}

func TestMatchCache_CloseWithoutWrites(t *testing.T) {
	base := t.TempDir()
	c, err := Open(base)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	all, err := c.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("ReadAll: got %d matches, want 0", len(all))
	}
}

func TestMatchCache_RecoversHotFiles(t *testing.T) {
	base := t.TempDir()
	hot := filepath.Join(base, "hot")
	os.MkdirAll(hot, 0755)
	line := `{"matchId":"EUW1_9","region":"EUW1","gameCreation":0,"gameDuration":0,"participants":[]}` + "\n"
	if err := os.WriteFile(filepath.Join(hot, "raw_matches_crashed.jsonl"), []byte(line), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := Open(base)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	all, err := c.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(all) != 1 || all[0].MatchID != "EUW1_9" {
		t.Errorf("recovered: got %+v", all)
	}
}

func TestMatchCache_CorruptLine(t *testing.T) {
	base := t.TempDir()
	c, _ := Open(base)
	warm := filepath.Join(base, "warm", "raw_matches_bad.jsonl")
	os.WriteFile(warm, []byte("{not json\n"), 0644)

	if _, err := c.ReadAll(); err == nil {
		t.Error("Expected error for corrupt line")
	}
}
