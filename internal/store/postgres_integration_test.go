package store

import (
	"context"
	"os"
	"testing"

	"github.com/joho/godotenv"
)

// Runs against a real Postgres when DATABASE_URL is set
func TestPGStore_Integration(t *testing.T) {
	godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := OpenPostgres(ctx, dbURL)
	if err != nil {
		t.Fatalf("OpenPostgres failed: %v", err)
	}
	defer s.Close()

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	batch := []RawMatch{
		sampleMatch("EUW1_1", "TestChamp",
			RawPurchase{ParticipantID: 1, ItemID: 1001, Timestamp: 50000},
			RawPurchase{ParticipantID: 1, ItemID: 3089, Timestamp: 900000},
		),
	}
	if err := s.RecordMatches(ctx, batch); err != nil {
		t.Fatalf("RecordMatches failed: %v", err)
	}

	// duplicate batch must fail without adding rows
	if err := s.RecordMatches(ctx, batch); err == nil {
		t.Error("Expected duplicate batch to fail")
	}
	games, err := s.CountGamesForChampion(ctx, "TestChamp")
	if err != nil {
		t.Fatalf("CountGamesForChampion failed: %v", err)
	}
	if games != 1 {
		t.Errorf("games: got %d, want 1", games)
	}

	missing, err := s.MatchIDsNotPresent(ctx, []string{"EUW1_1", "EUW1_2"})
	if err != nil {
		t.Fatalf("MatchIDsNotPresent failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != "EUW1_2" {
		t.Errorf("missing: got %v, want [EUW1_2]", missing)
	}

	core, err := s.PurchaseCounts(ctx, "TestChamp", CoreWindow)
	if err != nil {
		t.Fatalf("PurchaseCounts failed: %v", err)
	}
	if len(core) != 1 || core[0].ItemID != 3089 {
		t.Errorf("core: got %v, want [{3089 1}]", core)
	}
}

// Runs against a real Turso database when TURSO_DATABASE_URL is set
func TestTursoStore_Integration(t *testing.T) {
	godotenv.Load("../../.env")

	url := os.Getenv("TURSO_DATABASE_URL")
	if url == "" {
		t.Skip("TURSO_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := OpenTurso(ctx, url, os.Getenv("TURSO_AUTH_TOKEN"))
	if err != nil {
		t.Fatalf("OpenTurso failed: %v", err)
	}
	defer s.Close()

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if err := s.RecordMatches(ctx, []RawMatch{sampleMatch("EUW1_1", "TestChamp")}); err != nil {
		t.Fatalf("RecordMatches failed: %v", err)
	}
	games, err := s.CountGamesForChampion(ctx, "TestChamp")
	if err != nil {
		t.Fatalf("CountGamesForChampion failed: %v", err)
	}
	if games != 1 {
		t.Errorf("games: got %d, want 1", games)
	}
}
