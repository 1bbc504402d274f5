package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the PostgreSQL backend
type PGStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a connection pool and checks connectivity
func OpenPostgres(ctx context.Context, dbURL string) (*PGStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PGStore{pool: pool}, nil
}

// Close closes the pool
func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		region TEXT NOT NULL,
		created_on TIMESTAMPTZ NOT NULL,
		duration_seconds INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participant_roles (
		id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL REFERENCES matches(match_id),
		participant_id SMALLINT NOT NULL,
		champion_key TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		lane TEXT NOT NULL DEFAULT '',
		UNIQUE (match_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_events (
		id BIGSERIAL PRIMARY KEY,
		match_id TEXT NOT NULL REFERENCES matches(match_id),
		participant_id SMALLINT NOT NULL,
		item_id INTEGER NOT NULL,
		timestamp_ms BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_participant_roles_champion ON participant_roles(champion_key)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_events_participant ON purchase_events(match_id, participant_id)`,
}

// Init creates the tables if they don't exist
func (s *PGStore) Init(ctx context.Context) error {
	for _, query := range pgSchema {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// Reset drops all tables and recreates them
func (s *PGStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DROP TABLE IF EXISTS purchase_events, participant_roles, matches`); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return s.Init(ctx)
}

// RecordMatches inserts the batch in one transaction, bulk-copying the
// participant and purchase rows
func (s *PGStore) RecordMatches(ctx context.Context, matches []RawMatch) error {
	flat, err := flatten(matches)
	if err != nil {
		return batchError(matches, err)
	}
	if len(flat.matches) == 0 {
		return nil
	}
	return batchError(matches, pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return copyRows(ctx, tx, flat)
	}))
}

func copyRows(ctx context.Context, tx pgx.Tx, flat rows) error {
	matchRows := make([][]any, len(flat.matches))
	for i, m := range flat.matches {
		matchRows[i] = []any{m.ID, m.Region, m.CreatedAt, int32(m.Duration / time.Second)}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"matches"},
		[]string{"match_id", "region", "created_on", "duration_seconds"},
		pgx.CopyFromRows(matchRows)); err != nil {
		return fmt.Errorf("copy matches: %w", err)
	}

	roleRows := make([][]any, len(flat.participants))
	for i, p := range flat.participants {
		roleRows[i] = []any{p.MatchID, int16(p.ParticipantID), p.ChampionKey, p.Role, p.Lane}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"participant_roles"},
		[]string{"match_id", "participant_id", "champion_key", "role", "lane"},
		pgx.CopyFromRows(roleRows)); err != nil {
		return fmt.Errorf("copy participant roles: %w", err)
	}

	purchaseRows := make([][]any, len(flat.purchases))
	for i, e := range flat.purchases {
		purchaseRows[i] = []any{e.MatchID, int16(e.ParticipantID), int32(e.ItemID), e.Timestamp}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"purchase_events"},
		[]string{"match_id", "participant_id", "item_id", "timestamp_ms"},
		pgx.CopyFromRows(purchaseRows)); err != nil {
		return fmt.Errorf("copy purchase events: %w", err)
	}
	return nil
}

// MatchIDsNotPresent returns candidates not stored yet, in input order
func (s *PGStore) MatchIDsNotPresent(ctx context.Context, candidateIDs []string) ([]string, error) {
	ids := uniqueIDs(candidateIDs)
	if len(ids) == 0 {
		return ids, nil
	}

	rows, err := s.pool.Query(ctx, `SELECT match_id FROM matches WHERE match_id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	present, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}

	stored := make(map[string]bool, len(present))
	for _, id := range present {
		stored[id] = true
	}
	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if !stored[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountGamesForChampion counts participant rows for the champion
func (s *PGStore) CountGamesForChampion(ctx context.Context, championKey string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM participant_roles WHERE champion_key = $1`, championKey).Scan(&count)
	return count, err
}

// PurchaseCounts groups the champion's purchases in the window by item
func (s *PGStore) PurchaseCounts(ctx context.Context, championKey string, window Window) ([]ItemCount, error) {
	cond, err := windowCondition(window, "$2")
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT b.item_id, COUNT(*) AS cnt
		FROM participant_roles c
		JOIN purchase_events b
			ON b.match_id = c.match_id AND b.participant_id = c.participant_id
		WHERE c.champion_key = $1 AND `+cond+`
		GROUP BY b.item_id
		ORDER BY cnt, b.item_id
	`, championKey, StartingWindowEndMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ItemCount
	for rows.Next() {
		var itemID int32
		var count int64
		if err := rows.Scan(&itemID, &count); err != nil {
			return nil, err
		}
		counts = append(counts, ItemCount{ItemID: int(itemID), Count: int(count)})
	}
	return counts, rows.Err()
}

// ChampionKeys lists distinct stored champion keys
func (s *PGStore) ChampionKeys(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT champion_key FROM participant_roles ORDER BY champion_key`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// MatchCount returns the total number of matches
func (s *PGStore) MatchCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM matches`).Scan(&count)
	return count, err
}
