package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// lookupChunkSize bounds the number of placeholders in one IN (...) query
const lookupChunkSize = 500

// SQLStore is the database/sql backend shared by SQLite and Turso (libSQL),
// which speak the same dialect
type SQLStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a SQLite database file. ":memory:" gives a
// private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// every pooled connection to :memory: would be a different database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	return newSQLStore(ctx, db)
}

// OpenTurso connects to a remote libSQL database
func OpenTurso(ctx context.Context, url, authToken string) (*SQLStore, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}
	return newSQLStore(ctx, db)
}

func newSQLStore(ctx context.Context, db *sql.DB) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Close closes the database handle
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var sqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS matches (
		match_id TEXT PRIMARY KEY,
		region TEXT NOT NULL,
		created_on INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS participant_roles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL REFERENCES matches(match_id),
		participant_id INTEGER NOT NULL,
		champion_key TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT '',
		lane TEXT NOT NULL DEFAULT '',
		UNIQUE (match_id, participant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		match_id TEXT NOT NULL REFERENCES matches(match_id),
		participant_id INTEGER NOT NULL,
		item_id INTEGER NOT NULL,
		timestamp_ms INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_participant_roles_champion ON participant_roles(champion_key)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_events_participant ON purchase_events(match_id, participant_id)`,
}

// Init creates the tables if they don't exist
func (s *SQLStore) Init(ctx context.Context) error {
	for _, query := range sqlSchema {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}
	return nil
}

// Reset drops all tables and recreates them
func (s *SQLStore) Reset(ctx context.Context) error {
	for _, table := range []string{"purchase_events", "participant_roles", "matches"} {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return s.Init(ctx)
}

// RecordMatches inserts the batch inside one transaction
func (s *SQLStore) RecordMatches(ctx context.Context, matches []RawMatch) error {
	flat, err := flatten(matches)
	if err != nil {
		return batchError(matches, err)
	}
	if len(flat.matches) == 0 {
		return nil
	}
	return batchError(matches, s.insertRows(ctx, flat))
}

func (s *SQLStore) insertRows(ctx context.Context, flat rows) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := execEach(ctx, tx,
		`INSERT INTO matches (match_id, region, created_on, duration_seconds) VALUES (?, ?, ?, ?)`,
		len(flat.matches), func(i int) []any {
			m := flat.matches[i]
			return []any{m.ID, m.Region, m.CreatedAt.UnixMilli(), int64(m.Duration / time.Second)}
		}); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert matches: %w", err)
	}

	if err := execEach(ctx, tx,
		`INSERT INTO participant_roles (match_id, participant_id, champion_key, role, lane) VALUES (?, ?, ?, ?, ?)`,
		len(flat.participants), func(i int) []any {
			p := flat.participants[i]
			return []any{p.MatchID, p.ParticipantID, p.ChampionKey, p.Role, p.Lane}
		}); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert participant roles: %w", err)
	}

	if err := execEach(ctx, tx,
		`INSERT INTO purchase_events (match_id, participant_id, item_id, timestamp_ms) VALUES (?, ?, ?, ?)`,
		len(flat.purchases), func(i int) []any {
			e := flat.purchases[i]
			return []any{e.MatchID, e.ParticipantID, e.ItemID, e.Timestamp}
		}); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert purchase events: %w", err)
	}

	return tx.Commit()
}

// execEach runs one prepared statement n times with the args produced by argsAt
func execEach(ctx context.Context, tx *sql.Tx, query string, n int, argsAt func(i int) []any) error {
	if n == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, argsAt(i)...); err != nil {
			return err
		}
	}
	return nil
}

// MatchIDsNotPresent returns candidates not stored yet, in input order
func (s *SQLStore) MatchIDsNotPresent(ctx context.Context, candidateIDs []string) ([]string, error) {
	ids := uniqueIDs(candidateIDs)
	present := make(map[string]bool)

	for start := 0; start < len(ids); start += lookupChunkSize {
		end := start + lookupChunkSize
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		query := "SELECT match_id FROM matches WHERE match_id IN (" +
			strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",") + ")"

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			present[id] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	missing := make([]string, 0, len(ids))
	for _, id := range ids {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CountGamesForChampion counts participant rows for the champion
func (s *SQLStore) CountGamesForChampion(ctx context.Context, championKey string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participant_roles WHERE champion_key = ?`, championKey).Scan(&count)
	return count, err
}

// PurchaseCounts groups the champion's purchases in the window by item
func (s *SQLStore) PurchaseCounts(ctx context.Context, championKey string, window Window) ([]ItemCount, error) {
	cond, err := windowCondition(window, "?")
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT b.item_id, COUNT(*) AS cnt
		FROM participant_roles c
		JOIN purchase_events b
			ON b.match_id = c.match_id AND b.participant_id = c.participant_id
		WHERE c.champion_key = ? AND `+cond+`
		GROUP BY b.item_id
		ORDER BY cnt, b.item_id
	`, championKey, StartingWindowEndMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []ItemCount
	for rows.Next() {
		var c ItemCount
		if err := rows.Scan(&c.ItemID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ChampionKeys lists distinct stored champion keys
func (s *SQLStore) ChampionKeys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT champion_key FROM participant_roles ORDER BY champion_key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// MatchCount returns the total number of matches
func (s *SQLStore) MatchCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches`).Scan(&count)
	return count, err
}

// windowCondition renders the timestamp filter for a window with the given placeholder
func windowCondition(window Window, placeholder string) (string, error) {
	switch window {
	case StartingWindow:
		return "b.timestamp_ms < " + placeholder, nil
	case CoreWindow:
		return "b.timestamp_ms > " + placeholder, nil
	default:
		return "", fmt.Errorf("unknown purchase window %d", int(window))
	}
}
