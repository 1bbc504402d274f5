// Package store persists ingested matches, participant roles and purchase
// events, and answers the membership and aggregate queries the analysis
// stage needs.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// StartingWindowEndMs splits early purchases from build purchases.
// A purchase exactly at the boundary belongs to neither window.
const StartingWindowEndMs = 110 * 1000

// Window selects which purchases PurchaseCounts looks at
type Window int

const (
	// StartingWindow is every purchase strictly before StartingWindowEndMs
	StartingWindow Window = iota
	// CoreWindow is every purchase strictly after StartingWindowEndMs
	CoreWindow
)

func (w Window) String() string {
	switch w {
	case StartingWindow:
		return "starting"
	case CoreWindow:
		return "core"
	default:
		return fmt.Sprintf("window(%d)", int(w))
	}
}

// Match is one stored game
type Match struct {
	ID        string
	Region    string
	CreatedAt time.Time
	Duration  time.Duration
}

// ParticipantRole maps a participant slot of a match to the champion played
type ParticipantRole struct {
	MatchID       string
	ParticipantID int // 1..10, unique within a match
	ChampionKey   string
	Role          string
	Lane          string
}

// PurchaseEvent is one ITEM_PURCHASED timeline event
type PurchaseEvent struct {
	MatchID       string
	ParticipantID int
	ItemID        int
	Timestamp     int64 // milliseconds since game start
}

// RawMatch is one ingested game with its sub-records, as produced by the
// ingestion pipeline and kept in the raw match cache
type RawMatch struct {
	MatchID      string           `json:"matchId"`
	Region       string           `json:"region"`
	GameCreation int64            `json:"gameCreation"` // unix milliseconds
	GameDuration int              `json:"gameDuration"` // seconds
	Participants []RawParticipant `json:"participants"`
	Purchases    []RawPurchase    `json:"purchases,omitempty"`
}

// RawParticipant is a participant sub-record of a RawMatch
type RawParticipant struct {
	ParticipantID int    `json:"participantId"`
	ChampionID    int    `json:"championId"`
	ChampionKey   string `json:"championKey"`
	Role          string `json:"role"`
	Lane          string `json:"lane"`
}

// RawPurchase is a purchase sub-record of a RawMatch
type RawPurchase struct {
	ParticipantID int   `json:"participantId"`
	ItemID        int   `json:"itemId"`
	Timestamp     int64 `json:"timestamp"`
}

// ItemCount is one grouped row of PurchaseCounts
type ItemCount struct {
	ItemID int
	Count  int
}

// Reader is the query side the aggregator depends on
type Reader interface {
	CountGamesForChampion(ctx context.Context, championKey string) (int, error)
	PurchaseCounts(ctx context.Context, championKey string, window Window) ([]ItemCount, error)
}

// EventStore is implemented by every backend
type EventStore interface {
	Reader

	// Init creates the schema if it does not exist yet
	Init(ctx context.Context) error
	// Reset drops every table and recreates the schema
	Reset(ctx context.Context) error
	// RecordMatches stores a batch atomically: all rows or none
	RecordMatches(ctx context.Context, matches []RawMatch) error
	// MatchIDsNotPresent returns the candidates that are not stored yet
	MatchIDsNotPresent(ctx context.Context, candidateIDs []string) ([]string, error)
	// ChampionKeys lists every champion key with at least one stored game
	ChampionKeys(ctx context.Context) ([]string, error)
	// MatchCount returns the number of stored matches
	MatchCount(ctx context.Context) (int, error)
	Close() error
}

// ErrInvalidParticipant is returned for participant slots outside 1..10
var ErrInvalidParticipant = errors.New("participant slot out of range")

// BatchError reports a failed RecordMatches call. Nothing of the batch was
// committed, so the caller may retry the same batch.
type BatchError struct {
	Size         int
	FirstMatchID string
	Err          error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("record batch of %d matches (first %q): %v", e.Size, e.FirstMatchID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// rows is the flattened form of a batch
type rows struct {
	matches      []Match
	participants []ParticipantRole
	purchases    []PurchaseEvent
}

// flatten drops records without a match id and turns the rest into table rows
func flatten(raw []RawMatch) (rows, error) {
	var out rows
	for _, m := range raw {
		if m.MatchID == "" {
			continue
		}
		out.matches = append(out.matches, Match{
			ID:        m.MatchID,
			Region:    m.Region,
			CreatedAt: time.UnixMilli(m.GameCreation).UTC(),
			Duration:  time.Duration(m.GameDuration) * time.Second,
		})
		for _, p := range m.Participants {
			if p.ParticipantID < 1 || p.ParticipantID > 10 {
				return rows{}, fmt.Errorf("match %s participant %d: %w", m.MatchID, p.ParticipantID, ErrInvalidParticipant)
			}
			out.participants = append(out.participants, ParticipantRole{
				MatchID:       m.MatchID,
				ParticipantID: p.ParticipantID,
				ChampionKey:   p.ChampionKey,
				Role:          p.Role,
				Lane:          p.Lane,
			})
		}
		for _, item := range m.Purchases {
			out.purchases = append(out.purchases, PurchaseEvent{
				MatchID:       m.MatchID,
				ParticipantID: item.ParticipantID,
				ItemID:        item.ItemID,
				Timestamp:     item.Timestamp,
			})
		}
	}
	return out, nil
}

// batchError wraps err for the given batch, or returns nil
func batchError(raw []RawMatch, err error) error {
	if err == nil {
		return nil
	}
	first := ""
	if len(raw) > 0 {
		first = raw[0].MatchID
	}
	return &BatchError{Size: len(raw), FirstMatchID: first, Err: err}
}

// uniqueIDs deduplicates ids keeping the first occurrence, dropping empties
func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
