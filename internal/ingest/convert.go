package ingest

import (
	"itemset-builder/internal/riot"
	"itemset-builder/internal/store"
)

// ChampionResolver maps numeric champion ids to string keys
type ChampionResolver interface {
	ChampionKey(id int) (string, bool)
}

// ToRawMatch flattens a match and its timeline into the stored form.
// Champion keys come from the resolver, falling back to the name the match
// reports when the catalog does not know the id.
func ToRawMatch(match *riot.MatchResponse, timeline *riot.TimelineResponse, champions ChampionResolver) store.RawMatch {
	raw := store.RawMatch{
		MatchID:      match.Metadata.MatchID,
		Region:       match.Info.PlatformID,
		GameCreation: match.Info.GameCreation,
		GameDuration: match.Info.GameDuration,
		Participants: make([]store.RawParticipant, 0, len(match.Info.Participants)),
	}

	for _, p := range match.Info.Participants {
		key, ok := "", false
		if champions != nil {
			key, ok = champions.ChampionKey(p.ChampionID)
		}
		if !ok {
			key = p.ChampionName
		}
		raw.Participants = append(raw.Participants, store.RawParticipant{
			ParticipantID: p.ParticipantID,
			ChampionID:    p.ChampionID,
			ChampionKey:   key,
			Role:          p.Role,
			Lane:          p.Lane,
		})
	}

	if timeline != nil {
		for _, e := range riot.ItemPurchases(timeline) {
			// participant 0 is the game itself
			if e.ParticipantID == 0 || e.ItemID == 0 {
				continue
			}
			raw.Purchases = append(raw.Purchases, store.RawPurchase{
				ParticipantID: e.ParticipantID,
				ItemID:        e.ItemID,
				Timestamp:     e.Timestamp,
			})
		}
	}
	return raw
}
