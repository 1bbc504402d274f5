package ingest

import (
	"context"
	"fmt"

	"itemset-builder/internal/logger"
	"itemset-builder/internal/store"
)

// Replayer streams cached matches in batches
type Replayer interface {
	Replay(batchSize int, fn func([]store.RawMatch) error) (int, error)
}

// Reload rebuilds the store from the raw match cache. Matches already
// stored are skipped, so reloading twice is harmless. Returns the number of
// matches recorded.
func Reload(ctx context.Context, cache Replayer, sink Sink, batchSize int, log *logger.Logger) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("reload")

	stored := 0
	read, err := cache.Replay(batchSize, func(batch []store.RawMatch) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids := make([]string, 0, len(batch))
		for _, m := range batch {
			ids = append(ids, m.MatchID)
		}
		missing, err := sink.MatchIDsNotPresent(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to check stored matches: %w", err)
		}

		want := make(map[string]bool, len(missing))
		for _, id := range missing {
			want[id] = true
		}
		fresh := make([]store.RawMatch, 0, len(missing))
		for _, m := range batch {
			// the same match can sit in two cache files
			if want[m.MatchID] {
				fresh = append(fresh, m)
				delete(want, m.MatchID)
			}
		}
		if len(fresh) == 0 {
			return nil
		}

		if err := sink.RecordMatches(ctx, fresh); err != nil {
			return err
		}
		stored += len(fresh)
		return nil
	})
	log.Info("Cache replayed", "read", read, "stored", stored)
	return stored, err
}
