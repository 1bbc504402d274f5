// Package ingest downloads recent high-elo matches and commits them to the
// event store in batches.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"

	"itemset-builder/internal/logger"
	"itemset-builder/internal/riot"
	"itemset-builder/internal/store"
)

const (
	DefaultBatchSize   = 50
	DefaultWorkerCount = 4
	resultBuffer       = 100
)

// Fetcher is the slice of the Riot API the pipeline uses
type Fetcher interface {
	ChallengerPUUIDs(ctx context.Context) ([]string, error)
	MatchIDs(ctx context.Context, puuid string, start, end time.Time) ([]string, error)
	GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error)
	GetTimeline(ctx context.Context, matchID string) (*riot.TimelineResponse, error)
}

// Sink is the write side of the event store
type Sink interface {
	MatchIDsNotPresent(ctx context.Context, candidateIDs []string) ([]string, error)
	RecordMatches(ctx context.Context, matches []store.RawMatch) error
}

// Cache receives every downloaded match before it is committed
type Cache interface {
	Append(m store.RawMatch) error
}

// Config holds pipeline settings
type Config struct {
	Days       int // window length ending now
	BatchSize  int
	Workers    int
	MaxPlayers int // 0 = whole ladder
}

// Summary reports one run
type Summary struct {
	Players    int
	Candidates int
	New        int
	Fetched    int
	Failed     int
	Stored     int
	Duration   time.Duration
}

// Pipeline runs one ingestion pass
type Pipeline struct {
	fetcher   Fetcher
	sink      Sink
	champions ChampionResolver
	cache     Cache
	log       *logger.Logger
	cfg       Config
	now       func() time.Time

	visitedMatches *bloom.BloomFilter
	visitedPUUIDs  *bloom.BloomFilter
}

// New creates a pipeline. cache may be nil.
func New(fetcher Fetcher, sink Sink, champions ChampionResolver, cache Cache, log *logger.Logger, cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		fetcher:        fetcher,
		sink:           sink,
		champions:      champions,
		cache:          cache,
		log:            log.Component("ingest"),
		cfg:            cfg,
		now:            time.Now,
		visitedMatches: bloom.NewWithEstimates(500000, 0.001),
		visitedPUUIDs:  bloom.NewWithEstimates(100000, 0.001),
	}
}

// Run collects match ids from the challenger ladder, downloads the ones the
// store does not have yet and records them. Single match failures are
// logged and skipped; a failed batch commit stops the run.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	start := time.Now()
	var sum Summary

	candidates, players, err := p.collectCandidates(ctx)
	if err != nil {
		return sum, err
	}
	sum.Players = players
	sum.Candidates = len(candidates)

	missing, err := p.sink.MatchIDsNotPresent(ctx, candidates)
	if err != nil {
		return sum, fmt.Errorf("failed to check stored matches: %w", err)
	}
	sum.New = len(missing)
	p.log.Info("Match ids collected", "players", players, "candidates", len(candidates), "new", len(missing))

	if err := p.download(ctx, missing, &sum); err != nil {
		sum.Duration = time.Since(start)
		return sum, err
	}

	sum.Duration = time.Since(start)
	p.log.Info("Ingestion complete",
		"fetched", sum.Fetched, "failed", sum.Failed, "stored", sum.Stored, "duration", sum.Duration.String())
	return sum, nil
}

// collectCandidates walks the ladder and returns deduplicated match ids
func (p *Pipeline) collectCandidates(ctx context.Context) ([]string, int, error) {
	puuids, err := p.fetcher.ChallengerPUUIDs(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch challenger ladder: %w", err)
	}
	if p.cfg.MaxPlayers > 0 && len(puuids) > p.cfg.MaxPlayers {
		puuids = puuids[len(puuids)-p.cfg.MaxPlayers:]
	}

	end := p.now()
	begin := end.Add(-time.Duration(p.cfg.Days) * 24 * time.Hour)

	var candidates []string
	players := 0
	for i, puuid := range puuids {
		if err := ctx.Err(); err != nil {
			return nil, players, err
		}
		if p.visitedPUUIDs.TestAndAddString(puuid) {
			continue
		}
		players++

		ids, err := p.fetcher.MatchIDs(ctx, puuid, begin, end)
		if err != nil {
			p.log.Warn("[Producer] Failed to fetch match history", "player", shortID(puuid), "error", err)
			continue
		}
		for _, id := range ids {
			if !p.visitedMatches.TestAndAddString(id) {
				candidates = append(candidates, id)
			}
		}
		p.log.Debug("[Producer] Player processed", "index", i+1, "of", len(puuids), "matches", len(ids))
	}
	return candidates, players, nil
}

// download fetches matches with a worker pool and commits them in batches
// from a single writer
func (p *Pipeline) download(ctx context.Context, matchIDs []string, sum *Summary) error {
	if len(matchIDs) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan string)
	results := make(chan store.RawMatch, resultBuffer)
	var failed int64

	g.Go(func() error {
		defer close(jobs)
		for _, id := range matchIDs {
			select {
			case jobs <- id:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	workers, wctx := errgroup.WithContext(gctx)
	for i := 0; i < p.cfg.Workers; i++ {
		workers.Go(func() error {
			for id := range jobs {
				raw, err := p.fetchMatch(wctx, id)
				if err != nil {
					if wctx.Err() != nil {
						return wctx.Err()
					}
					atomic.AddInt64(&failed, 1)
					p.log.Warn("[Worker] Failed to fetch match", "match_id", id, "error", err)
					continue
				}
				select {
				case results <- raw:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workers.Wait()
	})

	g.Go(func() error {
		return p.write(gctx, results, sum)
	})

	err := g.Wait()
	sum.Failed = int(atomic.LoadInt64(&failed))
	return err
}

func (p *Pipeline) fetchMatch(ctx context.Context, matchID string) (store.RawMatch, error) {
	match, err := p.fetcher.GetMatch(ctx, matchID)
	if err != nil {
		return store.RawMatch{}, fmt.Errorf("match: %w", err)
	}
	timeline, err := p.fetcher.GetTimeline(ctx, matchID)
	if err != nil {
		return store.RawMatch{}, fmt.Errorf("timeline: %w", err)
	}
	raw := ToRawMatch(match, timeline, p.champions)
	if raw.MatchID == "" {
		raw.MatchID = matchID
	}
	return raw, nil
}

// write caches each match and commits full batches
func (p *Pipeline) write(ctx context.Context, results <-chan store.RawMatch, sum *Summary) error {
	batch := make([]store.RawMatch, 0, p.cfg.BatchSize)
	commit := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.sink.RecordMatches(ctx, batch); err != nil {
			return err
		}
		sum.Stored += len(batch)
		p.log.Info("[Writer] Batch committed", "matches", len(batch), "stored", sum.Stored)
		batch = make([]store.RawMatch, 0, p.cfg.BatchSize)
		return nil
	}

	for raw := range results {
		sum.Fetched++
		if p.cache != nil {
			if err := p.cache.Append(raw); err != nil {
				p.log.Warn("[Writer] Failed to cache match", "match_id", raw.MatchID, "error", err)
			}
		}
		batch = append(batch, raw)
		if len(batch) >= p.cfg.BatchSize {
			if err := commit(); err != nil {
				return err
			}
		}
	}
	return commit()
}

// shortID trims long PUUIDs for logging
func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
