package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"itemset-builder/internal/analysis"
	"itemset-builder/internal/catalog"
	"itemset-builder/internal/config"
	"itemset-builder/internal/discord"
	"itemset-builder/internal/ingest"
	"itemset-builder/internal/itemset"
	"itemset-builder/internal/lcu"
	"itemset-builder/internal/logger"
	"itemset-builder/internal/packager"
	"itemset-builder/internal/riot"
	"itemset-builder/internal/storage"
	"itemset-builder/internal/store"
)

// app carries what every command shares
type app struct {
	ctx     context.Context
	cfg     *config.Config
	log     *logger.Logger
	notify  *discord.WebhookClient // nil when no webhook is configured
	started time.Time
}

type generateOptions struct {
	days      int
	recreate  bool
	offline   bool
	outputDir string
	workers   int
	noTree    bool
	install   bool
	leagueDir string
}

// run loads config and logging, installs the signal handler and calls fn
func run(fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := setupSignalHandler(context.Background(), log)
	defer stop()

	a := &app{ctx: ctx, cfg: cfg, log: log, started: time.Now()}
	if cfg.DiscordWebhookURL != "" {
		a.notify = discord.NewWebhookClient(cfg.DiscordWebhookURL)
	}
	return fn(a)
}

// loadCatalog fetches Data Dragon and refreshes the snapshot, or reads the
// snapshot when offline or when Data Dragon is unreachable
func (a *app) loadCatalog(offline bool) (*catalog.Index, error) {
	path := a.cfg.CatalogCachePath()
	if offline {
		idx, err := catalog.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("offline run needs a catalog snapshot: %w", err)
		}
		a.log.Info("[Catalog] Loaded snapshot", "version", idx.Version(), "path", path)
		return idx, nil
	}

	idx, err := catalog.NewLoader().Load(a.ctx, a.cfg.DDragonVersion)
	if err != nil {
		var entryErr *catalog.EntryError
		if errors.As(err, &entryErr) {
			return nil, err
		}
		a.log.Warn("[Catalog] Data Dragon unavailable, using snapshot", "error", err)
		return catalog.LoadFile(path)
	}
	if err := idx.Save(path); err != nil {
		a.log.Warn("[Catalog] Failed to save snapshot", "error", err)
	}
	a.log.Info("[Catalog] Loaded from Data Dragon", "version", idx.Version(),
		"champions", len(idx.ChampionKeys()))
	return idx, nil
}

func (a *app) openStore(recreate bool) (store.EventStore, error) {
	st, err := store.Open(a.ctx, a.cfg, recreate)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.StoreDriver, err)
	}
	a.log.Info("[Store] Ready", "driver", a.cfg.StoreDriver, "recreated", recreate)
	return st, nil
}

// ingest validates the key, then runs one pipeline pass writing through the
// raw match cache
func (a *app) ingest(st store.EventStore, cat *catalog.Index, days, maxPlayers int) (ingest.Summary, error) {
	valid, err := riot.NewKeyValidator(a.cfg.RiotPlatform).ValidateKey(a.ctx, a.cfg.RiotAPIKey)
	if err != nil {
		return ingest.Summary{}, fmt.Errorf("validate API key: %w", err)
	}
	if !valid {
		a.notifyKeyExpired(st)
		return ingest.Summary{}, fmt.Errorf("API key rejected: %w", riot.ErrForbidden)
	}

	client, err := riot.NewClient(a.cfg.RiotAPIKey, a.cfg.RiotPlatform, a.cfg.RiotRegion,
		riot.WithLogger(a.log.Component("riot")))
	if err != nil {
		return ingest.Summary{}, err
	}

	cache, err := storage.Open(a.cfg.MatchCacheDir(), storage.WithLogger(a.log.Component("cache")))
	if err != nil {
		return ingest.Summary{}, err
	}

	p := ingest.New(client, st, cat, cache, a.log, ingest.Config{
		Days:       days,
		BatchSize:  a.cfg.IngestBatchSize,
		MaxPlayers: maxPlayers,
	})
	sum, runErr := p.Run(a.ctx)

	if err := cache.Close(); err != nil {
		a.log.Warn("[Cache] Close failed", "error", err)
	}
	if n, err := cache.Archive(); err != nil {
		a.log.Warn("[Cache] Archive failed", "error", err)
	} else if n > 0 {
		a.log.Info("[Cache] Archived files", "files", n)
	}

	if errors.Is(runErr, riot.ErrForbidden) {
		a.notifyKeyExpired(st)
	}
	return sum, runErr
}

func (a *app) reload(st store.EventStore) (int, error) {
	cache, err := storage.Open(a.cfg.MatchCacheDir(), storage.WithLogger(a.log.Component("cache")))
	if err != nil {
		return 0, err
	}
	return ingest.Reload(a.ctx, cache, st, a.cfg.IngestBatchSize, a.log)
}

func (a *app) generate(opts generateOptions) error {
	cat, err := a.loadCatalog(opts.offline)
	if err != nil {
		return a.fail("catalog", err)
	}
	st, err := a.openStore(opts.recreate)
	if err != nil {
		return a.fail("store", err)
	}
	defer st.Close()

	newMatches := 0
	if opts.offline {
		// a recreated store is empty until the cache is replayed
		if opts.recreate {
			if newMatches, err = a.reload(st); err != nil {
				return a.fail("load-cache", err)
			}
		}
	} else {
		sum, err := a.ingest(st, cat, opts.days, 0)
		if err != nil {
			return a.fail("ingest", err)
		}
		newMatches = sum.Stored
	}

	docs, err := itemset.GenerateAll(a.ctx, st, cat, cat.ChampionKeys(), opts.workers)
	if err != nil {
		return a.fail("analyze", err)
	}

	res, err := packager.New(opts.outputDir,
		packager.WithTree(!opts.noTree || opts.install),
		packager.WithLogger(a.log.Component("packager")),
	).Package(docs, time.Now())
	if err != nil {
		return a.fail("package", err)
	}

	if opts.install {
		if err := a.install(res.TreeDir, opts.leagueDir); err != nil {
			return a.fail("install", err)
		}
	}

	total, err := st.MatchCount(a.ctx)
	if err != nil {
		a.log.Warn("[Store] Match count failed", "error", err)
	}
	a.log.Info("Generation complete", "champions", res.Champions, "new_matches", newMatches,
		"total_matches", total, "zip", res.ZipPath, "duration", time.Since(a.started).Round(time.Second).String())

	a.send(discord.NewRunSummaryPayload(discord.RunSummary{
		Days:         opts.days,
		NewMatches:   newMatches,
		TotalMatches: total,
		Champions:    res.Champions,
		Runtime:      time.Since(a.started),
		Version:      cat.Version(),
		Finished:     time.Now(),
	}))
	return nil
}

func (a *app) analyze(w io.Writer, champion string, offline bool) error {
	cat, err := a.loadCatalog(offline)
	if err != nil {
		return err
	}
	st, err := a.openStore(false)
	if err != nil {
		return err
	}
	defer st.Close()

	an, err := analysis.New(a.ctx, st, cat, champion)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d games\n", an.Champion(), an.Games())

	views := []struct {
		name string
		list func(context.Context) ([]analysis.Stat, error)
	}{
		{"Starting items", an.StartingItems},
		{"Offensive items", an.OffensiveItems},
		{"Defensive items", an.DefensiveItems},
		{"Other items", an.OtherItems},
		{"Consumables", an.Consumables},
	}
	for _, v := range views {
		stats, err := v.list(a.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%s\n", v.name)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  ID\tNAME\tCOUNT\tAVG\tPCT")
		for _, s := range stats {
			fmt.Fprintf(tw, "  %d\t%s\t%d\t%.2f\t%.1f\n", s.ItemID, cat.ItemName(s.ItemID), s.Count, s.AvgCount, s.Percentage)
		}
		tw.Flush()
	}
	return nil
}

func (a *app) install(treeDir, leagueDir string) error {
	if treeDir == "" {
		return fmt.Errorf("no item set tree to install")
	}
	var (
		dir string
		err error
	)
	if leagueDir != "" {
		dir = leagueDir
	} else if dir, err = lcu.FindInstallDir(); err != nil {
		return err
	}

	n, err := lcu.Install(treeDir, dir)
	if err != nil {
		return err
	}
	a.log.Info("[Install] Item sets copied", "files", n, "target", filepath.Join(dir, lcu.ChampionsDir))
	if lcu.ClientRunning(dir) {
		a.log.Warn("[Install] League client is running; restart it to load the new sets")
	}
	return nil
}

// fail reports a stage failure to Discord and returns err wrapped with the stage
func (a *app) fail(stage string, err error) error {
	if !errors.Is(err, riot.ErrForbidden) {
		a.send(discord.NewRunFailedPayload(stage, err))
	}
	return fmt.Errorf("%s: %w", stage, err)
}

func (a *app) notifyKeyExpired(st store.EventStore) {
	total, _ := st.MatchCount(a.ctx)
	a.send(discord.NewKeyExpiredPayload(a.cfg.RiotAPIKey, total, time.Since(a.started)))
}

func (a *app) send(payload discord.WebhookPayload) {
	if a.notify == nil {
		return
	}
	// the run context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.notify.Send(ctx, payload); err != nil {
		a.log.Warn("[Discord] Notification failed", "error", err)
	}
}
