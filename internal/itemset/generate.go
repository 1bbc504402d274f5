package itemset

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"itemset-builder/internal/analysis"
	"itemset-builder/internal/store"
)

// GenerateAll builds a document for every champion key. Each champion gets
// its own Analyzer; at most workers run at once.
func GenerateAll(ctx context.Context, reader store.Reader, cat analysis.Catalog, championKeys []string, workers int) (map[string]*Document, error) {
	if workers < 1 {
		workers = 1
	}

	var (
		mu   sync.Mutex
		docs = make(map[string]*Document, len(championKeys))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, key := range championKeys {
		g.Go(func() error {
			a, err := analysis.New(ctx, reader, cat, key)
			if err != nil {
				return err
			}
			doc, err := NewBuilder(a).Generate(ctx)
			if err != nil {
				return err
			}

			mu.Lock()
			docs[key] = doc
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}
