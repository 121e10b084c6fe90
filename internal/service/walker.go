package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/harvester/internal/domain"
	"github.com/sourcegraph/conc/pool"
)

// WalkerConfig controls catalog enumeration.
type WalkerConfig struct {
	BatchSize int // Items per catalog query
	Workers   int // Items paginated concurrently within a batch; <= 1 is sequential
}

// Walker enumerates the catalog and paginates every item.
type Walker struct {
	catalog   domain.CatalogSource
	paginator *Paginator
	observer  domain.HarvestObserver
	logger    *slog.Logger

	batchSize int
	workers   int
}

// NewWalker creates a catalog walker
func NewWalker(catalog domain.CatalogSource, paginator *Paginator, cfg WalkerConfig, observer domain.HarvestObserver, logger *slog.Logger) *Walker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if observer == nil {
		observer = domain.NoOpObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{
		catalog:   catalog,
		paginator: paginator,
		observer:  observer,
		logger:    logger,
		batchSize: cfg.BatchSize,
		workers:   cfg.Workers,
	}
}

// Run harvests the whole catalog from offset 0.
// Catalog errors and cancellation are returned; per-page failures never are.
func (w *Walker) Run(ctx context.Context) (domain.HarvestResult, error) {
	var result domain.HarvestResult

	total, err := w.catalog.CountItems(ctx)
	if err != nil {
		return result, fmt.Errorf("count catalog items: %w", err)
	}

	w.logger.Info("starting harvest", "items", total, "batch_size", w.batchSize, "workers", w.workers)

	err = forEachBatch(ctx, total, w.batchSize, w.catalog.ListItems,
		func(ctx context.Context, offset int, items []domain.CatalogItem) error {
			tallies, err := w.runBatch(ctx, items)
			for _, t := range tallies {
				result.Items++
				result.Records += t.Observed
				if t.Short() {
					result.Discrepancies++
				}
			}
			if err != nil {
				return err
			}

			result.Batches++
			progress := domain.BatchProgress{
				Offset: offset + w.batchSize,
				Total:  total,
				Items:  len(items),
			}
			w.logger.Info("batch complete", "offset", progress.Offset, "total", total, "items", len(items))
			w.observer.OnBatchDone(progress)
			return nil
		})
	if err != nil {
		return result, err
	}

	w.logger.Info("harvest complete",
		"items", result.Items,
		"records", result.Records,
		"batches", result.Batches,
		"discrepancies", result.Discrepancies)
	return result, nil
}

// runBatch paginates every item in the batch and returns the tallies of the
// items that finished. Pages of one item are always sequential; with more
// than one worker, different items proceed in parallel.
func (w *Walker) runBatch(ctx context.Context, items []domain.CatalogItem) ([]domain.ItemTally, error) {
	if w.workers <= 1 || len(items) <= 1 {
		tallies := make([]domain.ItemTally, 0, len(items))
		for _, item := range items {
			t, err := w.paginator.Paginate(ctx, item)
			if err != nil {
				return tallies, err
			}
			tallies = append(tallies, t)
		}
		return tallies, nil
	}

	results := make([]domain.ItemTally, len(items))
	done := make([]bool, len(items))

	p := pool.New().WithMaxGoroutines(w.workers).WithContext(ctx)
	for i, item := range items {
		p.Go(func(ctx context.Context) error {
			t, err := w.paginator.Paginate(ctx, item)
			if err != nil {
				return err
			}
			results[i] = t
			done[i] = true
			return nil
		})
	}
	err := p.Wait()

	tallies := make([]domain.ItemTally, 0, len(items))
	for i := range results {
		if done[i] {
			tallies = append(tallies, results[i])
		}
	}
	return tallies, err
}
