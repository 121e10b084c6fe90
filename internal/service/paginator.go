package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mmcdole/harvester/internal/domain"
)

// Paginator harvests every page of a single catalog item.
type Paginator struct {
	fetcher   domain.PageFetcher
	extractor domain.RecordExtractor
	writer    *Writer
	observer  domain.HarvestObserver
	logger    *slog.Logger
}

// NewPaginator wires the per-page pipeline: fetch, extract, write.
func NewPaginator(
	fetcher domain.PageFetcher,
	extractor domain.RecordExtractor,
	writer *Writer,
	observer domain.HarvestObserver,
	logger *slog.Logger,
) *Paginator {
	if observer == nil {
		observer = domain.NoOpObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Paginator{
		fetcher:   fetcher,
		extractor: extractor,
		writer:    writer,
		observer:  observer,
		logger:    logger,
	}
}

// Paginate requests pages 0, 1, 2, ... for item until a page yields no
// persisted records. A page that fails to fetch, decode or parse counts as
// empty and also ends the item; the tally's Stop field records which case
// applied. The only error returned is the context's.
func (p *Paginator) Paginate(ctx context.Context, item domain.CatalogItem) (domain.ItemTally, error) {
	tally := domain.ItemTally{
		ItemID:   item.ID,
		Expected: item.ExpectedRecords,
	}

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			tally.Stop = domain.StopCanceled
			return tally, err
		}

		req := domain.PageRequest{ItemID: item.ID, Page: page}
		extracted, n, err := p.harvestPage(ctx, req)

		tally.Pages++
		tally.Observed += n
		p.observer.OnPageDone(domain.PageReport{
			ItemID:    item.ID,
			Page:      page,
			Extracted: extracted,
			Records:   n,
			Err:       err,
		})

		if n == 0 {
			if err != nil {
				tally.Stop = domain.StopPageFailure
			} else {
				tally.Stop = domain.StopEmptyPage
			}
			break
		}
	}

	// A failure caused by cancellation is not an end-of-data signal.
	if err := ctx.Err(); err != nil {
		tally.Stop = domain.StopCanceled
		return tally, err
	}

	if tally.Short() {
		p.logger.Warn("record count discrepancy",
			"item", item.ID,
			"expected", tally.Expected,
			"observed", tally.Observed,
			"pages", tally.Pages,
			"stop", tally.Stop.String())
	} else {
		p.logger.Debug("item complete",
			"item", item.ID,
			"observed", tally.Observed,
			"pages", tally.Pages,
			"stop", tally.Stop.String())
	}

	p.observer.OnItemDone(tally)
	return tally, nil
}

// harvestPage runs one page through fetch, extract and write, returning the
// number of extracted and persisted records. Failures are logged here and returned only
// so the caller can classify why the item stopped.
func (p *Paginator) harvestPage(ctx context.Context, req domain.PageRequest) (int, int, error) {
	res, err := p.fetcher.FetchPage(ctx, req)
	if err != nil {
		p.logPageError(req, err)
		return 0, 0, err
	}

	records, err := p.extractor.Extract(res.Text)
	if err != nil {
		p.logPageError(req, err)
		return 0, 0, err
	}

	n := p.writer.Write(ctx, req, records)
	if n == 0 && len(records) > 0 {
		err := fmt.Errorf("%w: none of %d records persisted", domain.ErrWrite, len(records))
		p.logPageError(req, err)
		return len(records), 0, err
	}
	return len(records), n, nil
}

func (p *Paginator) logPageError(req domain.PageRequest, err error) {
	p.logger.Error("page failed",
		"request", req.String(),
		"item", req.ItemID,
		"page", req.Page,
		"kind", domain.ErrorKind(err),
		"error", err)
}
