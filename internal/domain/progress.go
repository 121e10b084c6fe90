package domain

// PageReport describes the outcome of one page.
type PageReport struct {
	ItemID    string
	Page      int
	Extracted int   // Records parsed from the page
	Records   int   // Persisted from this page
	Err       error // Non-fatal failure that ended the page, if any
}

// BatchProgress is reported after each catalog batch.
type BatchProgress struct {
	Offset int // Next catalog offset (already advanced past this batch)
	Total  int // Catalog size captured at the start of the run
	Items  int // Items in the batch just processed
}

// HarvestResult summarizes a whole run.
type HarvestResult struct {
	Items         int // Items paginated
	Records       int // Records persisted
	Batches       int // Catalog batches processed
	Discrepancies int // Items that came up short of their expected count
}

// HarvestObserver receives progress updates during a harvest.
// Implementations must be safe for concurrent use when workers > 1.
type HarvestObserver interface {
	OnPageDone(report PageReport)
	OnItemDone(tally ItemTally)
	OnBatchDone(progress BatchProgress)
}

// WriteFailures returns how many extracted records were not persisted.
func (r PageReport) WriteFailures() int {
	if r.Extracted > r.Records {
		return r.Extracted - r.Records
	}
	return 0
}

// NoOpObserver discards progress updates (for testing/batch operations).
type NoOpObserver struct{}

func (NoOpObserver) OnPageDone(PageReport) {}
func (NoOpObserver) OnItemDone(ItemTally) {}
func (NoOpObserver) OnBatchDone(BatchProgress) {}

// Observers fans updates out to several observers.
type Observers []HarvestObserver

func (o Observers) OnPageDone(report PageReport) {
	for _, obs := range o {
		obs.OnPageDone(report)
	}
}

func (o Observers) OnItemDone(tally ItemTally) {
	for _, obs := range o {
		obs.OnItemDone(tally)
	}
}

func (o Observers) OnBatchDone(progress BatchProgress) {
	for _, obs := range o {
		obs.OnBatchDone(progress)
	}
}
