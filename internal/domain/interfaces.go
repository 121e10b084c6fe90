package domain

import "context"

// CatalogSource yields the items to harvest.
type CatalogSource interface {
	// CountItems returns the total number of catalog items
	CountItems(ctx context.Context) (int, error)

	// ListItems returns up to limit items starting at offset, in a stable order
	ListItems(ctx context.Context, offset, limit int) ([]CatalogItem, error)
}

// Transcoder converts raw page bytes from the legacy encoding to UTF-8 text.
type Transcoder interface {
	Transcode(raw []byte) (string, error)
}

// PageFetcher retrieves and decodes one page of remote data.
// Errors wrap ErrFetch or ErrEncoding.
type PageFetcher interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult, error)
}

// RecordExtractor parses page text into records.
// An absent records field yields zero records and no error;
// only malformed documents return an error wrapping ErrParse.
type RecordExtractor interface {
	Extract(text string) ([]Record, error)
}
