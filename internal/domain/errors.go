package domain

import "errors"

// Sentinel errors for harvest operations
var (
	// ErrConnection indicates the catalog or sink could not be reached at startup
	ErrConnection = errors.New("connection failed")

	// ErrCatalog indicates the catalog could not be counted or listed
	ErrCatalog = errors.New("catalog query failed")

	// ErrFetch indicates a page request failed (network, timeout, non-2xx)
	ErrFetch = errors.New("page fetch failed")

	// ErrEncoding indicates page bytes were not valid in the source encoding
	ErrEncoding = errors.New("invalid page encoding")

	// ErrParse indicates page text was not a valid JSON document
	ErrParse = errors.New("malformed page document")

	// ErrWrite indicates a single record could not be persisted
	ErrWrite = errors.New("record write failed")
)

// ErrorKind returns a short label for logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrCatalog):
		return "catalog"
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrWrite):
		return "write"
	default:
		return "unknown"
	}
}
