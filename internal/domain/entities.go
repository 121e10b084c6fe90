package domain

import "fmt"

// CatalogItem is one product whose comments are harvested.
type CatalogItem struct {
	ID              string // Product identifier used in remote requests
	ExpectedRecords int    // Comment count advertised by the catalog
}

// PageRequest addresses one page of remote data for an item.
type PageRequest struct {
	ItemID string
	Page   int // 0-based, increases by one per request for the same item
}

func (r PageRequest) String() string {
	return fmt.Sprintf("%s#%d", r.ItemID, r.Page)
}

// PageResult holds the decoded text of a fetched page.
type PageResult struct {
	Text string
}

// Record is a single extracted document (e.g. one comment).
// Values are whatever the JSON decoder produced: map[string]any, []any,
// string, json.Number, bool or nil.
type Record map[string]any

// IdentityField is the top-level attribute the sink keys documents by.
const IdentityField = "_id"

// Identity returns the record's promoted identity, if any.
func (r Record) Identity() (any, bool) {
	v, ok := r[IdentityField]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// IdentityKey renders the identity as a string key.
// Returns "" when the record has no identity.
func (r Record) IdentityKey() string {
	v, ok := r.Identity()
	if !ok {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case fmt.Stringer:
		return id.String()
	default:
		return fmt.Sprint(id)
	}
}

// StopReason tells why pagination of an item ended.
type StopReason int

const (
	// StopEmptyPage means the last page was fetched and parsed but
	// produced no persisted records.
	StopEmptyPage StopReason = iota
	// StopPageFailure means the last page failed to fetch, decode or parse.
	// This is indistinguishable from end-of-data for the termination rule.
	StopPageFailure
	// StopCanceled means the run was canceled mid-item.
	StopCanceled
)

func (s StopReason) String() string {
	switch s {
	case StopEmptyPage:
		return "empty"
	case StopPageFailure:
		return "failure"
	case StopCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ItemTally accumulates per-item counts across pages.
type ItemTally struct {
	ItemID   string
	Expected int
	Observed int
	Pages    int // Pages requested, including the terminating one
	Stop     StopReason
}

// Short reports whether fewer records were observed than the catalog promised.
func (t ItemTally) Short() bool {
	return t.Observed < t.Expected
}
