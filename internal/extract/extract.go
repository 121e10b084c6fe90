// Package extract turns decoded page text into identity-tagged records.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mmcdole/harvester/internal/domain"
)

const (
	// DefaultRecordsField is where comment pages keep their records
	DefaultRecordsField = "comments"

	// DefaultIdentityField is the per-record field promoted to domain.IdentityField
	DefaultIdentityField = "id"
)

// Config selects which fields the extractor reads. Both fields accept
// dotted paths ("data.comments") for nested objects.
type Config struct {
	RecordsField  string
	IdentityField string
}

// Extractor implements domain.RecordExtractor for JSON pages.
type Extractor struct {
	recordsPath  []string
	identityPath []string
	logger       *slog.Logger
}

// New creates an extractor. Empty config fields fall back to the defaults.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RecordsField == "" {
		cfg.RecordsField = DefaultRecordsField
	}
	if cfg.IdentityField == "" {
		cfg.IdentityField = DefaultIdentityField
	}
	return &Extractor{
		recordsPath:  splitPath(cfg.RecordsField),
		identityPath: splitPath(cfg.IdentityField),
		logger:       logger,
	}
}

func splitPath(field string) []string {
	return strings.Split(strings.Trim(field, "."), ".")
}

// Extract parses text and returns the records it holds.
// Only a document that is not valid JSON is an error; a missing, null or
// non-array records field means the page has no records.
func (e *Extractor) Extract(text string) ([]domain.Record, error) {
	doc, err := decode(text)
	if err != nil {
		return nil, err
	}

	raw, ok := lookup(doc, e.recordsPath)
	if !ok || raw == nil {
		return nil, nil
	}

	items, ok := raw.([]any)
	if !ok {
		e.logger.Debug("records field is not an array", "field", strings.Join(e.recordsPath, "."), "type", fmt.Sprintf("%T", raw))
		return nil, nil
	}

	records := make([]domain.Record, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			e.logger.Debug("skipping non-object record", "index", i, "type", fmt.Sprintf("%T", item))
			continue
		}
		records = append(records, e.project(obj))
	}
	return records, nil
}

// project promotes the nested identity to the top-level identity attribute,
// overwriting any value already there. Records without one lose any
// top-level identity they arrived with and are stored as plain inserts.
func (e *Extractor) project(obj map[string]any) domain.Record {
	rec := domain.Record(obj)
	if id, ok := lookup(obj, e.identityPath); ok && id != nil {
		rec[domain.IdentityField] = id
		return rec
	}
	delete(rec, domain.IdentityField)
	return rec
}

func decode(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	// Reject trailing content after the first value.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("unexpected data after top-level value")
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return doc, nil
}

func lookup(v any, path []string) (any, bool) {
	cur := v
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
