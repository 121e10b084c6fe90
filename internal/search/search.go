// Package search runs fuzzy queries over harvested records.
package search

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	lfuzzy "github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/harvester/internal/domain"
	"github.com/sahilm/fuzzy"
)

// DefaultTextField is the record attribute searched unless configured otherwise.
const DefaultTextField = "content"

// RecordScanner iterates stored records. *store.RecordStore satisfies it.
type RecordScanner interface {
	ForEach(fn func(identity string, rec domain.Record) error) error
}

// Result is one matching record with match metadata for highlighting
type Result struct {
	Identity       string // Empty for records stored without one
	Record         domain.Record
	Text           string
	MatchedIndexes []int // Byte offsets into Text
	Score          int   // Higher is better
}

// Index implements sahilm/fuzzy.Source over record text
type Index struct {
	entries   []entry
	lowerText []string // Pre-computed lowercase text
}

type entry struct {
	identity string
	record   domain.Record
	text     string
}

// String returns the lowercase text at index i (implements fuzzy.Source)
func (idx *Index) String(i int) string { return idx.lowerText[i] }

// Len returns the number of indexed records (implements fuzzy.Source)
func (idx *Index) Len() int { return len(idx.entries) }

func (idx *Index) add(identity string, rec domain.Record, text string) {
	idx.entries = append(idx.entries, entry{identity: identity, record: rec, text: text})
	idx.lowerText = append(idx.lowerText, strings.ToLower(text))
}

// Service handles fuzzy search over stored records
type Service struct {
	field  string
	logger *slog.Logger
}

// NewService creates a search service reading text from field
func NewService(field string, logger *slog.Logger) *Service {
	if field == "" {
		field = DefaultTextField
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{field: field, logger: logger}
}

// Build loads every record with a string text field into a new index
func (s *Service) Build(src RecordScanner) (*Index, error) {
	idx := &Index{}
	skipped := 0
	err := src.ForEach(func(identity string, rec domain.Record) error {
		text, ok := rec[s.field].(string)
		if !ok || text == "" {
			skipped++
			return nil
		}
		idx.add(identity, rec, text)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("build search index: %w", err)
	}

	s.logger.Debug("indexed records", "field", s.field, "indexed", idx.Len(), "skipped", skipped)
	return idx, nil
}

// Search returns up to limit records matching query, best first.
// A limit <= 0 returns every match.
func (s *Service) Search(idx *Index, query string, limit int) []Result {
	query = strings.TrimSpace(query)
	if query == "" || idx == nil || idx.Len() == 0 {
		return nil
	}

	s.logger.Debug("searching", "query", query, "records", idx.Len())

	// Rank candidates whose text contains the query characters in order,
	// folding case and diacritics.
	candidates := lfuzzy.RankFindNormalizedFold(query, idx.lowerText)
	if len(candidates) == 0 {
		return nil
	}

	sub := &Index{}
	for _, c := range candidates {
		e := idx.entries[c.OriginalIndex]
		sub.entries = append(sub.entries, e)
		sub.lowerText = append(sub.lowerText, idx.lowerText[c.OriginalIndex])
	}

	// Score the survivors and collect match positions
	matches := fuzzy.FindFrom(strings.ToLower(query), sub)
	if len(matches) == 0 {
		// Normalization found matches the plain matcher cannot place;
		// return them unhighlighted in distance order.
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].Distance < candidates[j].Distance
		})
		results := make([]Result, 0, len(candidates))
		for _, c := range candidates {
			results = append(results, newResult(idx.entries[c.OriginalIndex], nil, -c.Distance))
		}
		return truncate(results, limit)
	}

	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		e := sub.entries[m.Index]
		var highlight []int
		// Offsets only carry over when lowercasing kept byte positions.
		if len(e.text) == len(sub.lowerText[m.Index]) {
			highlight = m.MatchedIndexes
		}
		results = append(results, newResult(e, highlight, m.Score))
	}

	s.logger.Debug("search complete", "query", query, "results", len(results))
	return truncate(results, limit)
}

func newResult(e entry, matched []int, score int) Result {
	return Result{
		Identity:       e.identity,
		Record:         e.record,
		Text:           e.text,
		MatchedIndexes: matched,
		Score:          score,
	}
}

func truncate(results []Result, limit int) []Result {
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}

// Highlight renders matched byte offsets of text through mark,
// grouping consecutive matches into one call. A lipgloss Style's Render
// method fits mark directly.
func Highlight(text string, matched []int, mark func(...string) string) string {
	if len(matched) == 0 || mark == nil {
		return text
	}

	hit := make(map[int]bool, len(matched))
	for _, i := range matched {
		hit[i] = true
	}

	var b, run strings.Builder
	flush := func() {
		if run.Len() > 0 {
			b.WriteString(mark(run.String()))
			run.Reset()
		}
	}

	for i, r := range text {
		if hit[i] {
			run.WriteRune(r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}
