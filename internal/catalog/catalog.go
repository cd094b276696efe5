package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Harvey-AU/competitor-prices/internal/util"
	"github.com/rs/zerolog/log"
)

// NoAlternative marks a catalogue cell where no competitor product was matched.
const NoAlternative = "geen alternatief"

// SKUColumn holds our own product code in the catalogue export.
const SKUColumn = "productcode_match"

// ErrUnknownCompetitor is returned when the source has no column for the competitor.
var ErrUnknownCompetitor = errors.New("competitor not present in catalogue")

// MatchEntry pairs one of our SKUs with the competitor product page to scrape.
type MatchEntry struct {
	OurSKU        string `json:"sku"`
	CompetitorURL string `json:"url"`
}

// Loader supplies the match entries for one competitor.
type Loader interface {
	Load(ctx context.Context, competitor string) ([]MatchEntry, error)
}

// Source reads the whole catalogue, every competitor at once.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Snapshot holds the raw catalogue cells per competitor in row order.
// It is not modified after the source has built it.
type Snapshot struct {
	columns map[string][]MatchEntry
	rows    int
}

// NewSnapshot creates an empty snapshot with a column for each competitor.
func NewSnapshot(competitors ...string) *Snapshot {
	s := &Snapshot{columns: make(map[string][]MatchEntry)}
	for _, c := range competitors {
		s.AddCompetitor(c)
	}
	return s
}

// AddCompetitor registers a competitor column, even if it ends up with no rows.
func (s *Snapshot) AddCompetitor(competitor string) {
	key := competitorKey(competitor)
	if _, ok := s.columns[key]; !ok {
		s.columns[key] = nil
	}
}

// Add appends one raw cell to a competitor's column.
func (s *Snapshot) Add(competitor string, entry MatchEntry) {
	key := competitorKey(competitor)
	s.columns[key] = append(s.columns[key], entry)
	s.rows++
}

// Rows is the number of cells added across all competitors.
func (s *Snapshot) Rows() int {
	return s.rows
}

// Competitors lists the competitor columns in alphabetical order.
func (s *Snapshot) Competitors() []string {
	names := make([]string, 0, len(s.columns))
	for name := range s.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entries returns the cleaned entries for competitor. Each call returns a new slice.
func (s *Snapshot) Entries(competitor string) ([]MatchEntry, error) {
	raw, ok := s.columns[competitorKey(competitor)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompetitor, competitor)
	}
	return Clean(raw), nil
}

func competitorKey(competitor string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(competitor, "\ufeff")))
}

// IsNoAlternative reports whether a catalogue cell holds the no-match sentinel.
func IsNoAlternative(cell string) bool {
	return strings.EqualFold(strings.TrimSpace(cell), NoAlternative)
}

// Clean drops entries without a SKU, without a usable URL or marked as having
// no alternative, and normalises the remaining URLs. A SKU listed more than
// once keeps its first usable row. Input order is kept.
func Clean(entries []MatchEntry) []MatchEntry {
	out := make([]MatchEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		sku := strings.TrimSpace(e.OurSKU)
		if sku == "" || IsNoAlternative(e.CompetitorURL) || isMissing(e.CompetitorURL) {
			continue
		}

		url := util.NormaliseURL(e.CompetitorURL)
		if url == "" {
			continue
		}

		if _, dup := seen[sku]; dup {
			log.Warn().
				Str("sku", sku).
				Str("url", url).
				Msg("Duplicate SKU in catalogue, keeping the first row")
			continue
		}
		seen[sku] = struct{}{}

		out = append(out, MatchEntry{OurSKU: sku, CompetitorURL: url})
	}
	return out
}

// Spreadsheet exports write missing cells in a few different ways.
func isMissing(cell string) bool {
	switch strings.ToLower(strings.TrimSpace(cell)) {
	case "", "nan", "none", "null", "n/a":
		return true
	}
	return false
}
