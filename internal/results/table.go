package results

import (
	"strconv"
	"time"
)

// Columns is the legacy sheet layout every competitor table is projected to.
var Columns = []string{
	"sku",
	"competitor_sku",
	"ean",
	"name",
	"brand",
	"series",
	"main_category",
	"sub_category",
	"price",
	"lead_time",
}

// Table is the finished result of one competitor run.
type Table struct {
	Competitor string
	Brand      string
	StartedAt  time.Time
	FinishedAt time.Time
	Records    []Record
}

// Summary counts outcomes in a table.
type Summary struct {
	Competitor string              `json:"competitor"`
	Total      int                 `json:"total"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	ByKind     map[FailureKind]int `json:"by_kind,omitempty"`
	Duration   time.Duration       `json:"duration"`
}

// FailureRatio is Failed/Total, or 0 for an empty table.
func (s Summary) FailureRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed) / float64(s.Total)
}

// Summary tallies successes and failures by kind.
func (t *Table) Summary() Summary {
	s := Summary{
		Competitor: t.Competitor,
		Total:      len(t.Records),
		ByKind:     make(map[FailureKind]int),
		Duration:   t.FinishedAt.Sub(t.StartedAt),
	}
	for _, r := range t.Records {
		switch rec := r.(type) {
		case Product:
			s.Succeeded++
		case Failure:
			s.Failed++
			s.ByKind[rec.Kind]++
		}
	}
	return s
}

// Products returns only the successful records.
func (t *Table) Products() []Product {
	out := make([]Product, 0, len(t.Records))
	for _, r := range t.Records {
		if p, ok := r.(Product); ok {
			out = append(out, p)
		}
	}
	return out
}

// Rows projects every record to the legacy column layout.
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records))
	for _, r := range t.Records {
		rows = append(rows, Row(r))
	}
	return rows
}

// Row flattens a single record. A failure keeps its status code in the sku
// column and its source URL in the lead_time column; every other field is empty.
func Row(r Record) []string {
	row := make([]string, len(Columns))
	switch rec := r.(type) {
	case Product:
		row[0] = rec.OurSKU
		row[1] = rec.ArticleNumber
		row[3] = rec.Name
		row[4] = rec.Brand
		row[6] = rec.MainCategory
		row[7] = rec.SubCategory
		row[8] = FormatPrice(rec.Price)
	case Failure:
		row[0] = rec.StatusText()
		row[9] = rec.URL
	}
	return row
}

// FormatPrice renders a price with two decimals and a dot separator.
func FormatPrice(price float64) string {
	return strconv.FormatFloat(price, 'f', 2, 64)
}
