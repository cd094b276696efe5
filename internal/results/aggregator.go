package results

import (
	"sync"
	"time"
)

// Aggregator collects records from concurrent workers. Records keep completion order.
type Aggregator struct {
	mu         sync.Mutex
	competitor string
	brand      string
	startedAt  time.Time
	records    []Record
}

// NewAggregator creates an empty aggregator sized for expected records.
func NewAggregator(competitor, brand string, expected int) *Aggregator {
	if expected < 0 {
		expected = 0
	}
	return &Aggregator{
		competitor: competitor,
		brand:      brand,
		startedAt:  time.Now().UTC(),
		records:    make([]Record, 0, expected),
	}
}

// Append adds a record. Safe for concurrent use.
func (a *Aggregator) Append(r Record) {
	if r == nil {
		return
	}
	a.mu.Lock()
	a.records = append(a.records, r)
	a.mu.Unlock()
}

// Len returns the number of records appended so far.
func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}

// Finalize returns a snapshot of the collected records as a Table.
// The aggregator may continue to be used afterwards.
func (a *Aggregator) Finalize() *Table {
	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]Record, len(a.records))
	copy(records, a.records)

	return &Table{
		Competitor: a.competitor,
		Brand:      a.brand,
		StartedAt:  a.startedAt,
		FinishedAt: time.Now().UTC(),
		Records:    records,
	}
}
