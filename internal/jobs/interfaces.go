package jobs

import (
	"context"

	"github.com/Harvey-AU/competitor-prices/internal/competitor"
	"github.com/Harvey-AU/competitor-prices/internal/results"
)

// Sink receives exactly one record per processed entry. *results.Aggregator implements it.
type Sink interface {
	Append(record results.Record)
}

// ResultPublisher hands a finished competitor table to an output.
type ResultPublisher interface {
	Name() string
	Publish(ctx context.Context, runID string, table *results.Table) error
}

// RunNotifier is told about a whole run once every competitor has finished.
type RunNotifier interface {
	NotifyRun(ctx context.Context, report *results.RunReport) error
}

// ExtractorFactory builds the extractor for one competitor site.
type ExtractorFactory func(site competitor.Site) competitor.Extractor
