package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/Harvey-AU/competitor-prices/internal/observability"
	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

// WorkerPool runs an extractor over a batch of entries with a fixed number of workers.
type WorkerPool struct {
	workerLimit int
	retry       RetryPolicy
}

// NewWorkerPool creates a pool that never runs more than workerLimit extractions at once.
func NewWorkerPool(workerLimit int, retry RetryPolicy) (*WorkerPool, error) {
	if workerLimit < 1 {
		return nil, fmt.Errorf("worker limit must be at least 1, got %d", workerLimit)
	}
	return &WorkerPool{workerLimit: workerLimit, retry: retry}, nil
}

// WorkerLimit returns the configured maximum number of workers.
func (wp *WorkerPool) WorkerLimit() int {
	return wp.workerLimit
}

// Run processes every entry in job and appends exactly one record per entry to sink.
// Entries still queued when ctx ends are recorded as cancelled failures, and ctx.Err()
// is returned once all workers have drained.
func (wp *WorkerPool) Run(ctx context.Context, job Job, sink Sink) error {
	n := len(job.Entries)
	if n == 0 {
		return nil
	}

	numWorkers := min(wp.workerLimit, n)
	log.Info().
		Str("competitor", job.Competitor).
		Int("entries", n).
		Int("workers", numWorkers).
		Msg("Starting worker pool")

	queue := make(chan catalog.MatchEntry)

	var g errgroup.Group
	for i := 0; i < numWorkers; i++ {
		workerID := i
		g.Go(func() error {
			wp.worker(ctx, workerID, job, queue, sink)
			return nil
		})
	}

	next := 0
dispatch:
	for ; next < n; next++ {
		select {
		case queue <- job.Entries[next]:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(queue)
	_ = g.Wait()

	if next < n {
		log.Warn().
			Str("competitor", job.Competitor).
			Int("skipped", n-next).
			Msg("Run cancelled before all entries were dispatched")

		for _, entry := range job.Entries[next:] {
			sink.Append(results.Failure{
				OurSKU:     entry.OurSKU,
				Brand:      job.Brand,
				URL:        entry.CompetitorURL,
				RequestURL: entry.CompetitorURL,
				Kind:       results.KindCancelled,
				Reason:     ctx.Err().Error(),
			})
		}
	}

	return ctx.Err()
}

func (wp *WorkerPool) worker(ctx context.Context, workerID int, job Job, queue <-chan catalog.MatchEntry, sink Sink) {
	log.Debug().Int("worker_id", workerID).Str("competitor", job.Competitor).Msg("Starting worker")

	for entry := range queue {
		sink.Append(wp.processEntry(ctx, job, entry))
	}

	log.Debug().Int("worker_id", workerID).Str("competitor", job.Competitor).Msg("Worker finished")
}

// processEntry applies the retry policy and returns the final record for entry.
func (wp *WorkerPool) processEntry(ctx context.Context, job Job, entry catalog.MatchEntry) results.Record {
	maxAttempts := wp.retry.attempts()

	for attempt := 1; ; attempt++ {
		record := wp.attempt(ctx, job, entry, attempt)

		failure, failed := record.(results.Failure)
		if !failed {
			return record
		}
		failure.Attempts = attempt

		if !failure.Retryable() || attempt >= maxAttempts || ctx.Err() != nil {
			return failure
		}

		log.Debug().
			Str("competitor", job.Competitor).
			Str("sku", entry.OurSKU).
			Int("attempt", attempt).
			Int("status", failure.StatusCode).
			Dur("delay", wp.retry.Delay).
			Msg("Retrying product page")

		if !sleepContext(ctx, wp.retry.Delay) {
			return failure
		}
	}
}

// attempt runs the extractor once. A panicking extractor still yields a record.
func (wp *WorkerPool) attempt(ctx context.Context, job Job, entry catalog.MatchEntry, attempt int) (record results.Record) {
	ctx, span := observability.StartItemSpan(ctx, observability.ItemSpanInfo{
		RunID:      job.RunID,
		Competitor: job.Competitor,
		SKU:        entry.OurSKU,
		URL:        entry.CompetitorURL,
		Attempt:    attempt,
	})
	defer span.End()

	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("competitor", job.Competitor).
				Str("sku", entry.OurSKU).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Extractor panicked")
			sentry.CaptureException(fmt.Errorf("extractor panic for %s/%s: %v", job.Competitor, entry.OurSKU, r))

			record = internalFailure(job, entry, fmt.Sprintf("panic: %v", r))
		}

		metrics := observability.ItemMetrics{
			Competitor: job.Competitor,
			Status:     string(record.Status()),
			Duration:   time.Since(start),
		}
		if failure, ok := record.(results.Failure); ok {
			metrics.Kind = string(failure.Kind)
			span.SetStatus(codes.Error, string(failure.Kind))
		}
		observability.RecordItem(ctx, metrics)
	}()

	record = job.Extractor.Extract(ctx, entry.OurSKU, entry.CompetitorURL)
	if record == nil {
		record = internalFailure(job, entry, "extractor returned no record")
	}
	return record
}

func internalFailure(job Job, entry catalog.MatchEntry, reason string) results.Failure {
	return results.Failure{
		OurSKU:     entry.OurSKU,
		Brand:      job.Brand,
		URL:        entry.CompetitorURL,
		RequestURL: entry.CompetitorURL,
		Kind:       results.KindInternal,
		Reason:     reason,
	}
}

// sleepContext waits for d and reports false if ctx ended first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
