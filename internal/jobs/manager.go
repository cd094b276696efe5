package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/Harvey-AU/competitor-prices/internal/competitor"
	"github.com/Harvey-AU/competitor-prices/internal/observability"
	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager runs competitor pipelines one after another and publishes their tables.
type Manager struct {
	loader       catalog.Loader
	pool         *WorkerPool
	newExtractor ExtractorFactory
	config       ManagerConfig
	publishers   []ResultPublisher
	notifiers    []RunNotifier
}

// NewManager creates a manager. Publishers receive every finished table.
func NewManager(loader catalog.Loader, pool *WorkerPool, newExtractor ExtractorFactory, config ManagerConfig, publishers ...ResultPublisher) *Manager {
	return &Manager{
		loader:       loader,
		pool:         pool,
		newExtractor: newExtractor,
		config:       config,
		publishers:   publishers,
	}
}

// AddNotifier registers a notifier for whole-run reports.
func (m *Manager) AddNotifier(n RunNotifier) {
	m.notifiers = append(m.notifiers, n)
}

// RunCompetitor loads, scrapes and aggregates one competitor. The returned table
// has one record per loaded entry, even when ctx is cancelled part way.
func (m *Manager) RunCompetitor(ctx context.Context, runID, competitorID string) (*results.Table, error) {
	span := sentry.StartSpan(ctx, "manager.run_competitor")
	defer span.Finish()
	span.SetTag("competitor", competitorID)

	site, err := competitor.Lookup(competitorID)
	if err != nil {
		return nil, err
	}

	entries, err := m.loader.Load(span.Context(), site.ID)
	if err != nil {
		span.SetTag("error", "true")
		return nil, fmt.Errorf("load catalogue for %s: %w", site.ID, err)
	}

	aggregator := results.NewAggregator(site.ID, site.Brand, len(entries))
	job := Job{
		RunID:      runID,
		Competitor: site.ID,
		Brand:      site.Brand,
		Entries:    entries,
		Extractor:  m.newExtractor(site),
	}

	runErr := m.pool.Run(span.Context(), job, aggregator)
	table := aggregator.Finalize()
	summary := table.Summary()

	log.Info().
		Str("run_id", runID).
		Str("competitor", site.ID).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("duration", summary.Duration).
		Msg("Competitor scrape finished")

	m.logPreview(table)
	m.alertOnFailures(runID, summary)
	observability.RecordRun(ctx, site.ID, runErr != nil)

	if runErr != nil {
		return table, fmt.Errorf("scrape %s: %w", site.ID, runErr)
	}
	return table, nil
}

// RunAll runs each competitor in order with the configured delay between them.
// A competitor whose catalogue cannot be loaded is skipped; the others still run.
func (m *Manager) RunAll(ctx context.Context, competitorIDs []string) (*results.RunReport, error) {
	report := &results.RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Errors:    make(map[string]error),
	}

	log.Info().
		Str("run_id", report.RunID).
		Strs("competitors", competitorIDs).
		Int("worker_limit", m.pool.WorkerLimit()).
		Msg("Starting scrape run")

	var errs []error
	for i, id := range competitorIDs {
		if i > 0 && !sleepContext(ctx, m.config.CompetitorDelay) {
			break
		}

		log.Info().Str("run_id", report.RunID).Str("competitor", id).Msg("Scraping competitor")

		table, err := m.RunCompetitor(ctx, report.RunID, id)
		if table != nil {
			report.Tables = append(report.Tables, table)
			m.publish(ctx, report.RunID, table)
		}
		if err != nil {
			log.Error().Err(err).Str("run_id", report.RunID).Str("competitor", id).Msg("Competitor scrape failed")
			sentry.CaptureException(err)
			report.Errors[id] = err
			errs = append(errs, err)
		}
		if ctx.Err() != nil {
			break
		}
	}

	report.FinishedAt = time.Now().UTC()
	m.notify(ctx, report)

	totals := report.Totals()
	log.Info().
		Str("run_id", report.RunID).
		Int("competitors", len(report.Tables)).
		Int("total", totals.Total).
		Int("failed", totals.Failed).
		Dur("duration", totals.Duration).
		Msg("Scrape run finished")

	return report, errors.Join(errs...)
}

// publish hands a table to every publisher. Publisher errors never alter the table.
func (m *Manager) publish(ctx context.Context, runID string, table *results.Table) {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, runID, table); err != nil {
			log.Error().
				Err(err).
				Str("publisher", p.Name()).
				Str("competitor", table.Competitor).
				Msg("Failed to publish results")
			sentry.CaptureException(fmt.Errorf("publish %s to %s: %w", table.Competitor, p.Name(), err))
		}
	}
}

func (m *Manager) notify(ctx context.Context, report *results.RunReport) {
	for _, n := range m.notifiers {
		if err := n.NotifyRun(ctx, report); err != nil {
			log.Warn().Err(err).Str("run_id", report.RunID).Msg("Failed to send run notification")
		}
	}
}

func (m *Manager) logPreview(table *results.Table) {
	if m.config.PreviewRows <= 0 {
		return
	}

	rows := table.Rows()
	if len(rows) > m.config.PreviewRows {
		rows = rows[:m.config.PreviewRows]
	}
	for i, row := range rows {
		log.Debug().
			Str("competitor", table.Competitor).
			Int("row", i).
			Str("values", strings.Join(row, " | ")).
			Msg("Result preview")
	}
}

func (m *Manager) alertOnFailures(runID string, summary results.Summary) {
	if m.config.FailureAlertRatio <= 0 || summary.Total == 0 || summary.FailureRatio() <= m.config.FailureAlertRatio {
		return
	}

	byKind := make(map[string]any, len(summary.ByKind))
	for k, v := range summary.ByKind {
		byKind[string(k)] = v
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		scope.SetTag("event_type", "high_failure_ratio")
		scope.SetTag("competitor", summary.Competitor)
		scope.SetContext("scrape_run", map[string]any{
			"run_id":    runID,
			"total":     summary.Total,
			"failed":    summary.Failed,
			"ratio":     summary.FailureRatio(),
			"by_kind":   byKind,
			"threshold": m.config.FailureAlertRatio,
		})
		sentry.CaptureMessage(fmt.Sprintf("High failure ratio scraping %s", summary.Competitor))
	})
}
