package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Execute runs fn inside a transaction, rolling back on error or panic.
func (db *DB) Execute(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.client.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Warn().Err(rbErr).Msg("Failed to roll back transaction")
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Name identifies the database as a result publisher.
func (db *DB) Name() string { return "postgres" }

// Publish stores a finished table. See SaveResults.
func (db *DB) Publish(ctx context.Context, runID string, table *results.Table) error {
	return db.SaveResults(ctx, runID, table)
}

// SaveResults writes every record of a table to competitor_prices in one statement.
// Re-saving the same run replaces its rows.
func (db *DB) SaveResults(ctx context.Context, runID string, table *results.Table) error {
	if table == nil || len(table.Records) == 0 {
		return nil
	}

	records := uniqueBySKU(table)
	n := len(records)
	skus := make([]string, n)
	statuses := make([]string, n)
	competitorSKUs := make([]string, n)
	names := make([]string, n)
	brands := make([]string, n)
	mainCategories := make([]string, n)
	subCategories := make([]string, n)
	prices := make([]float64, n)
	urls := make([]string, n)
	statusCodes := make([]int, n)
	kinds := make([]string, n)
	reasons := make([]string, n)

	for i, record := range records {
		skus[i] = record.SKU()
		statuses[i] = string(record.Status())
		urls[i] = record.SourceURL()

		switch r := record.(type) {
		case results.Product:
			competitorSKUs[i] = r.ArticleNumber
			names[i] = r.Name
			brands[i] = r.Brand
			mainCategories[i] = r.MainCategory
			subCategories[i] = r.SubCategory
			prices[i] = r.Price
			statusCodes[i] = 200
		case results.Failure:
			brands[i] = r.Brand
			statusCodes[i] = r.StatusCode
			kinds[i] = string(r.Kind)
			reasons[i] = r.Reason
		}
	}

	scrapedAt := table.FinishedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO competitor_prices (
			run_id, competitor, sku, status, competitor_sku, name, brand,
			main_category, sub_category, price, url, status_code, failure_kind, reason, scraped_at
		)
		SELECT
			$1, $2, r.sku, r.status,
			NULLIF(r.competitor_sku, ''), NULLIF(r.name, ''), NULLIF(r.brand, ''),
			NULLIF(r.main_category, ''), NULLIF(r.sub_category, ''),
			CASE WHEN r.status = 'ok' THEN r.price END,
			r.url, NULLIF(r.status_code, 0), NULLIF(r.kind, ''), NULLIF(r.reason, ''), $3
		FROM (
			SELECT
				unnest($4::text[]) AS sku,
				unnest($5::text[]) AS status,
				unnest($6::text[]) AS competitor_sku,
				unnest($7::text[]) AS name,
				unnest($8::text[]) AS brand,
				unnest($9::text[]) AS main_category,
				unnest($10::text[]) AS sub_category,
				unnest($11::numeric[]) AS price,
				unnest($12::text[]) AS url,
				unnest($13::integer[]) AS status_code,
				unnest($14::text[]) AS kind,
				unnest($15::text[]) AS reason
		) AS r
		ON CONFLICT (run_id, competitor, sku) DO UPDATE SET
			status = EXCLUDED.status,
			competitor_sku = EXCLUDED.competitor_sku,
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			main_category = EXCLUDED.main_category,
			sub_category = EXCLUDED.sub_category,
			price = EXCLUDED.price,
			url = EXCLUDED.url,
			status_code = EXCLUDED.status_code,
			failure_kind = EXCLUDED.failure_kind,
			reason = EXCLUDED.reason,
			scraped_at = EXCLUDED.scraped_at
	`

	return db.Execute(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, query,
			runID,
			table.Competitor,
			scrapedAt,
			pq.Array(skus),
			pq.Array(statuses),
			pq.Array(competitorSKUs),
			pq.Array(names),
			pq.Array(brands),
			pq.Array(mainCategories),
			pq.Array(subCategories),
			pq.Array(prices),
			pq.Array(urls),
			pq.Array(statusCodes),
			pq.Array(kinds),
			pq.Array(reasons),
		)
		if err != nil {
			return fmt.Errorf("failed to save results for %s: %w", table.Competitor, err)
		}

		rowsAffected, _ := result.RowsAffected()
		log.Debug().
			Str("run_id", runID).
			Str("competitor", table.Competitor).
			Int("records", n).
			Int64("rows_affected", rowsAffected).
			Msg("Saved competitor results")

		return nil
	})
}

// uniqueBySKU keeps the first record per SKU. One statement cannot upsert the
// same conflict key twice, so a repeated SKU would fail the whole table.
func uniqueBySKU(table *results.Table) []results.Record {
	seen := make(map[string]struct{}, len(table.Records))
	records := make([]results.Record, 0, len(table.Records))
	for _, record := range table.Records {
		if _, dup := seen[record.SKU()]; dup {
			log.Warn().
				Str("competitor", table.Competitor).
				Str("sku", record.SKU()).
				Msg("Skipping repeated SKU when saving results")
			continue
		}
		seen[record.SKU()] = struct{}{}
		records = append(records, record)
	}
	return records
}
