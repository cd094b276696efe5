package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Load returns the match entries for one competitor from private_label_matches,
// in catalogue order. It implements catalog.Loader.
func (db *DB) Load(ctx context.Context, competitor string) ([]catalog.MatchEntry, error) {
	competitor = strings.ToLower(strings.TrimSpace(competitor))

	rows, err := db.client.QueryContext(ctx, `
		SELECT sku, url
		FROM private_label_matches
		WHERE competitor = $1
		  AND lower(trim(url)) <> ALL($2)
		ORDER BY position, sku
	`, competitor, pq.Array([]string{catalog.NoAlternative, ""}))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for %s: %w", competitor, err)
	}
	defer rows.Close()

	var entries []catalog.MatchEntry
	for rows.Next() {
		var entry catalog.MatchEntry
		if err := rows.Scan(&entry.OurSKU, &entry.CompetitorURL); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read matches for %s: %w", competitor, err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownCompetitor, competitor)
	}

	cleaned := catalog.Clean(entries)
	log.Debug().
		Str("competitor", competitor).
		Int("rows", len(entries)).
		Int("entries", len(cleaned)).
		Msg("Loaded catalogue from database")

	return cleaned, nil
}

// Snapshot reads the match rows of every competitor in one query. It
// implements catalog.Source.
func (db *DB) Snapshot(ctx context.Context) (*catalog.Snapshot, error) {
	rows, err := db.client.QueryContext(ctx, `
		SELECT competitor, sku, url
		FROM private_label_matches
		WHERE lower(trim(url)) <> ALL($1)
		ORDER BY competitor, position, sku
	`, pq.Array([]string{catalog.NoAlternative, ""}))
	if err != nil {
		return nil, fmt.Errorf("failed to query catalogue: %w", err)
	}
	defer rows.Close()

	snapshot := catalog.NewSnapshot()
	for rows.Next() {
		var competitor string
		var entry catalog.MatchEntry
		if err := rows.Scan(&competitor, &entry.OurSKU, &entry.CompetitorURL); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		snapshot.Add(competitor, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read catalogue: %w", err)
	}

	log.Info().
		Strs("competitors", snapshot.Competitors()).
		Int("rows", snapshot.Rows()).
		Msg("Loaded catalogue from database")

	return snapshot, nil
}
