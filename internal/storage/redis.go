package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	pricesKeyPrefix = "prices:"
	latestRunPrefix = "latest_run:"
)

// LatestPrice is the cached value for one of our SKUs at one competitor.
type LatestPrice struct {
	Price         float64   `json:"price"`
	ArticleNumber string    `json:"competitor_sku"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	RunID         string    `json:"run_id"`
	ScrapedAt     time.Time `json:"scraped_at"`
}

// PriceCache keeps the most recent successful price per SKU in a Redis hash
// (prices:<competitor>). Failed records leave the previous price in place.
type PriceCache struct {
	client redis.Cmdable
}

// NewPriceCache creates a cache backed by client.
func NewPriceCache(client redis.Cmdable) *PriceCache {
	return &PriceCache{client: client}
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to connect to Redis at %s: %w", addr, err)
	}
	return client, nil
}

// Name identifies the cache as a result publisher.
func (c *PriceCache) Name() string { return "redis" }

// Publish writes every Product in table and records runID as the competitor's latest run.
func (c *PriceCache) Publish(ctx context.Context, runID string, table *results.Table) error {
	values, err := latestPrices(runID, table)
	if err != nil {
		return err
	}

	competitor := strings.ToLower(table.Competitor)
	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(values) > 0 {
			pipe.HSet(ctx, pricesKeyPrefix+competitor, values)
		}
		pipe.Set(ctx, latestRunPrefix+competitor, runID, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to cache prices for %s: %w", competitor, err)
	}

	log.Debug().
		Str("competitor", competitor).
		Int("prices", len(values)).
		Msg("Cached latest prices")

	return nil
}

// Get returns the cached price for sku, or false when none is stored.
func (c *PriceCache) Get(ctx context.Context, competitor, sku string) (LatestPrice, bool, error) {
	raw, err := c.client.HGet(ctx, pricesKeyPrefix+strings.ToLower(competitor), sku).Result()
	if errors.Is(err, redis.Nil) {
		return LatestPrice{}, false, nil
	}
	if err != nil {
		return LatestPrice{}, false, err
	}

	var price LatestPrice
	if err := json.Unmarshal([]byte(raw), &price); err != nil {
		return LatestPrice{}, false, fmt.Errorf("decode cached price %s/%s: %w", competitor, sku, err)
	}
	return price, true, nil
}

// latestPrices encodes the products of a table as hash field values keyed by SKU.
func latestPrices(runID string, table *results.Table) (map[string]any, error) {
	scrapedAt := table.FinishedAt
	if scrapedAt.IsZero() {
		scrapedAt = time.Now().UTC()
	}

	values := make(map[string]any)
	for _, p := range table.Products() {
		encoded, err := json.Marshal(LatestPrice{
			Price:         p.Price,
			ArticleNumber: p.ArticleNumber,
			Name:          p.Name,
			URL:           p.URL,
			RunID:         runID,
			ScrapedAt:     scrapedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("encode price for %s: %w", p.OurSKU, err)
		}
		values[p.OurSKU] = string(encoded)
	}
	return values, nil
}
