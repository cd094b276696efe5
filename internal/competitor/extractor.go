package competitor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/crawler"
	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/Harvey-AU/competitor-prices/internal/util"
	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

// Fetcher retrieves one page. *crawler.Crawler implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*crawler.Page, error)
}

// Extractor turns one MatchEntry into exactly one record.
type Extractor interface {
	Extract(ctx context.Context, sku, url string) results.Record
}

// ExtractorConfig tunes failure handling.
type ExtractorConfig struct {
	// Cooldown is how long the worker pauses after a failure that carried a
	// non-200 status, giving a throttling server room before the next request.
	Cooldown time.Duration
}

// DefaultExtractorConfig returns the production cooldown.
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{Cooldown: 10 * time.Second}
}

// SiteExtractor extracts product fields using a Site's selectors.
type SiteExtractor struct {
	site    Site
	fetcher Fetcher
	config  *ExtractorConfig
}

// NewSiteExtractor creates an extractor for site. A nil config uses DefaultExtractorConfig.
func NewSiteExtractor(site Site, fetcher Fetcher, config *ExtractorConfig) *SiteExtractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	return &SiteExtractor{site: site, fetcher: fetcher, config: config}
}

// Extract fetches url and returns a Product, or a Failure describing why not.
// It never returns nil.
func (e *SiteExtractor) Extract(ctx context.Context, sku, url string) results.Record {
	product, err := e.extract(ctx, sku, url)
	if err == nil {
		return product
	}

	extractErr := classify(ctx, url, err)
	failure := results.Failure{
		OurSKU:     sku,
		Brand:      e.site.Brand,
		StatusCode: extractErr.StatusCode,
		URL:        extractErr.URL,
		RequestURL: url,
		Kind:       extractErr.Kind,
		Reason:     extractErr.Err.Error(),
	}
	if failure.URL == "" {
		failure.URL = url
	}

	log.Warn().
		Err(extractErr.Err).
		Str("competitor", e.site.ID).
		Str("sku", sku).
		Str("url", url).
		Str("final_url", failure.URL).
		Int("status", failure.StatusCode).
		Str("kind", string(failure.Kind)).
		Msg("Product extraction failed")

	if failure.StatusCode != 0 && failure.StatusCode != 200 {
		e.cooldown(ctx, url)
	}

	return failure
}

func (e *SiteExtractor) extract(ctx context.Context, sku, url string) (results.Product, error) {
	page, err := e.fetcher.Fetch(ctx, url)
	if err != nil {
		return results.Product{}, err
	}

	if !page.IsSuccess() {
		return results.Product{}, &ExtractError{
			Kind:       results.KindHTTPStatus,
			StatusCode: page.StatusCode,
			URL:        page.FinalURL,
			Err:        fmt.Errorf("%w: %d", ErrHTTPStatus, page.StatusCode),
		}
	}

	if !util.SameHost(url, page.FinalURL) {
		log.Debug().
			Str("competitor", e.site.ID).
			Str("url", url).
			Str("final_url", page.FinalURL).
			Msg("Product page redirected to another host")
	}

	product, err := e.site.ParsePage(sku, url, page.Body)
	if err != nil {
		var extractErr *ExtractError
		if errors.As(err, &extractErr) {
			extractErr.StatusCode = page.StatusCode
			extractErr.URL = page.FinalURL
		}
		return results.Product{}, err
	}

	log.Debug().
		Str("competitor", e.site.ID).
		Str("sku", sku).
		Str("article", product.ArticleNumber).
		Float64("price", product.Price).
		Msg("Product extracted")

	return product, nil
}

// cooldown blocks the calling worker for the configured duration or until ctx ends.
func (e *SiteExtractor) cooldown(ctx context.Context, url string) {
	if e.config.Cooldown <= 0 {
		return
	}

	log.Debug().
		Str("competitor", e.site.ID).
		Str("url", url).
		Dur("cooldown", e.config.Cooldown).
		Msg("Cooling down after non-200 response")

	timer := time.NewTimer(e.config.Cooldown)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

// ParsePage extracts a Product from an HTML body. url is the requested product
// URL and is the source of the category segments. The result depends only on
// the inputs.
func (s Site) ParsePage(sku, url string, body []byte) (results.Product, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url, Err: fmt.Errorf("parse html: %w", err)}
	}

	article, err := selectText(doc, s.ArticleSelector)
	if err != nil {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url, Err: err}
	}

	name, err := selectText(doc, s.NameSelector)
	if err != nil {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url, Err: err}
	}

	mainCategory, ok := util.PathSegment(url, s.MainCategorySegment)
	if !ok {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url,
			Err: fmt.Errorf("%w: main category at %d", ErrMissingCategory, s.MainCategorySegment)}
	}

	subCategory, ok := util.PathSegment(url, s.SubCategorySegment)
	if !ok {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url,
			Err: fmt.Errorf("%w: sub category at %d", ErrMissingCategory, s.SubCategorySegment)}
	}

	priceText, err := selectText(doc, s.PriceSelector)
	if err != nil {
		return results.Product{}, &ExtractError{Kind: results.KindSelectorMiss, URL: url, Err: err}
	}

	price, err := ParsePrice(priceText)
	if err != nil {
		return results.Product{}, &ExtractError{Kind: results.KindPriceParse, URL: url, Err: err}
	}

	return results.Product{
		OurSKU:        sku,
		ArticleNumber: article,
		Name:          name,
		Brand:         s.Brand,
		MainCategory:  mainCategory,
		SubCategory:   subCategory,
		Price:         price,
		URL:           url,
	}, nil
}

// selectText returns the whitespace-collapsed text of the first match.
func selectText(doc *goquery.Document, selector string) (string, error) {
	sel := doc.Find(selector)
	if sel.Length() == 0 {
		return "", fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}

	text := strings.Join(strings.Fields(sel.First().Text()), " ")
	if text == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrSelectorMiss, selector)
	}
	return text, nil
}
