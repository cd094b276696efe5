package competitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Harvey-AU/competitor-prices/internal/crawler"
	"github.com/Harvey-AU/competitor-prices/internal/results"
)

var (
	// ErrSelectorMiss is returned when a required element is absent from the page.
	ErrSelectorMiss = errors.New("selector matched nothing")
	// ErrMissingCategory is returned when the product URL lacks a category segment.
	ErrMissingCategory = errors.New("category segment missing from URL")
	// ErrHTTPStatus is returned for a non-2xx product page.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// ExtractError carries the failure kind and whatever status code was observed.
type ExtractError struct {
	Kind       results.FailureKind
	StatusCode int
	URL        string
	Err        error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s %s (status %d): %v", e.Kind, e.URL, e.StatusCode, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}

// classify maps any error from fetching or extracting to an ExtractError.
func classify(ctx context.Context, url string, err error) *ExtractError {
	var extractErr *ExtractError
	if errors.As(err, &extractErr) {
		return extractErr
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return &ExtractError{Kind: results.KindCancelled, URL: url, Err: err}
	}

	var fetchErr *crawler.FetchError
	if errors.As(err, &fetchErr) {
		observed := url
		if fetchErr.FinalURL != "" {
			observed = fetchErr.FinalURL
		}
		return &ExtractError{Kind: results.KindTransport, StatusCode: fetchErr.StatusCode, URL: observed, Err: err}
	}

	return &ExtractError{Kind: results.KindTransport, URL: url, Err: err}
}
