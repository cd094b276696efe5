package results

import (
	"fmt"
	"net/http"
)

// Status discriminates the two record variants.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// FailureKind classifies why a product page did not produce a Product.
type FailureKind string

const (
	KindTransport    FailureKind = "transport"
	KindHTTPStatus   FailureKind = "http_status"
	KindSelectorMiss FailureKind = "selector_miss"
	KindPriceParse   FailureKind = "price_parse"
	KindCancelled    FailureKind = "cancelled"
	KindInternal     FailureKind = "internal"
)

// Record is one normalized outcome for a MatchEntry. It is either a Product or a Failure.
type Record interface {
	SKU() string
	Status() Status
	SourceURL() string
	isRecord()
}

// Product is a successfully extracted competitor product page.
type Product struct {
	OurSKU        string  `json:"sku"`
	ArticleNumber string  `json:"competitor_sku"`
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	MainCategory  string  `json:"main_category"`
	SubCategory   string  `json:"sub_category"`
	Price         float64 `json:"price"`
	URL           string  `json:"url"`
}

func (p Product) SKU() string       { return p.OurSKU }
func (p Product) Status() Status    { return StatusOK }
func (p Product) SourceURL() string { return p.URL }
func (Product) isRecord()           {}

// Failure records a product page that could not be fetched or extracted.
// StatusCode is 0 when no HTTP response was received. URL is the final URL
// after redirects when one was observed; RequestURL is the catalogue URL.
type Failure struct {
	OurSKU     string      `json:"sku"`
	Brand      string      `json:"brand"`
	StatusCode int         `json:"status_code"`
	URL        string      `json:"url"`
	RequestURL string      `json:"request_url,omitempty"`
	Kind       FailureKind `json:"kind"`
	Reason     string      `json:"reason,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
}

func (f Failure) SKU() string       { return f.OurSKU }
func (f Failure) Status() Status    { return StatusFailed }
func (f Failure) SourceURL() string { return f.URL }
func (Failure) isRecord()           {}

// Retryable reports whether another attempt could plausibly succeed.
func (f Failure) Retryable() bool {
	switch f.Kind {
	case KindTransport:
		return true
	case KindHTTPStatus:
		return f.StatusCode == http.StatusTooManyRequests || f.StatusCode >= 500
	default:
		return false
	}
}

// StatusText renders the status code the way the legacy sheet did: the number, or empty.
func (f Failure) StatusText() string {
	if f.StatusCode == 0 {
		return ""
	}
	return fmt.Sprintf("%d", f.StatusCode)
}
