package crawler

import (
	"fmt"
	"time"
)

// PerformanceMetrics holds connection timings captured through httptrace, in milliseconds.
type PerformanceMetrics struct {
	DNSLookupTime     int64 `json:"dns_lookup_time"`
	TCPConnectionTime int64 `json:"tcp_connection_time"`
	TLSHandshakeTime  int64 `json:"tls_handshake_time"`
	TTFB              int64 `json:"ttfb"`
}

// Page is a fetched HTTP response. Non-2xx responses are still Pages;
// the caller decides what a status means.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	ContentType  string
	Body         []byte
	ResponseTime time.Duration
	Performance  PerformanceMetrics
}

// IsSuccess reports a 2xx status.
func (p *Page) IsSuccess() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// FetchError is returned when no usable HTTP response was received:
// invalid URL, DNS or connection failure, timeout or cancellation.
type FetchError struct {
	URL        string
	FinalURL   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
