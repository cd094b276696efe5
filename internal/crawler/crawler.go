package crawler

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"sync"
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/observability"
	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Crawler fetches single product pages. It is safe for concurrent use.
type Crawler struct {
	config     *Config
	colly      *colly.Collector
	limiter    *rate.Limiter
	id         string
	metricsMap *sync.Map
}

// GetUserAgent returns the user agent string for this crawler
func (c *Crawler) GetUserAgent() string {
	return c.config.UserAgent
}

// tracingRoundTripper captures HTTP trace metrics for each request
type tracingRoundTripper struct {
	transport  http.RoundTripper
	metricsMap *sync.Map // Maps URL -> *PerformanceMetrics
}

// RoundTrip implements the http.RoundTripper interface with httptrace instrumentation
func (t *tracingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	metrics := &PerformanceMetrics{}

	var dnsStartTime, connectStartTime, tlsStartTime time.Time
	requestStartTime := time.Now()

	trace := &httptrace.ClientTrace{
		DNSStart: func(info httptrace.DNSStartInfo) {
			dnsStartTime = time.Now()
		},
		DNSDone: func(info httptrace.DNSDoneInfo) {
			if !dnsStartTime.IsZero() {
				metrics.DNSLookupTime = time.Since(dnsStartTime).Milliseconds()
			}
		},
		ConnectStart: func(network, addr string) {
			connectStartTime = time.Now()
		},
		ConnectDone: func(network, addr string, err error) {
			if err == nil && !connectStartTime.IsZero() {
				metrics.TCPConnectionTime = time.Since(connectStartTime).Milliseconds()
			}
		},
		TLSHandshakeStart: func() {
			tlsStartTime = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err == nil && !tlsStartTime.IsZero() {
				metrics.TLSHandshakeTime = time.Since(tlsStartTime).Milliseconds()
			}
		},
		GotFirstResponseByte: func() {
			metrics.TTFB = time.Since(requestStartTime).Milliseconds()
		},
	}

	t.metricsMap.Store(req.URL.String(), metrics)

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	return t.transport.RoundTrip(req)
}

// New creates a new Crawler instance with the given configuration and optional ID
// If config is nil, default configuration is used
func New(config *Config, id ...string) *Crawler {
	if config == nil {
		config = DefaultConfig()
	}

	crawlerID := ""
	if len(id) > 0 {
		crawlerID = id[0]
	}

	c := colly.NewCollector(
		colly.UserAgent(config.UserAgent),
		colly.MaxDepth(1),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(config.MaxBodySize),
	)

	if config.MaxConcurrency > 0 {
		if err := c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Parallelism: config.MaxConcurrency,
		}); err != nil {
			log.Warn().Err(err).Msg("Failed to apply crawler concurrency limit")
		}
	}

	metricsMap := &sync.Map{}

	baseTransport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 25,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	httpClient := &http.Client{
		Timeout: config.DefaultTimeout,
		Transport: &tracingRoundTripper{
			transport:  observability.WrapTransport(baseTransport),
			metricsMap: metricsMap,
		},
	}
	c.SetClient(httpClient)
	// Every fetch starts without session state
	c.DisableCookies()

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &Crawler{
		config:     config,
		colly:      c,
		limiter:    limiter,
		id:         crawlerID,
		metricsMap: metricsMap,
	}
}

// setupRequestHeaders adds browser-like headers. Clones do not inherit callbacks,
// so this is registered on every clone.
func (c *Crawler) setupRequestHeaders(collector *colly.Collector) {
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		if c.config.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", c.config.AcceptLanguage)
		}

		log.Debug().
			Str("url", r.URL.String()).
			Str("crawler_id", c.id).
			Msg("Crawler sending request")
	})
}

// validateFetchRequest checks the context and URL before any network activity.
func validateFetchRequest(ctx context.Context, targetURL string) error {
	if err := ctx.Err(); err != nil {
		return &FetchError{URL: targetURL, Err: err}
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return &FetchError{URL: targetURL, Err: err}
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return &FetchError{URL: targetURL, Err: fmt.Errorf("invalid URL format: %s", targetURL)}
	}

	return nil
}

// Fetch performs a single GET and returns the response, whatever its status.
// A *FetchError is returned when no response was received.
func (c *Crawler) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	if err := validateFetchRequest(ctx, targetURL); err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &FetchError{URL: targetURL, Err: err}
		}
	}

	start := time.Now()
	page := &Page{URL: targetURL, FinalURL: targetURL}
	var fetchErr *FetchError

	collyClone := c.colly.Clone()
	collyClone.Context = ctx
	collyClone.ParseHTTPErrorResponse = true
	c.setupRequestHeaders(collyClone)

	collyClone.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")
		page.Body = r.Body
		page.ResponseTime = time.Since(start)

		if metricsVal, ok := c.metricsMap.LoadAndDelete(page.FinalURL); ok {
			page.Performance = *metricsVal.(*PerformanceMetrics)
		}
	})

	collyClone.OnError(func(r *colly.Response, err error) {
		fetchErr = &FetchError{URL: targetURL, Err: err}
		if r != nil {
			fetchErr.StatusCode = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				fetchErr.FinalURL = r.Request.URL.String()
			}
		}
	})

	done := make(chan error, 1)

	// Visit in a goroutine so the caller's context can abandon a slow request
	go func() {
		visitErr := collyClone.Visit(targetURL)
		collyClone.Wait()
		done <- visitErr
	}()

	select {
	case err := <-done:
		c.metricsMap.Delete(targetURL)
		if fetchErr != nil {
			log.Debug().
				Err(fetchErr.Err).
				Str("url", targetURL).
				Dur("duration", time.Since(start)).
				Msg("Fetch failed")
			return nil, fetchErr
		}
		if err != nil {
			return nil, &FetchError{URL: targetURL, Err: err}
		}
		if page.StatusCode == 0 {
			return nil, &FetchError{URL: targetURL, Err: fmt.Errorf("no response received")}
		}
	case <-ctx.Done():
		log.Debug().
			Err(ctx.Err()).
			Str("url", targetURL).
			Msg("Fetch cancelled due to context")
		return nil, &FetchError{URL: targetURL, Err: ctx.Err()}
	}

	log.Debug().
		Int("status", page.StatusCode).
		Str("url", targetURL).
		Str("final_url", page.FinalURL).
		Int("bytes", len(page.Body)).
		Dur("duration", page.ResponseTime).
		Msg("Fetch completed")

	return page, nil
}

// Config returns the Crawler's configuration.
func (c *Crawler) Config() *Config {
	return c.config
}
