package crawler

import (
	"time"
)

// Config holds the configuration for a crawler instance
type Config struct {
	DefaultTimeout time.Duration // Per-request timeout, including redirects and body read
	MaxConcurrency int           // Ceiling on in-flight requests across all workers
	RateLimit      int           // Requests per second across the crawler, 0 disables pacing
	UserAgent      string        // User agent string for requests
	AcceptLanguage string        // Accept-Language header sent with every request
	MaxBodySize    int           // Largest response body read, in bytes
}

// DefaultConfig returns a Config instance with default values
func DefaultConfig() *Config {
	return &Config{
		DefaultTimeout: 30 * time.Second,
		MaxConcurrency: 10,
		RateLimit:      0,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		AcceptLanguage: "nl-NL,nl;q=0.9,en;q=0.8",
		MaxBodySize:    10 * 1024 * 1024,
	}
}
