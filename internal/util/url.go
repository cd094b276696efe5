package util

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// NormaliseDomain removes http/https prefix and www. from domain
func NormaliseDomain(domain string) string {
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "www.")
	domain = strings.TrimSuffix(domain, "/")

	return strings.ToLower(domain)
}

// NormaliseURL trims a catalogue URL and adds https:// when no scheme is present.
// Returns "" when the result is not an absolute URL.
func NormaliseURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		rawURL = "https://" + rawURL
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" {
		log.Debug().Str("url", rawURL).Err(err).Msg("Invalid URL format")
		return ""
	}

	// Ensure no duplicate schemes (like https://http://example.com)
	if strings.Contains(parsedURL.Host, "://") || strings.HasSuffix(parsedURL.Host, ":") {
		log.Debug().Str("url", rawURL).Msg("URL contains embedded scheme in host part")
		return ""
	}

	return rawURL
}

// PathSegment returns the index-th element of rawURL split on "/".
// For "https://shop.example/cat/sub/p/1", index 3 is "cat" and index 4 is "sub".
// The second return is false when the segment is missing or empty.
func PathSegment(rawURL string, index int) (string, bool) {
	if index < 0 {
		return "", false
	}

	parts := strings.Split(rawURL, "/")
	if index >= len(parts) {
		return "", false
	}

	segment := parts[index]
	if i := strings.IndexAny(segment, "?#"); i >= 0 {
		segment = segment[:i]
	}
	if segment == "" {
		return "", false
	}

	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	return segment, true
}

// SameHost reports whether both URLs point at the same host, ignoring www. and case.
func SameHost(a, b string) bool {
	pa, errA := url.Parse(a)
	pb, errB := url.Parse(b)
	if errA != nil || errB != nil {
		return false
	}
	return NormaliseDomain(pa.Host) == NormaliseDomain(pb.Host)
}
