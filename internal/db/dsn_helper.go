package db

import (
	"fmt"
	"net/url"
	"strings"
)

const applicationName = "competitor-prices"

// AugmentDSN adds statement_timeout and application_name to a DSN when they are
// not already present. Supports both URL format (postgresql://...) and key=value format.
func AugmentDSN(dsn string, timeoutMs int, appName string) string {
	if dsn == "" {
		return dsn
	}

	if timeoutMs <= 0 {
		timeoutMs = 60000
	}

	params := []struct{ key, value string }{
		{"statement_timeout", fmt.Sprintf("%d", timeoutMs)},
		{"application_name", appName},
	}

	isURL := strings.HasPrefix(dsn, "postgresql://") || strings.HasPrefix(dsn, "postgres://")
	for _, p := range params {
		if p.value == "" || strings.Contains(dsn, p.key+"=") {
			continue
		}

		if isURL {
			separator := "?"
			if strings.Contains(dsn, "?") {
				separator = "&"
			}
			dsn += separator + p.key + "=" + url.QueryEscape(p.value)
			continue
		}

		dsn += " " + p.key + "=" + p.value
	}

	return dsn
}
