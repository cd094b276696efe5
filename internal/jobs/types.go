package jobs

import (
	"time"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/Harvey-AU/competitor-prices/internal/competitor"
)

// RetryPolicy controls repeat attempts for retryable failures
// (transport errors, HTTP 429 and 5xx). MaxAttempts of 1 disables retries.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy records a failure after the first attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 1,
		Delay:       30 * time.Second,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Job is one competitor's batch of entries.
type Job struct {
	RunID      string
	Competitor string
	Brand      string
	Entries    []catalog.MatchEntry
	Extractor  competitor.Extractor
}

// ManagerConfig tunes a multi-competitor run.
type ManagerConfig struct {
	// CompetitorDelay separates consecutive competitor runs.
	CompetitorDelay time.Duration
	// FailureAlertRatio reports a run to Sentry when its failure share exceeds it. 0 disables.
	FailureAlertRatio float64
	// PreviewRows is how many rows of each table are logged at debug level.
	PreviewRows int
}

// DefaultManagerConfig returns the production settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		CompetitorDelay:   3 * time.Second,
		FailureAlertRatio: 0.5,
		PreviewRows:       5,
	}
}
