package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"connection_exception", &pq.Error{Code: "08006"}, true},
		{"too_many_connections", &pq.Error{Code: "53300"}, true},
		{"admin_shutdown", &pq.Error{Code: "57P01"}, true},
		{"bad_password", &pq.Error{Code: "28P01"}, false},
		{"missing_database", &pq.Error{Code: "3D000"}, false},
		{"connection_refused", errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), true},
		{"starting_up", errors.New("FATAL: the database system is starting up"), true},
		{"deadline", context.DeadlineExceeded, true},
		{"config_error", errors.New("database host is required"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryableError(tt.err))
		})
	}
}

func TestConnectWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	connect := func(*Config) (*DB, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return &DB{}, nil
	}

	db, err := ConnectWithRetry(context.Background(), &Config{}, fastRetry(5), connect)
	require.NoError(t, err)
	assert.NotNil(t, db)
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetryFailsFastOnConfigErrors(t *testing.T) {
	calls := 0
	connect := func(*Config) (*DB, error) {
		calls++
		return nil, &pq.Error{Code: "28P01", Message: "password authentication failed"}
	}

	_, err := ConnectWithRetry(context.Background(), &Config{}, fastRetry(5), connect)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestConnectWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	connect := func(*Config) (*DB, error) {
		calls++
		return nil, errors.New("connection reset by peer")
	}

	_, err := ConnectWithRetry(context.Background(), &Config{}, fastRetry(3), connect)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestConnectWithRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	config := fastRetry(5)
	config.InitialInterval = time.Minute

	_, err := ConnectWithRetry(ctx, &Config{}, config, func(*Config) (*DB, error) {
		return nil, errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
}
