package mocks

import (
	"context"

	"github.com/Harvey-AU/competitor-prices/internal/results"
	"github.com/stretchr/testify/mock"
)

// MockExtractor is a mock implementation of a competitor extractor
type MockExtractor struct {
	mock.Mock
}

// Extract mocks the Extract method
func (m *MockExtractor) Extract(ctx context.Context, sku, url string) results.Record {
	args := m.Called(ctx, sku, url)

	if args.Get(0) == nil {
		return nil
	}

	return args.Get(0).(results.Record)
}

// MockPublisher is a mock implementation of a result publisher
type MockPublisher struct {
	mock.Mock
}

// Name mocks the Name method
func (m *MockPublisher) Name() string {
	args := m.Called()
	return args.String(0)
}

// Publish mocks the Publish method
func (m *MockPublisher) Publish(ctx context.Context, runID string, table *results.Table) error {
	args := m.Called(ctx, runID, table)
	return args.Error(0)
}
