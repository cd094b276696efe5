package mocks

import (
	"context"

	"github.com/Harvey-AU/competitor-prices/internal/crawler"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the page fetcher
type MockFetcher struct {
	mock.Mock
}

// Fetch mocks the Fetch method
func (m *MockFetcher) Fetch(ctx context.Context, url string) (*crawler.Page, error) {
	args := m.Called(ctx, url)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*crawler.Page), args.Error(1)
}
