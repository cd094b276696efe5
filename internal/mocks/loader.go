package mocks

import (
	"context"

	"github.com/Harvey-AU/competitor-prices/internal/catalog"
	"github.com/stretchr/testify/mock"
)

// MockLoader is a mock implementation of a catalogue loader
type MockLoader struct {
	mock.Mock
}

// Load mocks the Load method
func (m *MockLoader) Load(ctx context.Context, competitor string) ([]catalog.MatchEntry, error) {
	args := m.Called(ctx, competitor)

	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]catalog.MatchEntry), args.Error(1)
}
