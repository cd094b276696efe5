package mocks

import (
	"io"
	"net/http"
	"strings"

	"github.com/stretchr/testify/mock"
)

// MockHTTPClient stands in for the storage client's HTTP transport.
type MockHTTPClient struct {
	mock.Mock
}

// Do returns the response configured with On("Do", ...).
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(*http.Response)
	return resp, args.Error(1)
}

// NewHTTPResponse builds a response with a string body for MockHTTPClient returns.
func NewHTTPResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
