package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseDomain(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with_https",
			input:    "https://maxaro.nl",
			expected: "maxaro.nl",
		},
		{
			name:     "with_www",
			input:    "www.x2o.nl",
			expected: "x2o.nl",
		},
		{
			name:     "with_all_prefixes",
			input:    "https://www.Tegeldepot.nl/",
			expected: "tegeldepot.nl",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormaliseDomain(tt.input))
		})
	}
}

func TestNormaliseURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "already_absolute",
			input:    "https://comp.example/cat/sub/p/123",
			expected: "https://comp.example/cat/sub/p/123",
		},
		{
			name:     "keeps_http",
			input:    "http://127.0.0.1:8080/cat/sub",
			expected: "http://127.0.0.1:8080/cat/sub",
		},
		{
			name:     "adds_scheme",
			input:    "  comp.example/cat/sub  ",
			expected: "https://comp.example/cat/sub",
		},
		{
			name:     "empty",
			input:    "   ",
			expected: "",
		},
		{
			name:     "embedded_scheme",
			input:    "https://http://comp.example/cat",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormaliseURL(tt.input))
		})
	}
}

func TestPathSegment(t *testing.T) {
	const productURL = "https://comp.example/cat/sub/p/123"

	tests := []struct {
		name   string
		url    string
		index  int
		want   string
		wantOK bool
	}{
		{name: "main_category", url: productURL, index: 3, want: "cat", wantOK: true},
		{name: "sub_category", url: productURL, index: 4, want: "sub", wantOK: true},
		{name: "host", url: productURL, index: 2, want: "comp.example", wantOK: true},
		{name: "out_of_range", url: "https://comp.example/cat", index: 4, wantOK: false},
		{name: "empty_segment", url: "https://comp.example//sub", index: 3, wantOK: false},
		{name: "negative", url: productURL, index: -1, wantOK: false},
		{name: "strips_query", url: "https://comp.example/cat?ref=1", index: 3, want: "cat", wantOK: true},
		{name: "decodes_escapes", url: "https://comp.example/bad%20kamer/sub", index: 3, want: "bad kamer", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PathSegment(tt.url, tt.index)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSameHost(t *testing.T) {
	assert.True(t, SameHost("https://www.maxaro.nl/a", "https://maxaro.nl/b"))
	assert.False(t, SameHost("https://maxaro.nl/a", "https://x2o.nl/a"))
	assert.False(t, SameHost("://bad", "https://x2o.nl"))
}
