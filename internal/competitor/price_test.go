package competitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceDecimalComma(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "decimal_comma", input: "12,50", want: 12.50},
		{name: "thousands_and_decimal", input: "1.234,56", want: 1234.56},
		{name: "millions", input: "1.234.567,89", want: 1234567.89},
		{name: "euro_sign", input: "€ 45,00", want: 45.0},
		{name: "euro_sign_no_space", input: "€45,00", want: 45.0},
		{name: "non_breaking_space", input: "€\u00a0299,95", want: 299.95},
		{name: "surrounding_whitespace", input: "\n   89,99 \t", want: 89.99},
		{name: "plain_integer", input: "250", want: 250},
		{name: "dot_decimal", input: "12.50", want: 12.5},
		{name: "dot_thousands", input: "1.234", want: 1234},
		{name: "eur_prefix", input: "EUR 19,95", want: 19.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestParsePriceHyphenWholeNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{name: "trailing_hyphen", input: "99-", want: 99.0},
		{name: "comma_hyphen", input: "99,-", want: 99.0},
		{name: "thousands_comma_hyphen", input: "1.299,-", want: 1299.0},
		{name: "euro_comma_hyphen", input: "€ 1.299,-", want: 1299.0},
		{name: "spaced_comma_hyphen", input: " 49 ,- ", want: 49.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePrice(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePriceInvalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"-",
		",-",
		"Prijs op aanvraag",
		"12,50,00",
		"NaN",
		"Inf",
		"1e5",
		"12.5x",
		"-12,50x",
		"abc-",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := ParsePrice(input)
			assert.ErrorIs(t, err, ErrInvalidPrice)
		})
	}
}
