package competitor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPrice is returned when price text cannot be reduced to a number.
var ErrInvalidPrice = errors.New("invalid price")

var priceNoise = strings.NewReplacer(" ", "", "\u00a0", "", "€", "", "EUR", "", "eur", "")

// ParsePrice converts Dutch storefront price text to a float.
//
// Text containing a hyphen is a whole-number display ("99-", "1.299,-"): the
// hyphen and both separators are stripped. Otherwise a comma is the decimal
// separator and dots group thousands ("12,50", "1.234,56"). Without a comma, a
// dot only counts as a thousands separator when every group after it has three
// digits, so "12.50" stays 12.5 and "1.234" becomes 1234.
func ParsePrice(raw string) (float64, error) {
	s := priceNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidPrice)
	}

	if strings.Contains(s, "-") {
		s = strings.NewReplacer("-", "", ".", "", ",", "").Replace(s)
		if !isDigits(s) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
		}
		return parseDecimal(s, raw)
	}

	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		if strings.Count(s, ",") > 1 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
		}
		s = strings.Replace(s, ",", ".", 1)
	case strings.Contains(s, ".") && dotsGroupThousands(s):
		s = strings.ReplaceAll(s, ".", "")
	}

	return parseDecimal(s, raw)
}

func parseDecimal(s, raw string) (float64, error) {
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if !isDigits(intPart) || (hasFrac && !isDigits(fracPart)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPrice, raw)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidPrice, raw, err)
	}
	return v, nil
}

func dotsGroupThousands(s string) bool {
	groups := strings.Split(s, ".")
	if groups[0] == "" || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
