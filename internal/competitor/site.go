package competitor

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownCompetitor is returned by Lookup for ids not in the registry.
var ErrUnknownCompetitor = errors.New("unknown competitor")

// Site describes where a competitor keeps the fields on its product pages.
// Categories come from positional segments of the product URL split on "/".
type Site struct {
	ID                  string
	Brand               string
	BaseURL             string
	ArticleSelector     string
	NameSelector        string
	PriceSelector       string
	MainCategorySegment int
	SubCategorySegment  int
}

// Validate checks that every selector and segment is set.
func (s Site) Validate() error {
	switch {
	case s.ID == "":
		return errors.New("site id is required")
	case s.Brand == "":
		return fmt.Errorf("site %s: brand is required", s.ID)
	case s.ArticleSelector == "" || s.NameSelector == "" || s.PriceSelector == "":
		return fmt.Errorf("site %s: article, name and price selectors are required", s.ID)
	case s.MainCategorySegment < 3 || s.SubCategorySegment < 3:
		return fmt.Errorf("site %s: category segments must point into the URL path", s.ID)
	}
	return nil
}

// All registered shops put the main and sub category straight after the host:
// https://host/<main>/<sub>/...
var registry = map[string]Site{
	"maxaro": {
		ID:                  "maxaro",
		Brand:               "Maxaro",
		BaseURL:             "https://www.maxaro.nl",
		ArticleSelector:     ".product-header__sub",
		NameSelector:        ".product-header__title",
		PriceSelector:       ".product-detail-pricing",
		MainCategorySegment: 3,
		SubCategorySegment:  4,
	},
	"sanitairkamer": {
		ID:                  "sanitairkamer",
		Brand:               "Sanitairkamer",
		BaseURL:             "https://www.sanitairkamer.nl",
		ArticleSelector:     ".product-info__sku",
		NameSelector:        "h1.product-info__title",
		PriceSelector:       ".product-info__price .price",
		MainCategorySegment: 3,
		SubCategorySegment:  4,
	},
	"tegeldepot": {
		ID:                  "tegeldepot",
		Brand:               "Tegeldepot",
		BaseURL:             "https://www.tegeldepot.nl",
		ArticleSelector:     ".product-sku .value",
		NameSelector:        "h1.page-title",
		PriceSelector:       ".product-info-price .price",
		MainCategorySegment: 3,
		SubCategorySegment:  4,
	},
	"x2o": {
		ID:                  "x2o",
		Brand:               "X2O",
		BaseURL:             "https://www.x2o.nl",
		ArticleSelector:     ".product-detail__article-number",
		NameSelector:        "h1.product-detail__title",
		PriceSelector:       ".product-detail__price",
		MainCategorySegment: 3,
		SubCategorySegment:  4,
	},
}

// DefaultOrder is the order competitors run in when none are configured.
var DefaultOrder = []string{"maxaro", "sanitairkamer", "tegeldepot", "x2o"}

// Lookup returns the registered site for id, ignoring case and surrounding space.
func Lookup(id string) (Site, error) {
	site, ok := registry[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Site{}, fmt.Errorf("%w: %q", ErrUnknownCompetitor, id)
	}
	return site, nil
}

// IDs lists every registered competitor id in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ParseIDs splits a comma-separated competitor list and checks each against the registry.
// An empty list yields DefaultOrder.
func ParseIDs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return append([]string(nil), DefaultOrder...), nil
	}

	var ids []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" || seen[part] {
			continue
		}
		if _, err := Lookup(part); err != nil {
			return nil, err
		}
		seen[part] = true
		ids = append(ids, part)
	}
	return ids, nil
}
