package domain

import "strings"

// SortKey selects the listing order. All orders are descending.
type SortKey string

const (
	SortMarketCap SortKey = "market_cap"
	SortPrice     SortKey = "price"
	SortChange24h SortKey = "change_24h"
)

// ParseSortKey maps user input to a SortKey, defaulting to market cap.
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortPrice:
		return SortPrice
	case SortChange24h:
		return SortChange24h
	default:
		return SortMarketCap
	}
}

// ViewState holds the user-controlled listing parameters.
type ViewState struct {
	SearchQuery   string   `json:"search_query"`
	SortKey       SortKey  `json:"sort_key"`
	ComparisonSet []string `json:"comparison_set"`
}

// HasComparison reports whether id is already selected for comparison.
func (v ViewState) HasComparison(id string) bool {
	for _, c := range v.ComparisonSet {
		if c == id {
			return true
		}
	}
	return false
}

// Clone returns a copy that does not share the comparison slice.
func (v ViewState) Clone() ViewState {
	v.ComparisonSet = append([]string(nil), v.ComparisonSet...)
	return v
}
