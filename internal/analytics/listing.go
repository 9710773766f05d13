// Package analytics holds the pure view derivations over a market snapshot.
// Nothing here performs I/O or reads shared state.
package analytics

import (
	"math"
	"sort"

	"crypto_dash/internal/domain"
)

// DefaultMoversCount is the size of the gainers and losers lists.
const DefaultMoversCount = 5

// ListingRow is one row of the filtered listing.
type ListingRow struct {
	Position   int          `json:"position"` // 1-based display position
	Asset      domain.Asset `json:"asset"`
	IsFavorite bool         `json:"is_favorite"`
}

// FilterAndSort filters the primary listing by the search query and orders it
// by the view's sort key, descending. favorites may be nil.
func FilterAndSort(snap *domain.MarketSnapshot, view domain.ViewState, favorites map[string]bool) []ListingRow {
	if snap == nil {
		return nil
	}

	assets := make([]domain.Asset, 0, len(snap.Assets))
	for _, a := range snap.Assets {
		if a.Matches(view.SearchQuery) {
			assets = append(assets, a)
		}
	}

	SortAssets(assets, view.SortKey)

	rows := make([]ListingRow, len(assets))
	for i, a := range assets {
		rows[i] = ListingRow{Position: i + 1, Asset: a, IsFavorite: favorites[a.ID]}
	}
	return rows
}

// SortAssets orders assets in place, descending by key. Ties keep input order.
func SortAssets(assets []domain.Asset, key domain.SortKey) {
	switch key {
	case domain.SortPrice:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].CurrentPrice.GreaterThan(assets[j].CurrentPrice)
		})
	case domain.SortChange24h:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].ChangePct24h > assets[j].ChangePct24h
		})
	default:
		sort.SliceStable(assets, func(i, j int) bool {
			return assets[i].MarketCapOrZero().GreaterThan(assets[j].MarketCapOrZero())
		})
	}
}

// Movers holds the top gainers and losers by 24h change.
type Movers struct {
	Gainers []domain.Asset `json:"gainers"`
	Losers  []domain.Asset `json:"losers"`
}

// TopMovers returns the n best and n worst 24h performers of the universe.
// Each list has length min(n, len(universe)).
func TopMovers(universe []domain.Asset, n int) Movers {
	if n <= 0 || len(universe) == 0 {
		return Movers{Gainers: []domain.Asset{}, Losers: []domain.Asset{}}
	}
	k := min(n, len(universe))

	byChange := append([]domain.Asset(nil), universe...)
	sort.SliceStable(byChange, func(i, j int) bool {
		return byChange[i].ChangePct24h > byChange[j].ChangePct24h
	})

	gainers := append([]domain.Asset(nil), byChange[:k]...)
	losers := make([]domain.Asset, 0, k)
	for i := len(byChange) - 1; i >= len(byChange)-k; i-- {
		losers = append(losers, byChange[i])
	}
	return Movers{Gainers: gainers, Losers: losers}
}

// Overview counts rising and falling assets. Zero change is neither.
type Overview struct {
	PositiveCount int     `json:"positive_count"`
	NegativeCount int     `json:"negative_count"`
	MeanChange    float64 `json:"mean_change"`
}

func MarketOverview(universe []domain.Asset) Overview {
	var o Overview
	if len(universe) == 0 {
		return o
	}
	var sum float64
	for _, a := range universe {
		switch {
		case a.ChangePct24h > 0:
			o.PositiveCount++
		case a.ChangePct24h < 0:
			o.NegativeCount++
		}
		sum += a.ChangePct24h
	}
	o.MeanChange = sum / float64(len(universe))
	return o
}

// Volatility aggregates the absolute 24h change across the universe.
type Volatility struct {
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
	Min  float64 `json:"min"`
}

func VolatilityStats(universe []domain.Asset) Volatility {
	if len(universe) == 0 {
		return Volatility{}
	}
	v := Volatility{Max: math.Inf(-1), Min: math.Inf(1)}
	var sum float64
	for _, a := range universe {
		abs := math.Abs(a.ChangePct24h)
		sum += abs
		v.Max = math.Max(v.Max, abs)
		v.Min = math.Min(v.Min, abs)
	}
	v.Mean = sum / float64(len(universe))
	return v
}
