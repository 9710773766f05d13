package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a single tracked cryptocurrency as reported by the market API.
// Values are immutable for the lifetime of the snapshot that carries them.
type Asset struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image,omitempty"`

	CurrentPrice decimal.Decimal     `json:"current_price"`
	MarketCap    decimal.NullDecimal `json:"market_cap"`
	TotalVolume  decimal.Decimal     `json:"total_volume"`
	High24h      decimal.Decimal     `json:"high_24h"`
	Low24h       decimal.Decimal     `json:"low_24h"`
	ATH          decimal.Decimal     `json:"ath"`
	ATL          decimal.Decimal     `json:"atl"`

	ChangePct24h float64 `json:"price_change_percentage_24h"`
	ChangePct7d  float64 `json:"price_change_percentage_7d"`
	ChangePct30d float64 `json:"price_change_percentage_30d"`

	MarketCapRank     int      `json:"market_cap_rank,omitempty"` // 0 = unranked
	CirculatingSupply float64  `json:"circulating_supply"`
	TotalSupply       float64  `json:"total_supply"`
	MaxSupply         *float64 `json:"max_supply"` // nil = unbounded
}

// MarketCapOrZero returns the market cap, treating an absent value as zero.
func (a Asset) MarketCapOrZero() decimal.Decimal {
	if !a.MarketCap.Valid {
		return decimal.Zero
	}
	return a.MarketCap.Decimal
}

// Matches reports whether the lower-cased query is a substring of name or symbol.
func (a Asset) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(a.Name), q) ||
		strings.Contains(strings.ToLower(a.Symbol), q)
}

// GlobalStats holds market-wide aggregates.
type GlobalStats struct {
	TotalMarketCapUSD decimal.Decimal `json:"total_market_cap_usd"`
	TotalVolumeUSD    decimal.Decimal `json:"total_volume_usd"`
	BTCDominancePct   float64         `json:"btc_dominance_pct"`
	ActiveAssetCount  int             `json:"active_asset_count"`
}

// PricePoint is one sample of a historical price series.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// AssetDetail is the descriptive metadata of an asset.
type AssetDetail struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Homepage    string   `json:"homepage,omitempty"`
	Links       []string `json:"links,omitempty"`
}

// MarketSnapshot is the atomically published state of one successful refresh.
// Assets is the primary listing (server order), Universe the wider movers set.
type MarketSnapshot struct {
	Assets    []Asset     `json:"assets"`
	Universe  []Asset     `json:"universe"`
	Global    GlobalStats `json:"global"`
	FetchedAt time.Time   `json:"fetched_at"`

	index map[string]int // id -> position in All()
	all   []Asset
}

// NewMarketSnapshot builds a snapshot and its lookup index.
func NewMarketSnapshot(listing, universe []Asset, global GlobalStats, fetchedAt time.Time) *MarketSnapshot {
	s := &MarketSnapshot{
		Assets:    listing,
		Universe:  universe,
		Global:    global,
		FetchedAt: fetchedAt,
		index:     make(map[string]int, len(listing)+len(universe)),
	}
	for _, group := range [][]Asset{listing, universe} {
		for _, a := range group {
			if _, seen := s.index[a.ID]; seen {
				continue
			}
			s.index[a.ID] = len(s.all)
			s.all = append(s.all, a)
		}
	}
	return s
}

// All returns every distinct asset in the snapshot: listing order first,
// then universe-only assets in universe order.
func (s *MarketSnapshot) All() []Asset {
	if s == nil {
		return nil
	}
	return s.all
}

// Lookup finds an asset by its stable id.
func (s *MarketSnapshot) Lookup(id string) (Asset, bool) {
	if s == nil {
		return Asset{}, false
	}
	i, ok := s.index[id]
	if !ok {
		return Asset{}, false
	}
	return s.all[i], true
}

// FindByQuery resolves a user query by exact case-insensitive name or symbol,
// falling back to an exact id match.
func (s *MarketSnapshot) FindByQuery(query string) (Asset, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" || s == nil {
		return Asset{}, false
	}
	for _, a := range s.all {
		if strings.ToLower(a.Name) == q || strings.ToLower(a.Symbol) == q {
			return a, true
		}
	}
	return s.Lookup(q)
}
