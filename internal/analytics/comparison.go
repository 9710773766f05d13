package analytics

import (
	"math"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/prediction"

	"github.com/shopspring/decimal"
)

// ComparisonRow is the per-asset block of the comparison view.
type ComparisonRow struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Symbol      string              `json:"symbol"`
	Price       decimal.Decimal     `json:"price"`
	MarketCap   decimal.NullDecimal `json:"market_cap"`
	Change24h   float64             `json:"change_24h"`
	Change7d    float64             `json:"change_7d"`
	TotalVolume decimal.Decimal     `json:"total_volume"`
	RSI         float64             `json:"rsi"`
	Volatility  float64             `json:"volatility"`
}

// PairMetrics relates two selected assets. Ratios are Base/Quote and are
// zero when the quote value is zero.
type PairMetrics struct {
	Base           string  `json:"base"`
	Quote          string  `json:"quote"`
	PriceRatio     float64 `json:"price_ratio"`
	MarketCapRatio float64 `json:"market_cap_ratio"`
	ChangeSpread   float64 `json:"change_spread"` // Base.Change24h - Quote.Change24h
}

// Comparison is the comparison view. CrossTab is nil for fewer than two assets.
type Comparison struct {
	Rows     []ComparisonRow `json:"rows"`
	CrossTab []PairMetrics   `json:"cross_tab,omitempty"`
}

// ComparisonMetrics builds rows in selection order and, for two or more
// assets, every unordered pair in that order.
func ComparisonMetrics(selected []domain.Asset) Comparison {
	c := Comparison{Rows: make([]ComparisonRow, 0, len(selected))}
	for _, a := range selected {
		c.Rows = append(c.Rows, ComparisonRow{
			ID:          a.ID,
			Name:        a.Name,
			Symbol:      a.Symbol,
			Price:       a.CurrentPrice,
			MarketCap:   a.MarketCap,
			Change24h:   a.ChangePct24h,
			Change7d:    a.ChangePct7d,
			TotalVolume: a.TotalVolume,
			RSI:         prediction.RSIApprox(a.ChangePct24h),
			Volatility:  math.Abs(a.ChangePct24h),
		})
	}

	if len(selected) < 2 {
		return c
	}
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			a, b := selected[i], selected[j]
			c.CrossTab = append(c.CrossTab, PairMetrics{
				Base:           a.ID,
				Quote:          b.ID,
				PriceRatio:     ratio(a.CurrentPrice, b.CurrentPrice),
				MarketCapRatio: ratio(a.MarketCapOrZero(), b.MarketCapOrZero()),
				ChangeSpread:   a.ChangePct24h - b.ChangePct24h,
			})
		}
	}
	return c
}

func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.DivRound(den, 8).InexactFloat64()
}
