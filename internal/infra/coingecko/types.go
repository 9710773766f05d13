package coingecko

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// --- Internal structs for CoinGecko API responses ---
// Nullable numeric fields use NullDecimal or pointers so that JSON null
// is distinguishable from zero.

type cgMarketData struct {
	ID                        string              `json:"id"`
	Symbol                    string              `json:"symbol"`
	Name                      string              `json:"name"`
	Image                     string              `json:"image"`
	CurrentPrice              decimal.NullDecimal `json:"current_price"`
	MarketCap                 decimal.NullDecimal `json:"market_cap"`
	MarketCapRank             *int                `json:"market_cap_rank"`
	TotalVolume               decimal.NullDecimal `json:"total_volume"`
	High24h                   decimal.NullDecimal `json:"high_24h"`
	Low24h                    decimal.NullDecimal `json:"low_24h"`
	PriceChangePercentage24h  *float64            `json:"price_change_percentage_24h"`
	ChangePercentage24hInCurr *float64            `json:"price_change_percentage_24h_in_currency"`
	ChangePercentage7dInCurr  *float64            `json:"price_change_percentage_7d_in_currency"`
	ChangePercentage30dInCurr *float64            `json:"price_change_percentage_30d_in_currency"`
	CirculatingSupply         *float64            `json:"circulating_supply"`
	TotalSupply               *float64            `json:"total_supply"`
	MaxSupply                 *float64            `json:"max_supply"`
	Ath                       decimal.NullDecimal `json:"ath"`
	Atl                       decimal.NullDecimal `json:"atl"`
}

type cgGlobalData struct {
	ActiveCryptocurrencies int                        `json:"active_cryptocurrencies"`
	TotalMarketCap         map[string]decimal.Decimal `json:"total_market_cap"`
	TotalVolume            map[string]decimal.Decimal `json:"total_volume"`
	MarketCapPercentage    map[string]float64         `json:"market_cap_percentage"`
}

type cgGlobalResponse struct {
	Data cgGlobalData `json:"data"`
}

// cgMarketChartResponse is for /market_chart endpoint.
// Each entry is [timestamp_ms, value].
type cgMarketChartResponse struct {
	Prices [][2]json.Number `json:"prices"`
}

type cgCoinDetail struct {
	ID          string `json:"id"`
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Description struct {
		En string `json:"en"`
	} `json:"description"`
	Links struct {
		Homepage       []string `json:"homepage"`
		BlockchainSite []string `json:"blockchain_site"`
		SubredditURL   string   `json:"subreddit_url"`
		ReposURL       struct {
			Github []string `json:"github"`
		} `json:"repos_url"`
	} `json:"links"`
}

func floatOrZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func decimalOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}
