package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketSnapshot_AllAndLookup(t *testing.T) {
	listing := []Asset{{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc"}, {ID: "ethereum", Name: "Ethereum", Symbol: "eth"}}
	universe := []Asset{{ID: "ethereum"}, {ID: "bitcoin"}, {ID: "solana", Name: "Solana", Symbol: "sol"}}
	snap := NewMarketSnapshot(listing, universe, GlobalStats{}, time.Now())

	all := snap.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, []string{all[0].ID, all[1].ID, all[2].ID})

	// listing copy wins over the universe duplicate
	eth, ok := snap.Lookup("ethereum")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", eth.Name)

	_, ok = snap.Lookup("dogecoin")
	assert.False(t, ok)
}

func TestMarketSnapshot_FindByQuery(t *testing.T) {
	snap := NewMarketSnapshot([]Asset{
		{ID: "bitcoin", Name: "Bitcoin", Symbol: "btc"},
		{ID: "wrapped-bitcoin", Name: "Wrapped Bitcoin", Symbol: "wbtc"},
	}, nil, GlobalStats{}, time.Now())

	tests := []struct {
		query string
		want  string
		found bool
	}{
		{"BTC", "bitcoin", true},
		{" bitcoin ", "bitcoin", true},
		{"WBTC", "wrapped-bitcoin", true},
		{"wrapped-bitcoin", "wrapped-bitcoin", true},
		{"bit", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		a, ok := snap.FindByQuery(tt.query)
		assert.Equal(t, tt.found, ok, tt.query)
		assert.Equal(t, tt.want, a.ID, tt.query)
	}
}

func TestAsset_Matches(t *testing.T) {
	a := Asset{Name: "Bitcoin", Symbol: "btc"}
	assert.True(t, a.Matches("COIN"))
	assert.True(t, a.Matches("Bt"))
	assert.True(t, a.Matches(""))
	assert.False(t, a.Matches("eth"))
}

func TestAsset_MarketCapOrZero(t *testing.T) {
	assert.True(t, Asset{}.MarketCapOrZero().IsZero())
	a := Asset{MarketCap: decimal.NewNullDecimal(decimal.NewFromInt(42))}
	assert.True(t, a.MarketCapOrZero().Equal(decimal.NewFromInt(42)))
}

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortPrice, ParseSortKey("PRICE"))
	assert.Equal(t, SortChange24h, ParseSortKey("change_24h"))
	assert.Equal(t, SortMarketCap, ParseSortKey("whatever"))
}
