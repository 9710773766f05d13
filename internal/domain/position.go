package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PortfolioPosition is a user holding. LatestPrice is a working value refreshed
// from the live snapshot; Quantity and CostBasisPrice are the source of truth.
type PortfolioPosition struct {
	ID             string          `json:"id"`
	AssetID        string          `json:"asset_id"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	Quantity       decimal.Decimal `json:"quantity"`
	CostBasisPrice decimal.Decimal `json:"cost_basis_price"`
	LatestPrice    decimal.Decimal `json:"latest_price"`
	AddedAt        time.Time       `json:"added_at"`
}

// Invested returns quantity x cost basis.
func (p PortfolioPosition) Invested() decimal.Decimal {
	return p.Quantity.Mul(p.CostBasisPrice)
}

// CurrentValue returns quantity x latest price.
func (p PortfolioPosition) CurrentValue() decimal.Decimal {
	return p.Quantity.Mul(p.LatestPrice)
}

// GainLoss returns quantity x (latest - cost basis).
func (p PortfolioPosition) GainLoss() decimal.Decimal {
	return p.Quantity.Mul(p.LatestPrice.Sub(p.CostBasisPrice))
}

// PositionView is a position with its derived valuation.
type PositionView struct {
	PortfolioPosition
	CurrentValue decimal.Decimal `json:"current_value"`
	GainLoss     decimal.Decimal `json:"gain_loss"`
	GainLossPct  decimal.Decimal `json:"gain_loss_pct"`
}

// PortfolioSummary aggregates every held position.
type PortfolioSummary struct {
	Positions     []PositionView  `json:"positions"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	CurrentValue  decimal.Decimal `json:"current_value"`
	GainLoss      decimal.Decimal `json:"gain_loss"`
	GainLossPct   decimal.Decimal `json:"gain_loss_pct"`
}

// Summarize computes per-position and aggregate valuation.
// The percentage is rounded to two places and is zero when nothing is invested.
func Summarize(positions []PortfolioPosition) PortfolioSummary {
	sum := PortfolioSummary{
		Positions:     make([]PositionView, 0, len(positions)),
		TotalInvested: decimal.Zero,
		CurrentValue:  decimal.Zero,
	}
	for _, p := range positions {
		invested := p.Invested()
		gl := p.GainLoss()
		sum.Positions = append(sum.Positions, PositionView{
			PortfolioPosition: p,
			CurrentValue:      p.CurrentValue(),
			GainLoss:          gl,
			GainLossPct:       pct(gl, invested),
		})
		sum.TotalInvested = sum.TotalInvested.Add(invested)
		sum.CurrentValue = sum.CurrentValue.Add(p.CurrentValue())
	}
	sum.GainLoss = sum.CurrentValue.Sub(sum.TotalInvested)
	sum.GainLossPct = pct(sum.GainLoss, sum.TotalInvested)
	return sum
}

func pct(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred).Round(2)
}
