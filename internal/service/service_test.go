package service

import (
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snapshot(assets ...domain.Asset) *domain.MarketSnapshot {
	return domain.NewMarketSnapshot(assets, nil, domain.GlobalStats{}, time.Now())
}

func coin(id, name, symbol, price string) domain.Asset {
	return domain.Asset{ID: id, Name: name, Symbol: symbol, CurrentPrice: dec(price)}
}

type recorder struct {
	events []event.Event
}

func (r *recorder) Publish(ev event.Event) { r.events = append(r.events, ev) }
