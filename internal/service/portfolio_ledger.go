package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"crypto_dash/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioLedger holds user positions and values them against the live snapshot.
type PortfolioLedger struct {
	mu        sync.Mutex
	store     domain.KeyValueStore
	positions []domain.PortfolioPosition
	now       func() time.Time
}

func NewPortfolioLedger(store domain.KeyValueStore) *PortfolioLedger {
	return &PortfolioLedger{store: store, now: time.Now}
}

// Load replaces the in-memory positions with the persisted ones.
func (l *PortfolioLedger) Load(ctx context.Context) error {
	var positions []domain.PortfolioPosition
	if _, err := l.store.Get(ctx, domain.KeyPortfolio, &positions); err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}

	l.mu.Lock()
	l.positions = positions
	l.mu.Unlock()
	return nil
}

// AddPosition resolves query against snap by exact name or symbol, appends a
// position priced at the snapshot price and persists.
func (l *PortfolioLedger) AddPosition(ctx context.Context, snap *domain.MarketSnapshot, query string, qty, cost decimal.Decimal) (domain.PortfolioPosition, error) {
	query = strings.TrimSpace(query)
	switch {
	case query == "":
		return domain.PortfolioPosition{}, &domain.ValidationError{Field: "asset", Reason: "required"}
	case !qty.IsPositive():
		return domain.PortfolioPosition{}, &domain.ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	case !cost.IsPositive():
		return domain.PortfolioPosition{}, &domain.ValidationError{Field: "cost_basis_price", Reason: "must be greater than zero"}
	}

	asset, ok := snap.FindByQuery(query)
	if !ok {
		return domain.PortfolioPosition{}, &domain.NotFoundError{Query: query}
	}

	pos := domain.PortfolioPosition{
		ID:             uuid.NewString(),
		AssetID:        asset.ID,
		Name:           asset.Name,
		Symbol:         asset.Symbol,
		Quantity:       qty,
		CostBasisPrice: cost,
		LatestPrice:    asset.CurrentPrice,
		AddedAt:        l.now(),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := append(l.clonePositions(), pos)
	if err := l.store.Set(ctx, domain.KeyPortfolio, next); err != nil {
		return domain.PortfolioPosition{}, fmt.Errorf("persist portfolio: %w", err)
	}
	l.positions = next
	l.repriceLocked(snap)
	return pos, nil
}

// RemovePosition deletes the position at index once confirm approves it.
// It reports whether a position was removed.
func (l *PortfolioLedger) RemovePosition(ctx context.Context, index int, confirm func(domain.PortfolioPosition) bool) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.positions) {
		return false, &domain.ValidationError{Field: "index", Reason: fmt.Sprintf("out of range [0,%d)", len(l.positions))}
	}
	if confirm == nil || !confirm(l.positions[index]) {
		return false, nil
	}

	next := l.clonePositions()
	next = append(next[:index], next[index+1:]...)
	if err := l.store.Set(ctx, domain.KeyPortfolio, next); err != nil {
		return false, fmt.Errorf("persist portfolio: %w", err)
	}
	l.positions = next
	return true, nil
}

// Reprice refreshes LatestPrice from snap. Positions whose asset is absent
// keep their last known price.
func (l *PortfolioLedger) Reprice(snap *domain.MarketSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.repriceLocked(snap)
}

func (l *PortfolioLedger) repriceLocked(snap *domain.MarketSnapshot) {
	for i := range l.positions {
		if a, ok := snap.Lookup(l.positions[i].AssetID); ok {
			l.positions[i].LatestPrice = a.CurrentPrice
		}
	}
}

// Positions returns a copy of the held positions.
func (l *PortfolioLedger) Positions() []domain.PortfolioPosition {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.clonePositions()
}

// Summary values every position at its latest price.
func (l *PortfolioLedger) Summary() domain.PortfolioSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return domain.Summarize(l.positions)
}

func (l *PortfolioLedger) clonePositions() []domain.PortfolioPosition {
	return append([]domain.PortfolioPosition(nil), l.positions...)
}
