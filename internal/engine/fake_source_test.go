package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"crypto_dash/internal/domain"

	"github.com/shopspring/decimal"
)

var errUpstream = domain.NewTransportError("markets", 503, errors.New("service unavailable"))

// fakeSource is an in-memory MarketDataSource with switchable failures.
type fakeSource struct {
	mu        sync.Mutex
	assets    []domain.Asset
	global    domain.GlobalStats
	history   map[string][]domain.PricePoint
	failRank  error
	failHist  error
	gate      chan struct{} // when set, GetGlobalStats blocks until closed
	entered   chan struct{}
	rankCalls atomic.Int32
}

func newFakeSource(assets ...domain.Asset) *fakeSource {
	return &fakeSource{
		assets:  assets,
		global:  domain.GlobalStats{TotalMarketCapUSD: decimal.NewFromInt(2_500_000_000_000), BTCDominancePct: 51},
		history: make(map[string][]domain.PricePoint),
	}
}

func (f *fakeSource) setAssets(assets ...domain.Asset) {
	f.mu.Lock()
	f.assets = assets
	f.mu.Unlock()
}

func (f *fakeSource) setFailRank(err error) {
	f.mu.Lock()
	f.failRank = err
	f.mu.Unlock()
}

func (f *fakeSource) GetGlobalStats(ctx context.Context) (domain.GlobalStats, error) {
	f.mu.Lock()
	gate, entered := f.gate, f.entered
	f.mu.Unlock()
	if gate != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.GlobalStats{}, ctx.Err()
		}
	}
	return f.global, nil
}

func (f *fakeSource) GetRankedAssets(ctx context.Context, limit, page int) ([]domain.Asset, error) {
	f.rankCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRank != nil {
		return nil, f.failRank
	}
	n := min(limit, len(f.assets))
	return append([]domain.Asset(nil), f.assets[:n]...), nil
}

func (f *fakeSource) GetHistoricalPrices(ctx context.Context, id string, days int) ([]domain.PricePoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHist != nil {
		return nil, f.failHist
	}
	pts, ok := f.history[id]
	if !ok {
		return nil, &domain.NotFoundError{Query: id}
	}
	return pts, nil
}

func (f *fakeSource) GetAssetDetail(ctx context.Context, id string) (*domain.AssetDetail, error) {
	return &domain.AssetDetail{ID: id, Name: id, Description: "about " + id}, nil
}
