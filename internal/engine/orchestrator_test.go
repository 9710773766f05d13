package engine

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/storage"
	"crypto_dash/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []event.Event
}

func (l *eventLog) Publish(ev event.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) types() []event.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]event.Type, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.GetType()
	}
	return out
}

func mkAsset(id, name, symbol string, price int64, change float64) domain.Asset {
	p := decimal.NewFromInt(price)
	return domain.Asset{
		ID:           id,
		Name:         name,
		Symbol:       symbol,
		CurrentPrice: p,
		MarketCap:    decimal.NewNullDecimal(p.Mul(decimal.NewFromInt(1000))),
		ChangePct24h: change,
	}
}

func defaultAssets() []domain.Asset {
	return []domain.Asset{
		mkAsset("bitcoin", "Bitcoin", "BTC", 60000, 2),
		mkAsset("ethereum", "Ethereum", "ETH", 3000, -3),
		mkAsset("solana", "Solana", "SOL", 150, 7),
	}
}

type harness struct {
	o       *Orchestrator
	src     *fakeSource
	store   *storage.MemoryStore
	events  *eventLog
	metrics *infra.Metrics
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	src := newFakeSource(defaultAssets()...)
	store := storage.NewMemoryStore()
	events := &eventLog{}
	metrics := &infra.Metrics{}

	o := NewOrchestrator(Deps{
		Source:      src,
		Alerts:      service.NewAlertEngine(store, events),
		Ledger:      service.NewPortfolioLedger(store),
		Favorites:   service.NewFavorites(store),
		Preferences: service.NewPreferences(store, service.ThemeDark),
		Sink:        events,
		Metrics:     metrics,
	}, cfg)
	t.Cleanup(o.Stop)
	return &harness{o: o, src: src, store: store, events: events, metrics: metrics}
}

func TestRefresh_PublishesSnapshot(t *testing.T) {
	h := newHarness(t, Config{ListingSize: 2, UniverseSize: 3, MoversCount: 1})
	ctx := context.Background()

	vm := h.o.ViewModel()
	assert.False(t, vm.Loaded)
	assert.False(t, vm.Empty)

	require.NoError(t, h.o.Refresh(ctx))

	snap := h.o.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Assets, 2)
	assert.Len(t, snap.Universe, 3)

	vm = h.o.ViewModel()
	assert.True(t, vm.Loaded)
	assert.False(t, vm.Empty)
	require.Len(t, vm.Listing, 2)
	assert.Equal(t, "bitcoin", vm.Listing[0].Asset.ID)
	require.Len(t, vm.Gainers, 1)
	assert.Equal(t, "solana", vm.Gainers[0].ID)
	assert.Equal(t, "ethereum", vm.Losers[0].ID)
	assert.Equal(t, 2, vm.Overview.PositiveCount)
	assert.Equal(t, 51.0, vm.Global.BTCDominancePct)
	assert.Nil(t, vm.LastError)

	assert.Equal(t, []event.Type{event.EvSnapshotUpdated}, h.events.types())
	assert.Equal(t, uint64(1), h.metrics.Snapshot().RefreshesTotal)
}

func TestRefresh_AbortKeepsPreviousSnapshot(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	require.NoError(t, h.o.Refresh(ctx))
	before := h.o.Snapshot()

	h.src.setAssets(mkAsset("bitcoin", "Bitcoin", "BTC", 1, 0))
	h.src.setFailRank(errUpstream)

	err := h.o.Refresh(ctx)
	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))

	assert.Same(t, before, h.o.Snapshot())
	assert.Equal(t, "60000", h.o.Snapshot().Assets[0].CurrentPrice.String())

	vm := h.o.ViewModel()
	assert.True(t, vm.Loaded)
	require.NotNil(t, vm.LastError)
	assert.Equal(t, "refresh", vm.LastError.Op)
	assert.True(t, vm.LastError.Retriable)

	assert.Equal(t, []event.Type{event.EvSnapshotUpdated, event.EvFetchError}, h.events.types())
	assert.Equal(t, uint64(1), h.metrics.Snapshot().RefreshFailures)

	// Recovery clears the error
	h.src.setFailRank(nil)
	require.NoError(t, h.o.Refresh(ctx))
	assert.Nil(t, h.o.ViewModel().LastError)
	assert.NotSame(t, before, h.o.Snapshot())
}

func TestRefresh_FailureBeforeFirstLoad(t *testing.T) {
	h := newHarness(t, Config{})
	h.src.setFailRank(&domain.ParseError{Op: "markets", Err: errors.New("bad json")})

	require.Error(t, h.o.Refresh(context.Background()))
	assert.Nil(t, h.o.Snapshot())

	vm := h.o.ViewModel()
	assert.False(t, vm.Loaded)
	require.NotNil(t, vm.LastError)
	assert.False(t, vm.LastError.Retriable)
}

func TestRefresh_SkipsWhileInFlight(t *testing.T) {
	h := newHarness(t, Config{})
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	h.src.gate, h.src.entered = gate, entered

	done := make(chan error, 1)
	go func() { done <- h.o.Refresh(context.Background()) }()
	<-entered

	assert.ErrorIs(t, h.o.Refresh(context.Background()), domain.ErrRefreshInFlight)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().RefreshSkipped)

	close(gate)
	require.NoError(t, <-done)
	assert.NotNil(t, h.o.Snapshot())
}

func TestRefresh_ResultDiscardedAfterStop(t *testing.T) {
	h := newHarness(t, Config{})
	gate := make(chan struct{})
	entered := make(chan struct{}, 1)
	h.src.gate, h.src.entered = gate, entered

	done := make(chan error, 1)
	go func() { done <- h.o.Refresh(context.Background()) }()
	<-entered

	h.o.Stop()
	close(gate)

	assert.ErrorIs(t, <-done, domain.ErrClosed)
	assert.Nil(t, h.o.Snapshot())
	assert.Empty(t, h.events.types())
	assert.ErrorIs(t, h.o.Refresh(context.Background()), domain.ErrClosed)
}

func TestRefresh_PipelineOrder(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.o.Refresh(ctx))

	_, err := h.o.AddAlert(ctx, "BTC", decimal.NewFromInt(65000), "breakout")
	require.NoError(t, err)
	_, err = h.o.AddPosition(ctx, "bitcoin", decimal.NewFromInt(2), decimal.NewFromInt(50000))
	require.NoError(t, err)

	var hookSnap *domain.MarketSnapshot
	var hookAlerts int
	h.o.OnSnapshot(func(s *domain.MarketSnapshot) {
		hookSnap = s
		hookAlerts = h.o.ViewModel().Alerts.Count()
	})

	h.src.setAssets(mkAsset("bitcoin", "Bitcoin", "BTC", 66000, 10))
	require.NoError(t, h.o.Refresh(ctx))

	// Alerts fire before the snapshot notification
	assert.Equal(t, []event.Type{event.EvSnapshotUpdated, event.EvAlertFired, event.EvSnapshotUpdated}, h.events.types())
	assert.Same(t, h.o.Snapshot(), hookSnap)
	assert.Zero(t, hookAlerts)

	vm := h.o.ViewModel()
	assert.Zero(t, vm.Alerts.Count())
	require.Len(t, vm.Portfolio.Positions, 1)
	assert.Equal(t, "132000", vm.Portfolio.CurrentValue.String())
	assert.Equal(t, "32000", vm.Portfolio.GainLoss.String())
	assert.Equal(t, uint64(1), h.metrics.Snapshot().AlertsFired)
}

func TestAutoRefresh_StopIsDeterministic(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.o.StartAutoRefresh(context.Background(), 5*time.Millisecond))

	require.Eventually(t, func() bool { return h.src.rankCalls.Load() >= 4 }, time.Second, time.Millisecond)
	h.o.Stop()

	calls := h.src.rankCalls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, h.src.rankCalls.Load(), "no refresh may start after Stop")
	assert.ErrorIs(t, h.o.StartAutoRefresh(context.Background(), time.Millisecond), domain.ErrClosed)
}

func TestActions_ListingAndComparison(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.o.AddComparison("btc")
	assert.ErrorIs(t, err, domain.ErrNotLoaded)

	require.NoError(t, h.o.Refresh(ctx))

	h.o.SetSort(domain.SortChange24h)
	vm := h.o.ViewModel()
	assert.Equal(t, "solana", vm.Listing[0].Asset.ID)

	h.o.SetSearch("zzz")
	vm = h.o.ViewModel()
	assert.True(t, vm.Loaded)
	assert.True(t, vm.Empty)
	assert.NotNil(t, vm.Listing)
	h.o.SetSearch("")

	a, err := h.o.AddComparison("Bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", a.ID)

	_, err = h.o.AddComparison("BTC")
	assert.True(t, domain.IsValidation(err), "duplicates are rejected")

	_, err = h.o.AddComparison("dogecoin")
	assert.True(t, domain.IsNotFound(err))

	assert.Len(t, h.o.ViewModel().Comparison.Rows, 1)
	assert.Nil(t, h.o.ViewModel().Comparison.CrossTab)

	_, err = h.o.AddComparison("eth")
	require.NoError(t, err)
	vm = h.o.ViewModel()
	assert.Equal(t, []string{"bitcoin", "ethereum"}, vm.View.ComparisonSet)
	require.Len(t, vm.Comparison.CrossTab, 1)
	assert.Equal(t, 20.0, vm.Comparison.CrossTab[0].PriceRatio)

	assert.True(t, h.o.RemoveComparison("bitcoin"))
	assert.False(t, h.o.RemoveComparison("bitcoin"))
	assert.Equal(t, []string{"ethereum"}, h.o.ViewState().ComparisonSet)
}

func TestActions_FavoritesThemeAndExport(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.o.Refresh(ctx))

	on, err := h.o.ToggleFavorite(ctx, "ethereum")
	require.NoError(t, err)
	assert.True(t, on)

	vm := h.o.ViewModel()
	assert.Equal(t, []string{"ethereum"}, vm.Favorites)
	for _, row := range vm.Listing {
		assert.Equal(t, row.Asset.ID == "ethereum", row.IsFavorite)
	}

	require.NoError(t, h.o.SetTheme(ctx, "light"))
	assert.Equal(t, "light", h.o.ViewModel().Theme)

	h.o.SetSearch("sol")
	var buf bytes.Buffer
	require.NoError(t, h.o.ExportCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Solana,SOL,150")
}

func TestActions_RemovePositionNeedsConfirmation(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.o.AddPosition(ctx, "btc", decimal.NewFromInt(1), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, domain.ErrNotLoaded)

	require.NoError(t, h.o.Refresh(ctx))
	_, err = h.o.AddPosition(ctx, "btc", decimal.NewFromInt(1), decimal.NewFromInt(1))
	require.NoError(t, err)

	removed, err := h.o.RemovePosition(ctx, 0, func(domain.PortfolioPosition) bool { return false })
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = h.o.RemovePosition(ctx, 0, func(domain.PortfolioPosition) bool { return true })
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, h.o.ViewModel().Portfolio.Positions)
}

func rampSeries(n int) []domain.PricePoint {
	pts := make([]domain.PricePoint, n)
	for i := range pts {
		pts[i] = domain.PricePoint{Time: time.Unix(int64(i)*3600, 0), Price: decimal.NewFromInt(int64(i + 1))}
	}
	return pts
}

func TestLoadPrediction(t *testing.T) {
	h := newHarness(t, Config{ChartDays: 3})
	ctx := context.Background()
	require.NoError(t, h.o.Refresh(ctx))

	h.src.history["bitcoin"] = rampSeries(20)

	view, err := h.o.LoadPrediction(ctx, "BTC", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Days)
	assert.Len(t, view.Prices, 20)
	assert.Equal(t, domain.Bullish, view.Prediction.Direction)
	assert.Equal(t, "bitcoin", view.Prediction.AssetID)

	_, err = h.o.LoadPrediction(ctx, "doge", 7)
	assert.True(t, domain.IsNotFound(err))

	h.src.history["ethereum"] = rampSeries(1)
	_, err = h.o.LoadPrediction(ctx, "ethereum", 7)
	assert.True(t, domain.IsValidation(err))

	detail, err := h.o.LoadAssetDetail(ctx, "solana")
	require.NoError(t, err)
	assert.Equal(t, "about solana", detail.Description)
}

func TestWatchChart_PublishesPredictions(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.o.Refresh(ctx))
	h.src.history["solana"] = rampSeries(12)

	require.NoError(t, h.o.WatchChart(ctx, "sol", 7, 5*time.Millisecond))

	count := func() int { return h.events.count(event.EvPrediction) }
	require.Eventually(t, func() bool { return count() >= 2 }, time.Second, time.Millisecond)

	assert.True(t, h.o.UnwatchChart("solana"))
	assert.False(t, h.o.UnwatchChart("solana"))

	n := count()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, count())
}

func (l *eventLog) count(t event.Type) int {
	n := 0
	for _, ty := range l.types() {
		if ty == t {
			n++
		}
	}
	return n
}

func TestWatchChart_FailureIsPublished(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	require.NoError(t, h.o.Refresh(ctx))

	h.src.mu.Lock()
	h.src.failHist = errUpstream
	h.src.mu.Unlock()

	require.NoError(t, h.o.WatchChart(ctx, "bitcoin", 7, time.Hour))
	require.Eventually(t, func() bool { return h.events.count(event.EvFetchError) == 1 }, time.Second, time.Millisecond)

	require.NotNil(t, h.o.ViewModel().LastError)
	assert.Equal(t, "chart:bitcoin", h.o.ViewModel().LastError.Op)
}
