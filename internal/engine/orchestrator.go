package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"crypto_dash/internal/analytics"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/prediction"
	"crypto_dash/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Config holds the refresh pipeline sizes.
type Config struct {
	ListingSize  int
	UniverseSize int
	MoversCount  int
	ChartDays    int
}

// DefaultEngineConfig matches the dashboard defaults: top-50 listing,
// top-100 movers universe, five movers, a week of chart history.
func DefaultEngineConfig() Config {
	return Config{ListingSize: 50, UniverseSize: 100, MoversCount: analytics.DefaultMoversCount, ChartDays: 7}
}

// Deps are the collaborators of an Orchestrator. Sink, Predictor and Metrics
// may be nil.
type Deps struct {
	Source      domain.MarketDataSource
	Alerts      *service.AlertEngine
	Ledger      *service.PortfolioLedger
	Favorites   *service.Favorites
	Preferences *service.Preferences
	Predictor   prediction.Predictor
	Sink        event.Sink
	Metrics     *infra.Metrics
}

// ErrorInfo is the last background failure shown next to stale data.
type ErrorInfo struct {
	Op        string    `json:"op"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
	At        time.Time `json:"at"`
}

// derived caches the snapshot-only views computed right after a swap.
type derived struct {
	snap       *domain.MarketSnapshot
	movers     analytics.Movers
	overview   analytics.Overview
	volatility analytics.Volatility
}

// Orchestrator owns the live snapshot and the refresh timer, sequences
// fetch, snapshot swap, view recompute, alert evaluation and repricing, and
// serves the composed view model.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time

	snapshot   atomic.Pointer[domain.MarketSnapshot]
	views      atomic.Pointer[derived]
	refreshing atomic.Bool
	closed     atomic.Bool

	mu      sync.Mutex
	state   domain.ViewState
	lastErr *ErrorInfo
	auto    *RepeatingTask
	watches map[string]*RepeatingTask
	hooks   []func(*domain.MarketSnapshot)
}

// NewOrchestrator wires the pipeline. It performs no I/O.
func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	def := DefaultEngineConfig()
	if cfg.ListingSize <= 0 {
		cfg.ListingSize = def.ListingSize
	}
	if cfg.UniverseSize <= 0 {
		cfg.UniverseSize = def.UniverseSize
	}
	if cfg.MoversCount <= 0 {
		cfg.MoversCount = def.MoversCount
	}
	if cfg.ChartDays <= 0 {
		cfg.ChartDays = def.ChartDays
	}
	if deps.Sink == nil {
		deps.Sink = event.Discard
	}
	if deps.Predictor == nil {
		deps.Predictor = prediction.NewHeuristic()
	}
	if deps.Metrics == nil {
		deps.Metrics = &infra.Metrics{}
	}

	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		now:     time.Now,
		state:   domain.ViewState{SortKey: domain.SortMarketCap},
		watches: make(map[string]*RepeatingTask),
	}
}

// OnSnapshot registers fn to run after every successful refresh, once alerts
// and portfolio have been updated. fn must not block.
func (o *Orchestrator) OnSnapshot(fn func(*domain.MarketSnapshot)) {
	o.mu.Lock()
	o.hooks = append(o.hooks, fn)
	o.mu.Unlock()
}

// Snapshot returns the live snapshot, or nil before the first successful refresh.
func (o *Orchestrator) Snapshot() *domain.MarketSnapshot {
	return o.snapshot.Load()
}

// ======================================================================================
// Refresh pipeline
// ======================================================================================

// Refresh fetches global stats, the listing and the movers universe
// concurrently. Any failure aborts the cycle and leaves the live snapshot in
// place. A refresh requested while another is in flight returns
// domain.ErrRefreshInFlight.
func (o *Orchestrator) Refresh(ctx context.Context) error {
	if o.closed.Load() {
		return domain.ErrClosed
	}
	if !o.refreshing.CompareAndSwap(false, true) {
		o.deps.Metrics.RecordSkipped()
		return domain.ErrRefreshInFlight
	}
	defer o.refreshing.Store(false)

	start := time.Now()

	var (
		global   domain.GlobalStats
		listing  []domain.Asset
		universe []domain.Asset
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		global, err = o.deps.Source.GetGlobalStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		listing, err = o.deps.Source.GetRankedAssets(gctx, o.cfg.ListingSize, 1)
		return err
	})
	g.Go(func() (err error) {
		universe, err = o.deps.Source.GetRankedAssets(gctx, o.cfg.UniverseSize, 1)
		return err
	})

	if err := g.Wait(); err != nil {
		if o.closed.Load() {
			return domain.ErrClosed
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.recordFailure("refresh", err)
		return err
	}

	// Results arriving after Stop are discarded.
	if o.closed.Load() {
		return domain.ErrClosed
	}

	snap := domain.NewMarketSnapshot(listing, universe, global, o.now())
	o.snapshot.Store(snap)
	o.views.Store(o.derive(snap))

	fired := o.deps.Alerts.Evaluate(ctx, snap)
	o.deps.Ledger.Reprice(snap)

	o.mu.Lock()
	o.lastErr = nil
	hooks := append([]func(*domain.MarketSnapshot){}, o.hooks...)
	o.mu.Unlock()

	latency := time.Since(start)
	o.deps.Metrics.RecordRefresh(latency)
	o.deps.Metrics.RecordAlerts(len(fired))

	slog.Info("✅ Market data refreshed",
		slog.Int("listing", len(listing)),
		slog.Int("universe", len(universe)),
		slog.String("market_cap", "$"+humanize.BigComma(global.TotalMarketCapUSD.BigInt())),
		slog.String("volume", "$"+humanize.BigComma(global.TotalVolumeUSD.BigInt())),
		slog.Float64("btc_dominance", global.BTCDominancePct),
		slog.Int("alerts_fired", len(fired)),
		slog.Duration("latency", latency),
	)

	o.deps.Sink.Publish(event.SnapshotEvent{
		BaseEvent:     event.BaseEvent{Ts: snap.FetchedAt},
		FetchedAt:     snap.FetchedAt,
		ListingSize:   len(snap.Assets),
		UniverseSize:  len(snap.Universe),
		AlertsFired:   len(fired),
		PortfolioSize: len(o.deps.Ledger.Positions()),
	})

	for _, h := range hooks {
		h(snap)
	}
	return nil
}

func (o *Orchestrator) derive(snap *domain.MarketSnapshot) *derived {
	return &derived{
		snap:       snap,
		movers:     analytics.TopMovers(snap.Universe, o.cfg.MoversCount),
		overview:   analytics.MarketOverview(snap.Universe),
		volatility: analytics.VolatilityStats(snap.Universe),
	}
}

// recordFailure logs, counts and publishes one error notification.
func (o *Orchestrator) recordFailure(op string, err error) {
	now := o.now()
	ev := event.NewFetchError(op, err, now)

	o.mu.Lock()
	o.lastErr = &ErrorInfo{Op: op, Message: ev.Message, Retriable: ev.Retriable, At: now}
	o.mu.Unlock()

	o.deps.Metrics.RecordError()
	slog.Warn("Market data fetch failed, keeping last snapshot", slog.String("op", op), slog.Any("error", err))
	o.deps.Sink.Publish(ev)
}

// StartAutoRefresh refreshes now and then every interval until Stop.
// Calling it again replaces the running timer.
func (o *Orchestrator) StartAutoRefresh(ctx context.Context, interval time.Duration) error {
	if o.closed.Load() {
		return domain.ErrClosed
	}

	task := NewRepeatingTask("auto-refresh", interval, func(ctx context.Context) {
		// Failures are recorded by Refresh; overlap with a manual refresh is skipped.
		_ = o.Refresh(ctx)
	}, o.deps.Metrics.RecordSkipped)

	o.mu.Lock()
	prev := o.auto
	o.auto = task
	o.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	slog.Info("🔄 Auto refresh started", slog.Duration("interval", interval))
	return task.Start(ctx, true)
}

// Stop cancels every timer, waits for running tasks, and discards the result
// of any refresh still in flight.
func (o *Orchestrator) Stop() {
	if o.closed.Swap(true) {
		return
	}

	o.mu.Lock()
	tasks := make([]*RepeatingTask, 0, len(o.watches)+1)
	if o.auto != nil {
		tasks = append(tasks, o.auto)
	}
	for _, w := range o.watches {
		tasks = append(tasks, w)
	}
	o.auto = nil
	o.watches = make(map[string]*RepeatingTask)
	o.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
	slog.Info("Orchestrator stopped")
}

// ======================================================================================
// User actions
// ======================================================================================

// SetSearch sets the listing filter.
func (o *Orchestrator) SetSearch(query string) {
	o.mu.Lock()
	o.state.SearchQuery = strings.TrimSpace(query)
	o.mu.Unlock()
}

// SetSort sets the listing order.
func (o *Orchestrator) SetSort(key domain.SortKey) {
	o.mu.Lock()
	o.state.SortKey = domain.ParseSortKey(string(key))
	o.mu.Unlock()
}

// ViewState returns a copy of the current view parameters.
func (o *Orchestrator) ViewState() domain.ViewState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// AddComparison resolves query by exact name or symbol (then id) and appends
// it to the comparison set.
func (o *Orchestrator) AddComparison(query string) (domain.Asset, error) {
	snap := o.snapshot.Load()
	if snap == nil {
		return domain.Asset{}, domain.ErrNotLoaded
	}
	if strings.TrimSpace(query) == "" {
		return domain.Asset{}, &domain.ValidationError{Field: "asset", Reason: "required"}
	}
	a, ok := snap.FindByQuery(query)
	if !ok {
		return domain.Asset{}, &domain.NotFoundError{Query: query}
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.HasComparison(a.ID) {
		return domain.Asset{}, &domain.ValidationError{Field: "asset", Reason: a.Name + " is already being compared"}
	}
	o.state.ComparisonSet = append(o.state.ComparisonSet, a.ID)
	return a, nil
}

// RemoveComparison drops id from the comparison set and reports whether it was present.
func (o *Orchestrator) RemoveComparison(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, c := range o.state.ComparisonSet {
		if c == id {
			o.state.ComparisonSet = append(o.state.ComparisonSet[:i:i], o.state.ComparisonSet[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleFavorite flips the favorite flag of an asset id.
func (o *Orchestrator) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	return o.deps.Favorites.Toggle(ctx, id)
}

// AddAlert arms a price alert on the asset matching query.
func (o *Orchestrator) AddAlert(ctx context.Context, query string, threshold decimal.Decimal, label string) (domain.AlertRule, error) {
	a, err := o.resolve(query)
	if err != nil {
		return domain.AlertRule{}, err
	}
	return o.deps.Alerts.AddRule(ctx, a.ID, threshold, label)
}

// RemoveAlert disarms a rule by id.
func (o *Orchestrator) RemoveAlert(ctx context.Context, ruleID string) error {
	return o.deps.Alerts.RemoveRule(ctx, ruleID)
}

// AddPosition records a holding against the live snapshot.
func (o *Orchestrator) AddPosition(ctx context.Context, query string, qty, cost decimal.Decimal) (domain.PortfolioPosition, error) {
	snap := o.snapshot.Load()
	if snap == nil {
		return domain.PortfolioPosition{}, domain.ErrNotLoaded
	}
	return o.deps.Ledger.AddPosition(ctx, snap, query, qty, cost)
}

// RemovePosition deletes the holding at index once confirm approves it.
func (o *Orchestrator) RemovePosition(ctx context.Context, index int, confirm func(domain.PortfolioPosition) bool) (bool, error) {
	return o.deps.Ledger.RemovePosition(ctx, index, confirm)
}

// SetTheme persists the UI theme.
func (o *Orchestrator) SetTheme(ctx context.Context, theme string) error {
	return o.deps.Preferences.SetTheme(ctx, theme)
}

// ChartView is a price history with its heuristic projection.
type ChartView struct {
	Asset      domain.Asset            `json:"asset"`
	Days       int                     `json:"days"`
	Prices     []domain.PricePoint     `json:"prices"`
	Prediction domain.PredictionResult `json:"prediction"`
}

// LoadPrediction fetches days of history for the asset and projects it.
// days <= 0 uses the configured chart window.
func (o *Orchestrator) LoadPrediction(ctx context.Context, query string, days int) (ChartView, error) {
	a, err := o.resolve(query)
	if err != nil {
		return ChartView{}, err
	}
	if days <= 0 {
		days = o.cfg.ChartDays
	}

	prices, err := o.deps.Source.GetHistoricalPrices(ctx, a.ID, days)
	if err != nil {
		return ChartView{}, err
	}
	res, err := o.deps.Predictor.Predict(a, prices, o.now())
	if err != nil {
		return ChartView{}, err
	}
	return ChartView{Asset: a, Days: days, Prices: prices, Prediction: res}, nil
}

// LoadAssetDetail fetches descriptive metadata for an asset id.
func (o *Orchestrator) LoadAssetDetail(ctx context.Context, assetID string) (*domain.AssetDetail, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, &domain.ValidationError{Field: "asset", Reason: "required"}
	}
	return o.deps.Source.GetAssetDetail(ctx, assetID)
}

// WatchChart reloads the chart and prediction of one asset every interval and
// publishes each result. A new watch on the same asset replaces the old one.
func (o *Orchestrator) WatchChart(ctx context.Context, query string, days int, interval time.Duration) error {
	if o.closed.Load() {
		return domain.ErrClosed
	}
	a, err := o.resolve(query)
	if err != nil {
		return err
	}

	task := NewRepeatingTask("chart:"+a.ID, interval, func(ctx context.Context) {
		view, err := o.LoadPrediction(ctx, a.ID, days)
		if o.closed.Load() || ctx.Err() != nil {
			return
		}
		if err != nil {
			o.recordFailure("chart:"+a.ID, err)
			return
		}
		o.deps.Sink.Publish(event.PredictionEvent{BaseEvent: event.BaseEvent{Ts: o.now()}, Result: view.Prediction})
	}, nil)

	o.mu.Lock()
	prev := o.watches[a.ID]
	o.watches[a.ID] = task
	o.mu.Unlock()

	if prev != nil {
		prev.Stop()
	}
	return task.Start(ctx, true)
}

// UnwatchChart stops the live poll of an asset and reports whether one was running.
func (o *Orchestrator) UnwatchChart(assetID string) bool {
	o.mu.Lock()
	task, ok := o.watches[assetID]
	delete(o.watches, assetID)
	o.mu.Unlock()

	if ok {
		task.Stop()
	}
	return ok
}

func (o *Orchestrator) resolve(query string) (domain.Asset, error) {
	snap := o.snapshot.Load()
	if snap == nil {
		return domain.Asset{}, domain.ErrNotLoaded
	}
	if strings.TrimSpace(query) == "" {
		return domain.Asset{}, &domain.ValidationError{Field: "asset", Reason: "required"}
	}
	if a, ok := snap.Lookup(query); ok {
		return a, nil
	}
	if a, ok := snap.FindByQuery(query); ok {
		return a, nil
	}
	return domain.Asset{}, &domain.NotFoundError{Query: query}
}

// ======================================================================================
// View model
// ======================================================================================

// ViewModel is everything the presentation layer renders.
type ViewModel struct {
	Loaded     bool                    `json:"loaded"`
	Empty      bool                    `json:"empty"`
	View       domain.ViewState        `json:"view"`
	Listing    []analytics.ListingRow  `json:"listing"`
	Gainers    []domain.Asset          `json:"gainers"`
	Losers     []domain.Asset          `json:"losers"`
	Overview   analytics.Overview      `json:"overview"`
	Volatility analytics.Volatility    `json:"volatility"`
	Comparison analytics.Comparison    `json:"comparison"`
	Portfolio  domain.PortfolioSummary `json:"portfolio"`
	Favorites  []string                `json:"favorites"`
	Alerts     domain.AlertBook        `json:"alerts"`
	Global     domain.GlobalStats      `json:"global"`
	FetchedAt  time.Time               `json:"fetched_at"`
	LastError  *ErrorInfo              `json:"last_error,omitempty"`
	Theme      string                  `json:"theme"`
}

// ViewModel composes the latest snapshot with the current user state.
// Loaded is false until the first successful refresh; Empty is set only when
// loaded and the filter matches nothing.
func (o *Orchestrator) ViewModel() ViewModel {
	snap := o.snapshot.Load()

	o.mu.Lock()
	view := o.state.Clone()
	var lastErr *ErrorInfo
	if o.lastErr != nil {
		e := *o.lastErr
		lastErr = &e
	}
	o.mu.Unlock()

	vm := ViewModel{
		View:      view,
		Portfolio: o.deps.Ledger.Summary(),
		Favorites: o.deps.Favorites.IDs(),
		Alerts:    o.deps.Alerts.Rules(),
		LastError: lastErr,
		Theme:     o.deps.Preferences.Theme(),
	}
	if snap == nil {
		return vm
	}

	d := o.views.Load()
	if d == nil || d.snap != snap {
		d = o.derive(snap)
	}

	vm.Loaded = true
	vm.Listing = analytics.FilterAndSort(snap, view, o.deps.Favorites.Set())
	vm.Empty = len(vm.Listing) == 0
	vm.Gainers = d.movers.Gainers
	vm.Losers = d.movers.Losers
	vm.Overview = d.overview
	vm.Volatility = d.volatility
	vm.Global = snap.Global
	vm.FetchedAt = snap.FetchedAt

	selected := make([]domain.Asset, 0, len(view.ComparisonSet))
	for _, id := range view.ComparisonSet {
		if a, ok := snap.Lookup(id); ok {
			selected = append(selected, a)
		}
	}
	vm.Comparison = analytics.ComparisonMetrics(selected)
	return vm
}

// ExportCSV writes the current filtered and sorted listing.
func (o *Orchestrator) ExportCSV(w io.Writer) error {
	snap := o.snapshot.Load()
	if snap == nil {
		return domain.ErrNotLoaded
	}
	rows := analytics.FilterAndSort(snap, o.ViewState(), nil)
	if err := analytics.WriteCSV(w, rows); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	return nil
}
