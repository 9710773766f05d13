package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"crypto_dash/internal/domain"
	"crypto_dash/internal/engine"
	"crypto_dash/internal/infra"
	"crypto_dash/internal/infra/coingecko"
	"crypto_dash/internal/infra/notify"
	"crypto_dash/internal/infra/storage"
	"crypto_dash/internal/service"
	"crypto_dash/internal/web"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config       *infra.Config
	Storage      *storage.Storage
	Downloader   *infra.IconDownloader
	Hub          *notify.Hub
	Orchestrator *engine.Orchestrator
	Server       *web.Server
	Metrics      *infra.Metrics

	syncing atomic.Bool
	wg      sync.WaitGroup
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath, Metrics: infra.GlobalMetrics}
}

// Initialize loads config, opens storage, restores user state and wires the
// refresh pipeline. It performs no network I/O.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Crypto Dash...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. Initialize Icon Downloader
	if cfg.Storage.SyncIcons {
		downloader, err := infra.NewIconDownloader(cfg.Storage.IconsDir)
		if err != nil {
			return err
		}
		b.Downloader = downloader
		slog.Info("✅ Icon downloader ready")
	}

	// 5. Notification sinks
	b.Hub = notify.NewHub(b.Metrics)
	sink := notify.NewFanout(b.Metrics, b.Hub, notify.NewLogSink(logger))

	// 6. Restore persisted user state
	alerts := service.NewAlertEngine(store, sink)
	ledger := service.NewPortfolioLedger(store)
	favorites := service.NewFavorites(store)
	prefs := service.NewPreferences(store, cfg.UI.Theme)
	for _, l := range []interface{ Load(context.Context) error }{alerts, ledger, favorites, prefs} {
		if err := l.Load(ctx); err != nil {
			return err
		}
	}
	slog.Info("✅ User state restored",
		slog.Int("favorites", len(favorites.IDs())),
		slog.Int("alerts", alerts.Rules().Count()),
		slog.Int("positions", len(ledger.Positions())),
	)

	// 7. Orchestrator
	b.Orchestrator = engine.NewOrchestrator(engine.Deps{
		Source:      coingecko.NewClientFromConfig(cfg),
		Alerts:      alerts,
		Ledger:      ledger,
		Favorites:   favorites,
		Preferences: prefs,
		Sink:        sink,
		Metrics:     b.Metrics,
	}, engine.Config{
		ListingSize:  cfg.Refresh.ListingSize,
		UniverseSize: cfg.Refresh.UniverseSize,
		MoversCount:  cfg.Refresh.MoversCount,
		ChartDays:    cfg.Refresh.ChartDays,
	})

	// 8. Web
	b.Server = web.NewServer(
		cfg.Server.Addr,
		b.Orchestrator,
		b.Hub,
		b.Metrics,
		time.Duration(cfg.Refresh.ChartPollIntervalMS)*time.Millisecond,
		logger,
	)
	return nil
}

// Start begins auto refresh and serves HTTP in the background.
func (b *Bootstrap) Start(ctx context.Context) error {
	if b.Orchestrator == nil {
		return errors.New("bootstrap: not initialized")
	}

	if b.Downloader != nil {
		b.Orchestrator.OnSnapshot(func(snap *domain.MarketSnapshot) {
			b.syncAssetsAsync(ctx, snap)
		})
	}

	interval := time.Duration(b.Config.Refresh.IntervalMS) * time.Millisecond
	if err := b.Orchestrator.StartAutoRefresh(ctx, interval); err != nil {
		return err
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Server.Start(); err != nil {
			slog.Error("Web server failed", slog.Any("error", err))
		}
	}()
	return nil
}

// syncAssetsAsync runs at most one icon sync at a time.
func (b *Bootstrap) syncAssetsAsync(ctx context.Context, snap *domain.MarketSnapshot) {
	if !b.syncing.CompareAndSwap(false, true) {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.syncing.Store(false)
		b.SyncAssets(ctx, snap.Assets)
	}()
}

// SyncAssets caches icon and metadata of the listed assets.
// Assets already synced are skipped.
func (b *Bootstrap) SyncAssets(ctx context.Context, assets []domain.Asset) {
	slog.Info("🔄 Starting asset synchronization...", slog.Int("assets", len(assets)))

	var wg sync.WaitGroup
	var synced atomic.Int32
	semaphore := make(chan struct{}, 5) // Limit concurrent downloads

	for _, asset := range assets {
		wg.Add(1)
		go func(a domain.Asset) {
			defer wg.Done()
			select {
			case <-ctx.Done():
				return
			case semaphore <- struct{}{}: // Acquire
			}
			defer func() { <-semaphore }() // Release

			existing, err := b.Storage.GetCoin(ctx, a.ID)
			if err != nil {
				slog.Error("Failed to read coin", slog.String("asset", a.ID), slog.Any("error", err))
				return
			}
			if existing != nil && existing.IconPath != "" {
				return
			}

			coin := &domain.CoinInfo{
				AssetID:   a.ID,
				Symbol:    a.Symbol,
				Name:      a.Name,
				UpdatedAt: time.Now(),
			}
			if a.Image != "" {
				path, err := b.Downloader.DownloadIcon(ctx, a.ID, a.Image)
				if err != nil {
					slog.Warn("Failed to download icon", slog.String("asset", a.ID), slog.Any("error", err))
				} else {
					coin.IconPath = path
					coin.LastSyncedAt = time.Now()
				}
			}

			if err := b.Storage.UpsertCoin(ctx, coin); err != nil {
				slog.Error("Failed to upsert coin", slog.String("asset", a.ID), slog.Any("error", err))
				return
			}
			synced.Add(1)
		}(asset)
	}

	wg.Wait()
	slog.Info("✨ Asset synchronization completed", slog.Int("synced", int(synced.Load())))
}

// Shutdown stops refresh timers, the web server and the hub, then closes storage.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	var errs []error
	if b.Orchestrator != nil {
		b.Orchestrator.Stop()
	}
	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Hub != nil {
		b.Hub.Close()
	}
	b.wg.Wait()
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
