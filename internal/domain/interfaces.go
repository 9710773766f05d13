package domain

import "context"

// MarketDataSource is the request/response contract of the remote market API.
type MarketDataSource interface {
	GetGlobalStats(ctx context.Context) (GlobalStats, error)
	GetRankedAssets(ctx context.Context, limit, page int) ([]Asset, error)
	GetHistoricalPrices(ctx context.Context, assetID string, days int) ([]PricePoint, error)
	GetAssetDetail(ctx context.Context, assetID string) (*AssetDetail, error)
}

// KeyValueStore persists JSON-serialisable values under stable keys.
// Get reports found=false and leaves dst untouched when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string, dst any) (found bool, err error)
	Set(ctx context.Context, key string, value any) error
	Remove(ctx context.Context, key string) error
}

// Storage keys.
const (
	KeyFavorites = "favorites"
	KeyAlerts    = "alerts"
	KeyPortfolio = "portfolio"
	KeyTheme     = "theme"
)
