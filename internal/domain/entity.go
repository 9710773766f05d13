package domain

import (
	"time"
)

// CoinInfo is the cached metadata of an asset whose icon has been synced.
type CoinInfo struct {
	AssetID      string    `gorm:"primaryKey" json:"asset_id"`
	Symbol       string    `json:"symbol" gorm:"index"`
	Name         string    `json:"name"`
	IconPath     string    `json:"icon_path"`
	LastSyncedAt time.Time `json:"last_synced_at"` // Last icon sync time
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppConfig is one persisted user value (Key-Value, JSON encoded)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
