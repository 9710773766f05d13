package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"crypto_dash/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Storage is the SQLite-backed persistent store. User values live in the
// AppConfig key-value table; icon sync state lives in CoinInfo.
type Storage struct {
	db *gorm.DB
}

var _ domain.KeyValueStore = (*Storage)(nil)

// NewStorage creates a new SQLite storage instance at dbPath.
func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		return nil, &domain.ConfigError{Field: "storage.path", Err: errors.New("empty path")}
	}

	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite allows a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get connection pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	// Auto Migration
	if err := db.AutoMigrate(&domain.CoinInfo{}, &domain.AppConfig{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Key-Value Operations
// ======================================================================================

// Get decodes the JSON value stored under key into dst.
func (s *Storage) Get(ctx context.Context, key string, dst any) (bool, error) {
	var row domain.AppConfig
	err := s.db.WithContext(ctx).First(&row, `"key" = ?`, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil // Not found is not an error
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(row.Value), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set encodes value as JSON and upserts it under key.
func (s *Storage) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	row := domain.AppConfig{Key: key, Value: string(data)}
	return s.db.WithContext(ctx).Save(&row).Error
}

// Remove deletes key. Removing an absent key is a no-op.
func (s *Storage) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where(`"key" = ?`, key).Delete(&domain.AppConfig{}).Error
}

// Keys lists every stored key.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.db.WithContext(ctx).Model(&domain.AppConfig{}).Order(`"key"`).Pluck("key", &keys).Error
	return keys, err
}

// ======================================================================================
// Coin Operations
// ======================================================================================

// UpsertCoin creates or updates cached coin metadata
func (s *Storage) UpsertCoin(ctx context.Context, coin *domain.CoinInfo) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"symbol", "name", "icon_path", "last_synced_at", "updated_at"}),
	}).Create(coin).Error
}

// GetCoin retrieves coin metadata by asset id
func (s *Storage) GetCoin(ctx context.Context, assetID string) (*domain.CoinInfo, error) {
	var coin domain.CoinInfo
	err := s.db.WithContext(ctx).First(&coin, "asset_id = ?", assetID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return &coin, nil
}

// GetAllCoins retrieves all coins
func (s *Storage) GetAllCoins(ctx context.Context) ([]domain.CoinInfo, error) {
	var coins []domain.CoinInfo
	err := s.db.WithContext(ctx).Order("asset_id").Find(&coins).Error
	return coins, err
}

// DeleteCoin deletes a coin from the database
func (s *Storage) DeleteCoin(ctx context.Context, assetID string) error {
	return s.db.WithContext(ctx).Where("asset_id = ?", assetID).Delete(&domain.CoinInfo{}).Error
}
