package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crypto_dash/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorage_KeyValue(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var favs []string
	found, err := s.Get(ctx, domain.KeyFavorites, &favs)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, favs)

	require.NoError(t, s.Set(ctx, domain.KeyFavorites, []string{"bitcoin", "ethereum"}))
	found, err = s.Get(ctx, domain.KeyFavorites, &favs)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, favs)

	// Overwrite keeps a single row per key
	require.NoError(t, s.Set(ctx, domain.KeyFavorites, []string{"solana"}))
	favs = nil
	_, err = s.Get(ctx, domain.KeyFavorites, &favs)
	require.NoError(t, err)
	assert.Equal(t, []string{"solana"}, favs)

	require.NoError(t, s.Set(ctx, domain.KeyTheme, "light"))
	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.KeyFavorites, domain.KeyTheme}, keys)

	require.NoError(t, s.Remove(ctx, domain.KeyFavorites))
	require.NoError(t, s.Remove(ctx, "never-set"))
	found, err = s.Get(ctx, domain.KeyFavorites, &favs)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorage_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dash.db")
	ctx := context.Background()

	s, err := NewStorage(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, domain.KeyTheme, "light"))
	require.NoError(t, s.Close())

	s, err = NewStorage(path)
	require.NoError(t, err)
	defer s.Close()

	var theme string
	found, err := s.Get(ctx, domain.KeyTheme, &theme)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "light", theme)
}

func TestStorage_CorruptValue(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, s.db.Save(&domain.AppConfig{Key: domain.KeyAlerts, Value: "{not json"}).Error)

	var book domain.AlertBook
	found, err := s.Get(ctx, domain.KeyAlerts, &book)
	assert.Error(t, err)
	assert.False(t, found)
}

func TestStorage_Coins(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	coin := &domain.CoinInfo{
		AssetID:      "bitcoin",
		Symbol:       "btc",
		Name:         "Bitcoin",
		IconPath:     "/tmp/bitcoin.png",
		LastSyncedAt: time.Now(),
	}
	require.NoError(t, s.UpsertCoin(ctx, coin))

	fetched, err := s.GetCoin(ctx, "bitcoin")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "btc", fetched.Symbol)

	// Update
	update := &domain.CoinInfo{AssetID: "bitcoin", Symbol: "btc", Name: "Bitcoin", IconPath: "/tmp/btc2.png", LastSyncedAt: time.Now()}
	require.NoError(t, s.UpsertCoin(ctx, update))
	fetched, err = s.GetCoin(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/btc2.png", fetched.IconPath)

	all, err := s.GetAllCoins(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteCoin(ctx, "bitcoin"))
	fetched, err = s.GetCoin(ctx, "bitcoin")
	require.NoError(t, err)
	assert.Nil(t, fetched)
}

func TestNewStorage_EmptyPath(t *testing.T) {
	_, err := NewStorage("")
	var ce *domain.ConfigError
	assert.ErrorAs(t, err, &ce)
}
