package usecase

import (
	"context"
	"testing"

	"property-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultRates = domain.Rates{Official: dec("6.96"), Parallel: dec("10")}

func TestCurrentRates_Fallbacks(t *testing.T) {
	t.Run("cache first", func(t *testing.T) {
		cached := domain.Rates{Official: dec("7"), Parallel: dec("11"), Source: "cache"}
		uc := NewRatesUseCase(nil, &memRateStorage{latest: &testRates}, &mapCache{rates: &cached}, defaultRates)

		rates, err := uc.CurrentRates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "cache", rates.Source)
	})

	t.Run("persisted rates warm the cache", func(t *testing.T) {
		cache := &mapCache{}
		uc := NewRatesUseCase(nil, &memRateStorage{latest: &testRates}, cache, defaultRates)

		rates, err := uc.CurrentRates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test", rates.Source)
		require.NotNil(t, cache.rates)
		assert.Equal(t, "test", cache.rates.Source)
	})

	t.Run("defaults when storage fails", func(t *testing.T) {
		uc := NewRatesUseCase(nil, &memRateStorage{err: errBoom}, &mapCache{}, defaultRates)

		rates, err := uc.CurrentRates(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "default", rates.Source)
		assert.True(t, dec("10").Equal(rates.Parallel))
	})

	t.Run("no usable rates at all", func(t *testing.T) {
		uc := NewRatesUseCase(nil, nil, nil, domain.Rates{})

		_, err := uc.CurrentRates(context.Background())
		assert.ErrorIs(t, err, domain.ErrRatesUnavailable)
	})
}

func TestRefreshRates(t *testing.T) {
	provider := &fakeProvider{rates: domain.Rates{Official: dec("6.96"), Parallel: dec("12.1"), AsOf: testNow, Source: "api"}}
	storage := &memRateStorage{}
	cache := &mapCache{}
	uc := NewRatesUseCase(provider, storage, cache, defaultRates)

	rates, err := uc.Refresh(context.Background())
	require.NoError(t, err)
	assert.True(t, dec("12.1").Equal(rates.Parallel))
	require.NotNil(t, storage.latest)
	assert.Equal(t, "api", storage.latest.Source)

	current, err := uc.CurrentRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "api", current.Source)
}

func TestRefreshRates_KeepsPreviousOnBadData(t *testing.T) {
	cached := testRates
	cache := &mapCache{rates: &cached}
	storage := &memRateStorage{}

	uc := NewRatesUseCase(&fakeProvider{rates: domain.Rates{Official: dec("6.96")}}, storage, cache, defaultRates)
	_, err := uc.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRatesUnavailable)
	assert.Nil(t, storage.latest)
	assert.Equal(t, "test", cache.rates.Source)

	uc = NewRatesUseCase(&fakeProvider{err: errBoom}, storage, cache, defaultRates)
	_, err = uc.Refresh(context.Background())
	assert.ErrorIs(t, err, errBoom)

	uc = NewRatesUseCase(nil, storage, cache, defaultRates)
	_, err = uc.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRatesUnavailable)
}
