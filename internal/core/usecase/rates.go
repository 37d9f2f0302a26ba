package usecase

import (
	"context"
	"fmt"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
)

// RatesUseCase отдает текущие курсы: кэш -> последний сохраненный -> значения по умолчанию.
// Refresh вызывается по расписанию.
type RatesUseCase struct {
	provider port.RateProviderPort
	storage  port.RateStoragePort
	cache    port.RateCachePort
	defaults domain.Rates
}

// NewRatesUseCase: provider и storage могут быть nil (офлайн-режим CLI)
func NewRatesUseCase(provider port.RateProviderPort, storage port.RateStoragePort, cache port.RateCachePort, defaults domain.Rates) *RatesUseCase {
	if defaults.Source == "" {
		defaults.Source = "default"
	}
	return &RatesUseCase{
		provider: provider,
		storage:  storage,
		cache:    cache,
		defaults: defaults,
	}
}

func (uc *RatesUseCase) CurrentRates(ctx context.Context) (domain.Rates, error) {
	if uc.cache != nil {
		if rates, ok := uc.cache.Get(); ok {
			return rates, nil
		}
	}

	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"use_case": "CurrentRates"})

	if uc.storage != nil {
		latest, err := uc.storage.LatestRates(ctx)
		if err != nil {
			logger.Warn("Failed to read persisted rates, falling back to defaults", port.Fields{"error": err.Error()})
		} else if latest != nil && latest.Usable() {
			if uc.cache != nil {
				uc.cache.Set(*latest)
			}
			return *latest, nil
		}
	}

	if !uc.defaults.Usable() {
		return domain.Rates{}, domain.ErrRatesUnavailable
	}
	logger.Debug("Using default rates", port.Fields{
		"official": uc.defaults.Official.String(),
		"parallel": uc.defaults.Parallel.String(),
	})
	return uc.defaults, nil
}

// Refresh забирает курсы из внешнего API, сохраняет и кладет в кэш
func (uc *RatesUseCase) Refresh(ctx context.Context) (*domain.Rates, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{"use_case": "RefreshRates"})

	if uc.provider == nil {
		return nil, fmt.Errorf("%w: no rate provider configured", domain.ErrRatesUnavailable)
	}

	rates, err := uc.provider.FetchRates(ctx)
	if err != nil {
		ucLogger.Error("Failed to fetch rates", err, nil)
		return nil, fmt.Errorf("failed to fetch rates: %w", err)
	}
	if !rates.Usable() {
		ucLogger.Warn("Provider returned unusable rates, keeping previous", port.Fields{
			"official": rates.Official.String(),
			"parallel": rates.Parallel.String(),
		})
		return nil, domain.ErrRatesUnavailable
	}

	if uc.storage != nil {
		if err := uc.storage.SaveRates(ctx, rates); err != nil {
			ucLogger.Error("Failed to persist rates", err, nil)
			return nil, fmt.Errorf("failed to persist rates: %w", err)
		}
	}
	if uc.cache != nil {
		uc.cache.Set(rates)
	}

	ucLogger.Info("Rates refreshed", port.Fields{
		"official": rates.Official.String(),
		"parallel": rates.Parallel.String(),
		"source":   rates.Source,
	})
	return &rates, nil
}
