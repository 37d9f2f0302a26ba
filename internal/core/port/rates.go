package port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

// RateSourcePort - откуда ядро берет текущие курсы
type RateSourcePort interface {
	CurrentRates(ctx context.Context) (domain.Rates, error)
}

// RateProviderPort - внешний API курсов
type RateProviderPort interface {
	FetchRates(ctx context.Context) (domain.Rates, error)
}

// RateStoragePort - история курсов в БД, последний известный курс переживает рестарт
type RateStoragePort interface {
	SaveRates(ctx context.Context, rates domain.Rates) error
	LatestRates(ctx context.Context) (*domain.Rates, error)
}

// RateCachePort - быстрый кэш в памяти процесса
type RateCachePort interface {
	Get() (domain.Rates, bool)
	Set(rates domain.Rates)
}
