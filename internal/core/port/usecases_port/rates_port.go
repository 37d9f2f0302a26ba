package usecases_port

import (
	"context"

	"property-sync-service/internal/core/domain"
)

// RatesPort - текущие курсы и их обновление по расписанию
type RatesPort interface {
	CurrentRates(ctx context.Context) (domain.Rates, error)
	Refresh(ctx context.Context) (*domain.Rates, error)
}
