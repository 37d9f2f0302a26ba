package postgres

import (
	"context"
	"errors"
	"fmt"

	"property-sync-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresRatesStorageAdapter - история курсов, таблица exchange_rates
type PostgresRatesStorageAdapter struct {
	pool *pgxpool.Pool
}

func NewPostgresRatesStorageAdapter(pool *pgxpool.Pool) (*PostgresRatesStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresRatesStorageAdapter{pool: pool}, nil
}

func (a *PostgresRatesStorageAdapter) SaveRates(ctx context.Context, rates domain.Rates) error {
	_, err := a.pool.Exec(ctx, `
		INSERT INTO exchange_rates (official_rate, parallel_rate, as_of, source)
		VALUES ($1::numeric, $2::numeric, $3, $4)`,
		rates.Official.String(), rates.Parallel.String(), rates.AsOf, rates.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to save exchange rates: %w", err)
	}
	return nil
}

// LatestRates: пустая таблица - (nil, nil)
func (a *PostgresRatesStorageAdapter) LatestRates(ctx context.Context) (*domain.Rates, error) {
	var (
		official, parallel string
		rates              domain.Rates
	)
	err := a.pool.QueryRow(ctx, `
		SELECT official_rate::text, parallel_rate::text, as_of, source
		FROM exchange_rates
		ORDER BY as_of DESC, id DESC
		LIMIT 1`).Scan(&official, &parallel, &rates.AsOf, &rates.Source)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest exchange rates: %w", err)
	}

	if rates.Official, err = decimal.NewFromString(official); err != nil {
		return nil, fmt.Errorf("failed to parse official rate %q: %w", official, err)
	}
	if rates.Parallel, err = decimal.NewFromString(parallel); err != nil {
		return nil, fmt.Errorf("failed to parse parallel rate %q: %w", parallel, err)
	}
	rates.AsOf = rates.AsOf.UTC()
	return &rates, nil
}
