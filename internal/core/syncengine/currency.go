package syncengine

import (
	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Normalize переводит опубликованную цену в канонический доллар по официальному курсу.
//   - official_usd: цена уже каноническая
//   - parallel_usd: round(price * parallel / official)
//   - local_currency: round(price / official)
//
// Неположительная цена или курс, как и неизвестный режим, дают 0.
func Normalize(published decimal.Decimal, regime domain.QuotingRegime, officialRate, parallelRate decimal.Decimal) decimal.Decimal {
	if !published.IsPositive() || !officialRate.IsPositive() || !parallelRate.IsPositive() {
		return decimal.Zero
	}

	switch regime {
	case domain.RegimeOfficialUSD:
		return published
	case domain.RegimeParallelUSD:
		return published.Mul(parallelRate).Div(officialRate).Round(0)
	case domain.RegimeLocalCurrency:
		return published.Div(officialRate).Round(0)
	default:
		return decimal.Zero
	}
}

// NormalizeWith - то же самое с курсами из domain.Rates
func NormalizeWith(rates domain.Rates, published decimal.Decimal, regime domain.QuotingRegime) decimal.Decimal {
	return Normalize(published, regime, rates.Official, rates.Parallel)
}

// Recompute возвращает копию записи с пересчитанной канонической ценой.
// Каноническая цена никогда не редактируется напрямую.
func Recompute(rec domain.PropertyRecord, rates domain.Rates) domain.PropertyRecord {
	return rec.WithCanonicalPrice(NormalizeWith(rates, rec.PublishedPrice, rec.QuotingRegime))
}
