package postgres

import (
	"testing"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordArgs_MatchUpdatePlaceholders(t *testing.T) {
	floor := 4
	month := domain.NewYearMonth(2026, time.June)
	rec := domain.PropertyRecord{
		ID:                     "unit-1",
		Title:                  "Depto 4B",
		PublishedPrice:         decimal.NewFromInt(99500),
		QuotingRegime:          domain.RegimeOfficialUSD,
		CanonicalPriceUSD:      decimal.NewFromInt(99500),
		Area:                   decimal.RequireFromString("85.5"),
		Bedrooms:               2,
		Bathrooms:              decimal.RequireFromString("1.5"),
		Floor:                  &floor,
		GPS:                    &domain.GeoPoint{Lat: -17.78, Lon: -63.18},
		Parking:                domain.NewInclusion(domain.InclusionIncluded, nil),
		ConstructionState:      domain.ConstructionPreSale,
		EstimatedDeliveryMonth: &month,
	}

	args, err := recordArgs(rec)
	require.NoError(t, err)

	// $1 и $2 - id и версия, остальное из recordArgs
	assert.Len(t, args, 20)
	assert.Contains(t, updateRecordSQL, "$22")
	assert.NotContains(t, updateRecordSQL, "$23")

	assert.Equal(t, "85.5", args[5])
	assert.Equal(t, &floor, args[8])
	bucket, ok := args[11].(*string)
	require.True(t, ok)
	require.NotNil(t, bucket)
	assert.Equal(t, "2026-06", *args[15].(*string))
	assert.Equal(t, []string{}, args[16], "nil lists are stored as empty arrays")
}

func TestRecordArgs_NoGPS(t *testing.T) {
	args, err := recordArgs(domain.PropertyRecord{ID: "x"})
	require.NoError(t, err)

	assert.Nil(t, args[9])
	assert.Nil(t, args[10])
	assert.Nil(t, args[11])
}
