package recordcodec

import (
	"testing"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationBucket(t *testing.T) {
	assert.Nil(t, LocationBucket(nil))

	bucket := LocationBucket(&domain.GeoPoint{Lat: -17.7833, Lon: -63.1821})
	require.NotNil(t, bucket)
	assert.Len(t, *bucket, LocationBucketPrecision)

	near := LocationBucket(&domain.GeoPoint{Lat: -17.78331, Lon: -63.18211})
	assert.Equal(t, *bucket, *near)
}

func TestEncodeValue(t *testing.T) {
	data, err := EncodeValue(nil)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = EncodeValue(decimal.RequireFromString("85.5"))
	require.NoError(t, err)

	v, err := DecodeValue(data)
	require.NoError(t, err)
	assert.Equal(t, "85.5", v)

	data, err = EncodeValue([]string{"Piscina"})
	require.NoError(t, err)
	v, err = DecodeValue(data)
	require.NoError(t, err)
	assert.Equal(t, []any{"Piscina"}, v)
}

func TestInclusion(t *testing.T) {
	surcharge := decimal.NewFromInt(5000)
	data, err := EncodeInclusion(domain.Inclusion{State: domain.InclusionIncluded, Surcharge: &surcharge})
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":"included"}`, string(data))

	inc, err := DecodeInclusion(nil)
	require.NoError(t, err)
	assert.Equal(t, domain.InclusionUnconfirmed, inc.State)

	_, err = DecodeInclusion([]byte(`{"state":"maybe"}`))
	assert.ErrorIs(t, err, domain.ErrUnknownInclusionState)
}

func TestDeliveryMonth(t *testing.T) {
	empty := ""
	m, err := DecodeDeliveryMonth(&empty)
	require.NoError(t, err)
	assert.Nil(t, m)

	ym := domain.NewYearMonth(2026, time.June)
	s := EncodeDeliveryMonth(&ym)
	require.NotNil(t, s)

	back, err := DecodeDeliveryMonth(s)
	require.NoError(t, err)
	assert.Equal(t, ym, *back)
}

func TestStoredTime(t *testing.T) {
	in := time.Date(2025, 3, 10, 12, 0, 0, 123456789, time.FixedZone("BOT", -4*3600))
	out := StoredTime(in)
	assert.Equal(t, time.UTC, out.Location())
	assert.Equal(t, 123456000, out.Nanosecond())
	assert.True(t, in.Truncate(time.Microsecond).Equal(out))
}
