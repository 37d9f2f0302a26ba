package syncengine

import (
	"testing"

	"property-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		published string
		regime    domain.QuotingRegime
		official  string
		parallel  string
		want      string
	}{
		{"official is identity", "99500", domain.RegimeOfficialUSD, "6.96", "10.5", "99500"},
		{"parallel rounds half away from zero", "1000", domain.RegimeParallelUSD, "6.96", "10.5", "1509"},
		{"local currency", "7000", domain.RegimeLocalCurrency, "6.96", "10.5", "1006"},
		{"local currency other parallel rate", "7000", domain.RegimeLocalCurrency, "6.96", "12", "1006"},
		{"zero price", "0", domain.RegimeOfficialUSD, "6.96", "10.5", "0"},
		{"negative price", "-5", domain.RegimeLocalCurrency, "6.96", "10.5", "0"},
		{"zero official rate", "1000", domain.RegimeParallelUSD, "0", "10.5", "0"},
		{"negative parallel rate", "1000", domain.RegimeOfficialUSD, "6.96", "-1", "0"},
		{"unknown regime", "1000", domain.QuotingRegime("eur"), "6.96", "10.5", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(dec(tt.published), tt.regime, dec(tt.official), dec(tt.parallel))
			assert.True(t, dec(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestNormalize_OfficialRoundTrip(t *testing.T) {
	prices := []string{"1", "45000", "99500", "1250000.50"}
	rates := [][2]string{{"6.96", "10.5"}, {"1", "1"}, {"7.2", "15"}}

	for _, p := range prices {
		for _, r := range rates {
			got := Normalize(dec(p), domain.RegimeOfficialUSD, dec(r[0]), dec(r[1]))
			assert.True(t, dec(p).Equal(got), "price %s at %v", p, r)
		}
	}
}

func TestRecompute_OverridesCanonicalPrice(t *testing.T) {
	rec := baseRecord()
	rec.PublishedPrice = dec("1000")
	rec.QuotingRegime = domain.RegimeParallelUSD
	rec.CanonicalPriceUSD = dec("1")

	rates := domain.Rates{Official: dec("6.96"), Parallel: dec("10.5")}
	out := Recompute(rec, rates)

	assert.True(t, dec("1509").Equal(out.CanonicalPriceUSD))
	assert.True(t, dec("1").Equal(rec.CanonicalPriceUSD), "input record must not change")
}
