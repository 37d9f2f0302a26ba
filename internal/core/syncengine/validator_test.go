package syncengine

import (
	"testing"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_CleanRecord(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	res := v.Validate(baseRecord(), testNow)

	assert.True(t, res.Clean(), "errors: %v warnings: %v", res.Errors, res.Warnings)
}

func TestValidator_PricePerSqmBoundaries(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	tests := []struct {
		name         string
		pricePerSqm  string
		wantErrors   int
		wantWarnings int
	}{
		{"lower warning boundary is clean", "1200", 0, 0},
		{"upper warning boundary is clean", "3200", 0, 0},
		{"just below market", "1199", 0, 1},
		{"just above market", "3201", 0, 1},
		{"hard minimum is only a warning", "800", 0, 1},
		{"hard maximum is only a warning", "4000", 0, 1},
		{"below hard minimum", "799", 1, 0},
		{"above hard maximum", "4001", 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			rec.Area = dec("100")
			rec.CanonicalPriceUSD = dec(tt.pricePerSqm).Mul(rec.Area)

			res := v.Validate(rec, testNow)

			assert.Len(t, res.Errors, tt.wantErrors, "errors: %v", res.Errors)
			assert.Len(t, res.Warnings, tt.wantWarnings, "warnings: %v", res.Warnings)
		})
	}
}

func TestValidator_IncompletePriceSkipsPriceChecks(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	rec := baseRecord()
	rec.CanonicalPriceUSD = dec("0")

	res := v.Validate(rec, testNow)
	assert.True(t, res.Clean(), "warnings: %v", res.Warnings)
}

func TestValidator_SoftRules(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	tests := []struct {
		name   string
		mutate func(r *domain.PropertyRecord)
		want   string
	}{
		{
			name: "tiny area",
			mutate: func(r *domain.PropertyRecord) {
				r.Area, r.Bedrooms, r.CanonicalPriceUSD = dec("24"), 0, dec("40000")
			},
			want: "Superficie de 24m² parece muy pequeña",
		},
		{
			name: "huge area",
			mutate: func(r *domain.PropertyRecord) {
				r.Area, r.CanonicalPriceUSD = dec("301"), dec("600000")
			},
			want: "Superficie de 301m² parece muy grande",
		},
		{
			name:   "no bathrooms",
			mutate: func(r *domain.PropertyRecord) { r.Bathrooms = dec("0") },
			want:   "La propiedad no tiene baños registrados",
		},
		{
			name:   "too many bathrooms",
			mutate: func(r *domain.PropertyRecord) { r.Bathrooms = dec("5.5") },
			want:   "5.5 baños para 3 dormitorios parece excesivo",
		},
		{
			name: "two bedrooms in small area",
			mutate: func(r *domain.PropertyRecord) {
				r.Bedrooms, r.Area, r.CanonicalPriceUSD = 2, dec("39"), dec("70000")
			},
			want: "2 dormitorios en 39m² parece muy reducido",
		},
		{
			name: "parking surcharge outside usual range",
			mutate: func(r *domain.PropertyRecord) {
				r.Parking = domain.NewInclusion(domain.InclusionExcludedWithSurcharge, decPtr("2999"))
			},
			want: "El recargo de parqueo ($2999) está fuera del rango habitual de $3000 a $25000",
		},
		{
			name: "storage surcharge outside usual range",
			mutate: func(r *domain.PropertyRecord) {
				r.Storage = domain.NewInclusion(domain.InclusionExcludedWithSurcharge, decPtr("10001"))
			},
			want: "El recargo de baulera ($10001) está fuera del rango habitual de $1000 a $10000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			tt.mutate(&rec)

			res := v.Validate(rec, testNow)

			assert.Empty(t, res.Errors)
			require.Len(t, res.Warnings, 1, "warnings: %v", res.Warnings)
			assert.Equal(t, tt.want, res.Warnings[0])
		})
	}
}

func TestValidator_ThreeBedroomsWarnOnce(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	rec := baseRecord()
	rec.Area = dec("38")
	rec.CanonicalPriceUSD = dec("99500")

	res := v.Validate(rec, testNow)

	assert.Equal(t, []string{"3 dormitorios en 38m² parece muy reducido"}, res.Warnings)
}

func TestValidator_HardRules(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	past := domain.NewYearMonth(2025, time.February)
	current := domain.NewYearMonth(2025, time.March)

	tests := []struct {
		name       string
		mutate     func(r *domain.PropertyRecord)
		wantErrors int
	}{
		{
			name: "delivery date in the past while pre-sale",
			mutate: func(r *domain.PropertyRecord) {
				r.ConstructionState = domain.ConstructionPreSale
				r.EstimatedDeliveryMonth = &past
			},
			wantErrors: 1,
		},
		{
			name: "delivery in the current month is fine",
			mutate: func(r *domain.PropertyRecord) {
				r.ConstructionState = domain.ConstructionUnderConstruction
				r.EstimatedDeliveryMonth = &current
			},
			wantErrors: 0,
		},
		{
			name: "past date ignored for used property",
			mutate: func(r *domain.PropertyRecord) {
				r.ConstructionState = domain.ConstructionUsed
				r.EstimatedDeliveryMonth = &past
			},
			wantErrors: 0,
		},
		{
			name: "surcharge state without amount",
			mutate: func(r *domain.PropertyRecord) {
				r.Parking = domain.Inclusion{State: domain.InclusionExcludedWithSurcharge}
			},
			wantErrors: 1,
		},
		{
			name: "zero storage surcharge",
			mutate: func(r *domain.PropertyRecord) {
				r.Storage = domain.NewInclusion(domain.InclusionExcludedWithSurcharge, decPtr("0"))
			},
			wantErrors: 1,
		},
		{
			name:       "zero area",
			mutate:     func(r *domain.PropertyRecord) { r.Area = dec("0") },
			wantErrors: 1,
		},
		{
			name:       "negative area",
			mutate:     func(r *domain.PropertyRecord) { r.Area = dec("-5") },
			wantErrors: 1,
		},
		{
			name:       "negative bedrooms",
			mutate:     func(r *domain.PropertyRecord) { r.Bedrooms = -4 },
			wantErrors: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord()
			tt.mutate(&rec)

			res := v.Validate(rec, testNow)
			assert.Len(t, res.Errors, tt.wantErrors, "errors: %v", res.Errors)
		})
	}
}

func TestValidator_ImpossibleDimensionsBlockSave(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())

	rec := baseRecord()
	rec.Area = dec("0")
	res := v.Validate(rec, testNow)
	assert.Equal(t, []string{"La superficie (0m²) debe ser mayor a 0"}, res.Errors)
	assert.True(t, res.Blocked())
	assert.Equal(t, GateReject, Gate(res, true))

	rec = baseRecord()
	rec.Bedrooms = -4
	res = v.Validate(rec, testNow)
	assert.Equal(t, []string{"El número de dormitorios (-4) no puede ser negativo"}, res.Errors)
	assert.Empty(t, res.Warnings, "bathroom ratio is meaningless for a negative bedroom count")
}

func TestValidator_ServiceArea(t *testing.T) {
	cfg := DefaultValidatorConfig()
	cfg.ServiceArea = ServiceArea{GeohashCells: []string{"6sg4"}}
	v := NewValidator(cfg)

	inside := baseRecord()
	res := v.Validate(inside, testNow)
	assert.Empty(t, res.Warnings)

	outside := baseRecord()
	outside.GPS = &domain.GeoPoint{Lat: -16.5, Lon: -68.15}
	res = v.Validate(outside, testNow)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "fuera del área de servicio")
}

func TestServiceArea_BoundingBox(t *testing.T) {
	area := ServiceArea{MinLat: -18, MaxLat: -17.5, MinLon: -63.4, MaxLon: -63}

	assert.True(t, area.Contains(domain.GeoPoint{Lat: -17.765, Lon: -63.195}))
	assert.False(t, area.Contains(domain.GeoPoint{Lat: -16.5, Lon: -68.15}))
	assert.True(t, ServiceArea{}.Contains(domain.GeoPoint{Lat: 40, Lon: -3.7}), "unconfigured area accepts everything")
}

func TestGate(t *testing.T) {
	hard := domain.ValidationResult{Errors: []string{"x"}, Warnings: []string{"y"}}
	soft := domain.ValidationResult{Warnings: []string{"y"}}
	clean := domain.ValidationResult{}

	assert.Equal(t, GateReject, Gate(hard, false))
	assert.Equal(t, GateReject, Gate(hard, true), "confirmation never overrides hard errors")
	assert.Equal(t, GateNeedsConfirmation, Gate(soft, false))
	assert.Equal(t, GateProceed, Gate(soft, true))
	assert.Equal(t, GateProceed, Gate(clean, false))
}

func TestGateError(t *testing.T) {
	err := GateError(domain.ValidationResult{Errors: []string{"x"}}, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)

	err = GateError(domain.ValidationResult{Warnings: []string{"y"}}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"y"}, verr.Result.Warnings)

	assert.NoError(t, GateError(domain.ValidationResult{Warnings: []string{"y"}}, true))
}
