package syncengine

import (
	"fmt"
	"strings"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/mmcloughlin/geohash"
	"github.com/shopspring/decimal"
)

// ServiceArea - зона обслуживания: прямоугольник и/или набор ячеек geohash.
// Пустая зона (ничего не задано) проверку GPS отключает.
type ServiceArea struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
	GeohashCells   []string
}

func (a ServiceArea) hasBox() bool {
	return a.MinLat != 0 || a.MaxLat != 0 || a.MinLon != 0 || a.MaxLon != 0
}

func (a ServiceArea) Configured() bool {
	return a.hasBox() || len(a.GeohashCells) > 0
}

// Contains - точка внутри прямоугольника или в одной из ячеек
func (a ServiceArea) Contains(p domain.GeoPoint) bool {
	if !a.Configured() {
		return true
	}
	if a.hasBox() &&
		p.Lat >= a.MinLat && p.Lat <= a.MaxLat &&
		p.Lon >= a.MinLon && p.Lon <= a.MaxLon {
		return true
	}
	if len(a.GeohashCells) == 0 {
		return false
	}

	hash := geohash.EncodeWithPrecision(p.Lat, p.Lon, 12)
	for _, cell := range a.GeohashCells {
		cell = strings.ToLower(strings.TrimSpace(cell))
		if cell != "" && strings.HasPrefix(hash, cell) {
			return true
		}
	}
	return false
}

// ValidatorConfig - пороги проверок правдоподобия
type ValidatorConfig struct {
	PricePerSqmHardMin decimal.Decimal
	PricePerSqmHardMax decimal.Decimal
	PricePerSqmWarnMin decimal.Decimal
	PricePerSqmWarnMax decimal.Decimal

	AreaWarnMin decimal.Decimal
	AreaWarnMax decimal.Decimal

	ParkingSurchargeMin decimal.Decimal
	ParkingSurchargeMax decimal.Decimal
	StorageSurchargeMin decimal.Decimal
	StorageSurchargeMax decimal.Decimal

	ServiceArea ServiceArea
}

// DefaultValidatorConfig - пороги рынка по умолчанию, без зоны обслуживания
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		PricePerSqmHardMin:  decimal.NewFromInt(800),
		PricePerSqmHardMax:  decimal.NewFromInt(4000),
		PricePerSqmWarnMin:  decimal.NewFromInt(1200),
		PricePerSqmWarnMax:  decimal.NewFromInt(3200),
		AreaWarnMin:         decimal.NewFromInt(25),
		AreaWarnMax:         decimal.NewFromInt(300),
		ParkingSurchargeMin: decimal.NewFromInt(3000),
		ParkingSurchargeMax: decimal.NewFromInt(25000),
		StorageSurchargeMin: decimal.NewFromInt(1000),
		StorageSurchargeMax: decimal.NewFromInt(10000),
	}
}

// Validator проверяет запись перед сохранением. Без состояния, безопасен для
// конкурентного использования.
type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

func (v *Validator) Config() ValidatorConfig {
	return v.cfg
}

// Validate прогоняет все проверки независимо друг от друга.
// now нужен только для проверки даты сдачи.
func (v *Validator) Validate(rec domain.PropertyRecord, now time.Time) domain.ValidationResult {
	var res domain.ValidationResult

	v.checkDimensions(rec, &res)
	v.checkPricePerSqm(rec, &res)
	v.checkArea(rec, &res)
	v.checkBathrooms(rec, &res)
	v.checkBedroomsVsArea(rec, &res)
	v.checkDeliveryDate(rec, now, &res)
	v.checkGPS(rec, &res)
	v.checkSurcharge(rec.Parking, "parqueo", v.cfg.ParkingSurchargeMin, v.cfg.ParkingSurchargeMax, &res)
	v.checkSurcharge(rec.Storage, "baulera", v.cfg.StorageSurchargeMin, v.cfg.StorageSurchargeMax, &res)

	return res
}

func (v *Validator) checkPricePerSqm(rec domain.PropertyRecord, res *domain.ValidationResult) {
	// запись неполная, считать нечего
	if !rec.CanonicalPriceUSD.IsPositive() || !rec.Area.IsPositive() {
		return
	}

	ppsm := rec.CanonicalPriceUSD.Div(rec.Area)
	shown := money(ppsm.Round(0))

	switch {
	case ppsm.LessThan(v.cfg.PricePerSqmHardMin):
		res.Errors = append(res.Errors, fmt.Sprintf(
			"El precio por m² (%s) es inferior al mínimo aceptable de %s", shown, money(v.cfg.PricePerSqmHardMin)))
	case ppsm.GreaterThan(v.cfg.PricePerSqmHardMax):
		res.Errors = append(res.Errors, fmt.Sprintf(
			"El precio por m² (%s) supera el máximo aceptable de %s", shown, money(v.cfg.PricePerSqmHardMax)))
	case ppsm.LessThan(v.cfg.PricePerSqmWarnMin):
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"El precio por m² (%s) es inusualmente bajo para el mercado", shown))
	case ppsm.GreaterThan(v.cfg.PricePerSqmWarnMax):
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"El precio por m² (%s) es inusualmente alto para el mercado", shown))
	}
}

// checkDimensions: площадь и число спален - не пробел в данных, а часть модели объекта
func (v *Validator) checkDimensions(rec domain.PropertyRecord, res *domain.ValidationResult) {
	if !rec.Area.IsPositive() {
		res.Errors = append(res.Errors, fmt.Sprintf("La superficie (%sm²) debe ser mayor a 0", rec.Area.String()))
	}
	if rec.Bedrooms < 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("El número de dormitorios (%d) no puede ser negativo", rec.Bedrooms))
	}
}

func (v *Validator) checkArea(rec domain.PropertyRecord, res *domain.ValidationResult) {
	if !rec.Area.IsPositive() {
		return
	}
	switch {
	case rec.Area.LessThan(v.cfg.AreaWarnMin):
		res.Warnings = append(res.Warnings, fmt.Sprintf("Superficie de %sm² parece muy pequeña", rec.Area.String()))
	case rec.Area.GreaterThan(v.cfg.AreaWarnMax):
		res.Warnings = append(res.Warnings, fmt.Sprintf("Superficie de %sm² parece muy grande", rec.Area.String()))
	}
}

func (v *Validator) checkBathrooms(rec domain.PropertyRecord, res *domain.ValidationResult) {
	switch {
	case !rec.Bathrooms.IsPositive():
		res.Warnings = append(res.Warnings, "La propiedad no tiene baños registrados")
	case rec.Bedrooms >= 0 && rec.Bathrooms.GreaterThan(decimal.NewFromInt(int64(rec.Bedrooms+2))):
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%s baños para %d dormitorios parece excesivo", rec.Bathrooms.String(), rec.Bedrooms))
	}
}

func (v *Validator) checkBedroomsVsArea(rec domain.PropertyRecord, res *domain.ValidationResult) {
	if !rec.Area.IsPositive() {
		return
	}
	cramped := (rec.Bedrooms >= 3 && rec.Area.LessThan(decimal.NewFromInt(60))) ||
		(rec.Bedrooms >= 2 && rec.Area.LessThan(decimal.NewFromInt(40)))
	if cramped {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"%d dormitorios en %sm² parece muy reducido", rec.Bedrooms, rec.Area.String()))
	}
}

func (v *Validator) checkDeliveryDate(rec domain.PropertyRecord, now time.Time, res *domain.ValidationResult) {
	if !rec.ConstructionState.ExpectsDelivery() || rec.EstimatedDeliveryMonth == nil {
		return
	}
	if rec.EstimatedDeliveryMonth.Before(domain.YearMonthOf(now)) {
		res.Errors = append(res.Errors, fmt.Sprintf(
			"La fecha de entrega estimada (%s) ya pasó para un proyecto en estado %s",
			rec.EstimatedDeliveryMonth.String(), rec.ConstructionState))
	}
}

func (v *Validator) checkGPS(rec domain.PropertyRecord, res *domain.ValidationResult) {
	if rec.GPS == nil || !v.cfg.ServiceArea.Configured() {
		return
	}
	if !v.cfg.ServiceArea.Contains(*rec.GPS) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"Las coordenadas GPS (%.5f, %.5f) están fuera del área de servicio", rec.GPS.Lat, rec.GPS.Lon))
	}
}

func (v *Validator) checkSurcharge(inc domain.Inclusion, what string, lo, hi decimal.Decimal, res *domain.ValidationResult) {
	if inc.State != domain.InclusionExcludedWithSurcharge {
		return
	}
	if inc.Surcharge == nil || !inc.Surcharge.IsPositive() {
		res.Errors = append(res.Errors, fmt.Sprintf("El recargo de %s debe ser mayor a 0", what))
		return
	}
	if inc.Surcharge.LessThan(lo) || inc.Surcharge.GreaterThan(hi) {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"El recargo de %s (%s) está fuera del rango habitual de %s a %s",
			what, money(*inc.Surcharge), money(lo), money(hi)))
	}
}

func money(d decimal.Decimal) string {
	return "$" + d.String()
}

// GateDecision - что делать с результатом проверки
type GateDecision int

const (
	GateProceed GateDecision = iota
	GateNeedsConfirmation
	GateReject
)

func (g GateDecision) String() string {
	switch g {
	case GateProceed:
		return "proceed"
	case GateNeedsConfirmation:
		return "needs_confirmation"
	case GateReject:
		return "reject"
	}
	return "unknown"
}

// Gate: ошибки отклоняют всегда, предупреждения требуют явного подтверждения
func Gate(res domain.ValidationResult, confirmed bool) GateDecision {
	if res.Blocked() {
		return GateReject
	}
	if res.NeedsConfirmation() && !confirmed {
		return GateNeedsConfirmation
	}
	return GateProceed
}

// GateError переводит решение в ошибку для вызывающего кода
func GateError(res domain.ValidationResult, confirmed bool) error {
	if Gate(res, confirmed) == GateProceed {
		return nil
	}
	return domain.NewValidationError(res)
}
