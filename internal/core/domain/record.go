package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordID - непрозрачный идентификатор записи. Целочисленные id хранятся строкой.
type RecordID string

// QuotingRegime - валютный режим, в котором опубликована цена
type QuotingRegime string

const (
	RegimeOfficialUSD   QuotingRegime = "official_usd"
	RegimeParallelUSD   QuotingRegime = "parallel_usd"
	RegimeLocalCurrency QuotingRegime = "local_currency"
)

func (q QuotingRegime) Valid() bool {
	switch q {
	case RegimeOfficialUSD, RegimeParallelUSD, RegimeLocalCurrency:
		return true
	}
	return false
}

func ParseQuotingRegime(s string) (QuotingRegime, error) {
	q := QuotingRegime(strings.TrimSpace(s))
	if !q.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownQuotingRegime, s)
	}
	return q, nil
}

// ConstructionState - стадия строительства объекта
type ConstructionState string

const (
	ConstructionImmediateDelivery ConstructionState = "immediate_delivery"
	ConstructionUnderConstruction ConstructionState = "under_construction"
	ConstructionPreSale           ConstructionState = "pre_sale"
	ConstructionBlueprint         ConstructionState = "blueprint"
	ConstructionUsed              ConstructionState = "used"
	ConstructionUnspecified       ConstructionState = "unspecified"
)

func (s ConstructionState) Valid() bool {
	switch s {
	case ConstructionImmediateDelivery, ConstructionUnderConstruction, ConstructionPreSale,
		ConstructionBlueprint, ConstructionUsed, ConstructionUnspecified:
		return true
	}
	return false
}

func ParseConstructionState(s string) (ConstructionState, error) {
	st := ConstructionState(strings.TrimSpace(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown construction state %q", ErrInvalidRecord, s)
	}
	return st, nil
}

// ExpectsDelivery - для этих стадий имеет смысл дата сдачи
func (s ConstructionState) ExpectsDelivery() bool {
	switch s {
	case ConstructionUnderConstruction, ConstructionPreSale, ConstructionBlueprint:
		return true
	}
	return false
}

// GeoPoint - координаты объекта
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// AgentContact сравнивается как единое целое
type AgentContact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

// PropertyRecord - снимок записи об объекте недвижимости.
// Значение неизменяемое: все пути изменения возвращают новую копию.
type PropertyRecord struct {
	ID       RecordID  `json:"id"`
	ParentID *RecordID `json:"parent_id,omitempty"`

	Title       string `json:"title"`
	ProjectName string `json:"project_name"`

	PublishedPrice    decimal.Decimal `json:"published_price"`
	QuotingRegime     QuotingRegime   `json:"quoting_regime"`
	CanonicalPriceUSD decimal.Decimal `json:"canonical_price_usd"`

	Area      decimal.Decimal `json:"area"`
	Bedrooms  int             `json:"bedrooms"`
	Bathrooms decimal.Decimal `json:"bathrooms"`
	Floor     *int            `json:"floor,omitempty"`
	GPS       *GeoPoint       `json:"gps,omitempty"`

	Parking Inclusion `json:"parking"`
	Storage Inclusion `json:"storage"`

	ConstructionState      ConstructionState `json:"construction_state"`
	EstimatedDeliveryMonth *YearMonth        `json:"estimated_delivery_month,omitempty"`

	Amenities []string `json:"amenities"`
	Equipment []string `json:"equipment"`

	AgentContact AgentContact `json:"agent_contact"`
	Description  string       `json:"description"`

	LockedFields LockMap        `json:"locked_fields,omitempty"`
	AuditLog     []ChangeRecord `json:"audit_log,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// UnmarshalJSON принимает числа и в виде строк ("2"), как их присылают формы
func (r *PropertyRecord) UnmarshalJSON(data []byte) error {
	type plain PropertyRecord
	aux := struct {
		*plain
		Bedrooms json.Number  `json:"bedrooms"`
		Floor    *json.Number `json:"floor"`
	}{plain: (*plain)(r)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.Bedrooms != "" {
		n, err := wholeNumber(aux.Bedrooms)
		if err != nil {
			return fmt.Errorf("%w: bedrooms: %v", ErrInvalidRecord, err)
		}
		r.Bedrooms = n
	}
	if aux.Floor != nil && *aux.Floor != "" {
		n, err := wholeNumber(*aux.Floor)
		if err != nil {
			return fmt.Errorf("%w: floor: %v", ErrInvalidRecord, err)
		}
		r.Floor = &n
	}
	return nil
}

func wholeNumber(n json.Number) (int, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%s is not a whole number", n)
	}
	return int(d.IntPart()), nil
}

// Clone возвращает глубокую копию записи
func (r PropertyRecord) Clone() PropertyRecord {
	out := r
	if r.ParentID != nil {
		p := *r.ParentID
		out.ParentID = &p
	}
	if r.Floor != nil {
		f := *r.Floor
		out.Floor = &f
	}
	if r.GPS != nil {
		g := *r.GPS
		out.GPS = &g
	}
	if r.EstimatedDeliveryMonth != nil {
		m := *r.EstimatedDeliveryMonth
		out.EstimatedDeliveryMonth = &m
	}
	out.Parking = r.Parking.clone()
	out.Storage = r.Storage.clone()
	out.Amenities = cloneStrings(r.Amenities)
	out.Equipment = cloneStrings(r.Equipment)
	out.LockedFields = r.LockedFields.Clone()
	if r.AuditLog != nil {
		out.AuditLog = append([]ChangeRecord(nil), r.AuditLog...)
	}
	return out
}

// WithCanonicalPrice возвращает копию с пересчитанной ценой
func (r PropertyRecord) WithCanonicalPrice(price decimal.Decimal) PropertyRecord {
	out := r.Clone()
	out.CanonicalPriceUSD = price
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// YearMonth - месяц сдачи, в JSON "2025-03"
type YearMonth struct {
	Year  int
	Month time.Month
}

const yearMonthLayout = "2006-01"

func NewYearMonth(year int, month time.Month) YearMonth {
	return YearMonth{Year: year, Month: month}
}

func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(yearMonthLayout, strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("invalid year-month %q: %w", s, err)
	}
	return YearMonthOf(t), nil
}

func (m YearMonth) Before(other YearMonth) bool {
	if m.Year != other.Year {
		return m.Year < other.Year
	}
	return m.Month < other.Month
}

func (m YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m YearMonth) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *YearMonth) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseYearMonth(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
