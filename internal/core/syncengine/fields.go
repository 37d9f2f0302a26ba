package syncengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

// FieldValues раскладывает запись в карту поле -> JSON-совместимое значение.
// Именно эти значения попадают в журнал аудита и в блокировки.
func FieldValues(rec domain.PropertyRecord) map[domain.FieldName]any {
	vals := map[domain.FieldName]any{
		domain.FieldTitle:             rec.Title,
		domain.FieldProjectName:       rec.ProjectName,
		domain.FieldPublishedPrice:    rec.PublishedPrice,
		domain.FieldQuotingRegime:     string(rec.QuotingRegime),
		domain.FieldCanonicalPriceUSD: rec.CanonicalPriceUSD,
		domain.FieldArea:              rec.Area,
		domain.FieldBedrooms:          rec.Bedrooms,
		domain.FieldBathrooms:         rec.Bathrooms,
		domain.FieldParking:           inclusionValue(rec.Parking),
		domain.FieldStorage:           inclusionValue(rec.Storage),
		domain.FieldConstructionState: string(rec.ConstructionState),
		domain.FieldAmenities:         copyStrings(rec.Amenities),
		domain.FieldEquipment:         copyStrings(rec.Equipment),
		domain.FieldDescription:       rec.Description,
	}
	vals[domain.FieldAgentContact] = map[string]any{
		"name":  rec.AgentContact.Name,
		"phone": rec.AgentContact.Phone,
		"email": rec.AgentContact.Email,
	}

	// незаполненные необязательные поля присутствуют в карте как nil
	vals[domain.FieldFloor] = nil
	vals[domain.FieldGPS] = nil
	vals[domain.FieldEstimatedDeliveryMonth] = nil
	if rec.Floor != nil {
		vals[domain.FieldFloor] = *rec.Floor
	}
	if rec.GPS != nil {
		vals[domain.FieldGPS] = []float64{rec.GPS.Lat, rec.GPS.Lon}
	}
	if rec.EstimatedDeliveryMonth != nil {
		vals[domain.FieldEstimatedDeliveryMonth] = rec.EstimatedDeliveryMonth.String()
	}
	return vals
}

func inclusionValue(inc domain.Inclusion) map[string]any {
	inc = inc.Normalized()
	v := map[string]any{"state": string(inc.State), "surcharge": nil}
	if inc.Surcharge != nil {
		v["surcharge"] = *inc.Surcharge
	}
	return v
}

func copyStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return append([]string(nil), in...)
}

// ApplyFieldValues возвращает новую запись с записанными значениями.
// Исходная запись не меняется.
func ApplyFieldValues(rec domain.PropertyRecord, values []domain.FieldValue) (domain.PropertyRecord, error) {
	out := rec.Clone()
	for _, fv := range values {
		if err := setField(&out, fv.Field, fv.Value); err != nil {
			return rec, fmt.Errorf("failed to apply field %s: %w", fv.Field, err)
		}
	}
	return out, nil
}

func setField(rec *domain.PropertyRecord, field domain.FieldName, value any) error {
	switch field {
	case domain.FieldTitle:
		s, err := asString(value)
		if err != nil {
			return err
		}
		rec.Title = s
	case domain.FieldProjectName:
		s, err := asString(value)
		if err != nil {
			return err
		}
		rec.ProjectName = s
	case domain.FieldPublishedPrice:
		d, err := requireDecimal(value)
		if err != nil {
			return err
		}
		rec.PublishedPrice = d
	case domain.FieldQuotingRegime:
		s, err := asString(value)
		if err != nil {
			return err
		}
		q, err := domain.ParseQuotingRegime(s)
		if err != nil {
			return err
		}
		rec.QuotingRegime = q
	case domain.FieldCanonicalPriceUSD:
		d, err := requireDecimal(value)
		if err != nil {
			return err
		}
		rec.CanonicalPriceUSD = d
	case domain.FieldArea:
		d, err := requireDecimal(value)
		if err != nil {
			return err
		}
		rec.Area = d
	case domain.FieldBedrooms:
		n, err := requireInt(value)
		if err != nil {
			return err
		}
		rec.Bedrooms = n
	case domain.FieldBathrooms:
		d, err := requireDecimal(value)
		if err != nil {
			return err
		}
		rec.Bathrooms = d
	case domain.FieldFloor:
		if isNil(value) {
			rec.Floor = nil
			return nil
		}
		n, err := requireInt(value)
		if err != nil {
			return err
		}
		if n <= 0 {
			return fmt.Errorf("%w: floor must be positive, got %d", domain.ErrInvalidRecord, n)
		}
		rec.Floor = &n
	case domain.FieldGPS:
		p, err := asGeoPoint(value)
		if err != nil {
			return err
		}
		rec.GPS = p
	case domain.FieldParking:
		inc, err := asInclusion(value)
		if err != nil {
			return err
		}
		rec.Parking = inc
	case domain.FieldStorage:
		inc, err := asInclusion(value)
		if err != nil {
			return err
		}
		rec.Storage = inc
	case domain.FieldConstructionState:
		s, err := asString(value)
		if err != nil {
			return err
		}
		// пустая строка - стадия не указана, как у записи без construction_state
		state := domain.ConstructionState("")
		if s != "" {
			if state, err = domain.ParseConstructionState(s); err != nil {
				return err
			}
		}
		rec.ConstructionState = state
	case domain.FieldEstimatedDeliveryMonth:
		if isNil(value) {
			rec.EstimatedDeliveryMonth = nil
			return nil
		}
		s, err := asString(value)
		if err != nil {
			return err
		}
		ym, err := domain.ParseYearMonth(s)
		if err != nil {
			return err
		}
		rec.EstimatedDeliveryMonth = &ym
	case domain.FieldAmenities:
		items, err := asStrings(value)
		if err != nil {
			return err
		}
		rec.Amenities = items
	case domain.FieldEquipment:
		items, err := asStrings(value)
		if err != nil {
			return err
		}
		rec.Equipment = items
	case domain.FieldAgentContact:
		c, err := asAgentContact(value)
		if err != nil {
			return err
		}
		rec.AgentContact = c
	case domain.FieldDescription:
		s, err := asString(value)
		if err != nil {
			return err
		}
		rec.Description = s
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	return nil
}

func asString(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case fmt.Stringer:
		return t.String(), nil
	}
	return "", fmt.Errorf("%w: expected string, got %T", domain.ErrInvalidRecord, v)
}

func requireDecimal(v any) (decimal.Decimal, error) {
	if isNil(v) {
		return decimal.Zero, nil
	}
	d, ok := asDecimal(v)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: expected number, got %v", domain.ErrInvalidRecord, v)
	}
	return d, nil
}

func requireInt(v any) (int, error) {
	d, err := requireDecimal(v)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s is not a whole number", domain.ErrInvalidRecord, d)
	}
	return int(d.IntPart()), nil
}

func asStrings(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		return append([]string(nil), t...), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, err := asString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		// список через запятую из CLI
		var out []string
		for _, part := range strings.Split(t, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: expected list of strings, got %T", domain.ErrInvalidRecord, v)
}

func asGeoPoint(v any) (*domain.GeoPoint, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case domain.GeoPoint:
		return &t, nil
	case *domain.GeoPoint:
		if t == nil {
			return nil, nil
		}
		p := *t
		return &p, nil
	case []float64:
		if len(t) != 2 {
			return nil, fmt.Errorf("%w: gps needs two coordinates", domain.ErrInvalidRecord)
		}
		return &domain.GeoPoint{Lat: t[0], Lon: t[1]}, nil
	case []any:
		if len(t) != 2 {
			return nil, fmt.Errorf("%w: gps needs two coordinates", domain.ErrInvalidRecord)
		}
		lat, ok1 := asDecimal(t[0])
		lon, ok2 := asDecimal(t[1])
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: gps coordinates must be numbers", domain.ErrInvalidRecord)
		}
		return &domain.GeoPoint{Lat: lat.InexactFloat64(), Lon: lon.InexactFloat64()}, nil
	}
	var p domain.GeoPoint
	if err := remarshal(v, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func asInclusion(v any) (domain.Inclusion, error) {
	inc, err := decodeInclusion(v)
	if err != nil {
		return domain.Inclusion{}, err
	}
	if inc.Surcharge != nil && !inc.Surcharge.IsPositive() {
		return domain.Inclusion{}, fmt.Errorf("%w: surcharge must be positive, got %s", domain.ErrInvalidRecord, inc.Surcharge)
	}
	return inc, nil
}

func decodeInclusion(v any) (domain.Inclusion, error) {
	switch t := v.(type) {
	case domain.Inclusion:
		return t.Normalized(), nil
	case string:
		st, err := domain.ParseInclusionState(t)
		if err != nil {
			return domain.Inclusion{}, err
		}
		return domain.NewInclusion(st, nil), nil
	case map[string]any:
		stateRaw, _ := t["state"].(string)
		st, err := domain.ParseInclusionState(stateRaw)
		if err != nil {
			return domain.Inclusion{}, err
		}
		var surcharge *decimal.Decimal
		if raw, ok := t["surcharge"]; ok && !isNil(raw) {
			d, ok := asDecimal(raw)
			if !ok {
				return domain.Inclusion{}, fmt.Errorf("%w: surcharge must be a number", domain.ErrInvalidRecord)
			}
			surcharge = &d
		}
		return domain.NewInclusion(st, surcharge), nil
	}
	var inc domain.Inclusion
	if err := remarshal(v, &inc); err != nil {
		return domain.Inclusion{}, err
	}
	if !inc.State.Valid() {
		return domain.Inclusion{}, fmt.Errorf("%w: %q", domain.ErrUnknownInclusionState, inc.State)
	}
	return inc.Normalized(), nil
}

func asAgentContact(v any) (domain.AgentContact, error) {
	if c, ok := v.(domain.AgentContact); ok {
		return c, nil
	}
	var c domain.AgentContact
	if isNil(v) {
		return c, nil
	}
	if err := remarshal(v, &c); err != nil {
		return c, err
	}
	return c, nil
}

// remarshal - последний шанс для значений, пришедших из JSON в произвольном виде
func remarshal(in any, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidRecord, err)
	}
	return nil
}
