package domain

import (
	"fmt"
	"sort"
)

// FieldName - стабильный внутренний идентификатор поля записи.
// Подписи для форм лежат отдельно в FieldLabels и ключами никогда не используются.
type FieldName string

const (
	FieldTitle                  FieldName = "title"
	FieldProjectName            FieldName = "project_name"
	FieldPublishedPrice         FieldName = "published_price"
	FieldQuotingRegime          FieldName = "quoting_regime"
	FieldCanonicalPriceUSD      FieldName = "canonical_price_usd"
	FieldArea                   FieldName = "area"
	FieldBedrooms               FieldName = "bedrooms"
	FieldBathrooms              FieldName = "bathrooms"
	FieldFloor                  FieldName = "floor"
	FieldGPS                    FieldName = "gps"
	FieldParking                FieldName = "parking"
	FieldStorage                FieldName = "storage"
	FieldConstructionState      FieldName = "construction_state"
	FieldEstimatedDeliveryMonth FieldName = "estimated_delivery_month"
	FieldAmenities              FieldName = "amenities"
	FieldEquipment              FieldName = "equipment"
	FieldAgentContact           FieldName = "agent_contact"
	FieldDescription            FieldName = "description"
)

// FieldOrder задает приоритет полей: имя -> цена -> физические параметры ->
// включения -> стройка -> коллекции -> контакт -> свободный текст.
var FieldOrder = []FieldName{
	FieldTitle,
	FieldProjectName,
	FieldPublishedPrice,
	FieldQuotingRegime,
	FieldCanonicalPriceUSD,
	FieldArea,
	FieldBedrooms,
	FieldBathrooms,
	FieldFloor,
	FieldGPS,
	FieldParking,
	FieldStorage,
	FieldConstructionState,
	FieldEstimatedDeliveryMonth,
	FieldAmenities,
	FieldEquipment,
	FieldAgentContact,
	FieldDescription,
}

var fieldPriority = func() map[FieldName]int {
	m := make(map[FieldName]int, len(FieldOrder))
	for i, f := range FieldOrder {
		m[f] = i
	}
	return m
}()

// FieldLabels - подписи полей для редакторов
var FieldLabels = map[FieldName]string{
	FieldTitle:                  "Título",
	FieldProjectName:            "Proyecto",
	FieldPublishedPrice:         "Precio publicado",
	FieldQuotingRegime:          "Moneda de publicación",
	FieldCanonicalPriceUSD:      "Precio (USD)",
	FieldArea:                   "Superficie (m²)",
	FieldBedrooms:               "Dormitorios",
	FieldBathrooms:              "Baños",
	FieldFloor:                  "Piso",
	FieldGPS:                    "Ubicación GPS",
	FieldParking:                "Parqueo",
	FieldStorage:                "Baulera",
	FieldConstructionState:      "Estado de construcción",
	FieldEstimatedDeliveryMonth: "Fecha de entrega estimada",
	FieldAmenities:              "Amenidades",
	FieldEquipment:              "Equipamiento",
	FieldAgentContact:           "Contacto del agente",
	FieldDescription:            "Descripción",
}

// Valid - известно ли поле
func (f FieldName) Valid() bool {
	_, ok := fieldPriority[f]
	return ok
}

// Priority возвращает позицию поля в FieldOrder (неизвестные поля идут в конец)
func (f FieldName) Priority() int {
	if p, ok := fieldPriority[f]; ok {
		return p
	}
	return len(FieldOrder)
}

func (f FieldName) Label() string {
	if l, ok := FieldLabels[f]; ok {
		return l
	}
	return string(f)
}

// ParseFieldName проверяет, что строка является известным именем поля
func ParseFieldName(s string) (FieldName, error) {
	f := FieldName(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
	}
	return f, nil
}

// SortFields сортирует поля по приоритету на месте
func SortFields(fields []FieldName) {
	sort.SliceStable(fields, func(i, j int) bool {
		pi, pj := fields[i].Priority(), fields[j].Priority()
		if pi != pj {
			return pi < pj
		}
		return fields[i] < fields[j]
	})
}

// FieldSet - множество полей
type FieldSet map[FieldName]struct{}

func NewFieldSet(fields ...FieldName) FieldSet {
	s := make(FieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s FieldSet) Has(f FieldName) bool {
	if s == nil {
		return false
	}
	_, ok := s[f]
	return ok
}

// Union возвращает новое множество
func (s FieldSet) Union(other FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(other))
	for f := range s {
		out[f] = struct{}{}
	}
	for f := range other {
		out[f] = struct{}{}
	}
	return out
}

// Sorted возвращает элементы в порядке приоритета
func (s FieldSet) Sorted() []FieldName {
	out := make([]FieldName, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	SortFields(out)
	return out
}
