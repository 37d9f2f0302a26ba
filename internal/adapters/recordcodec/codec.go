// Package recordcodec - общие для SQL-адаптеров преобразования значений
// записи в колонки и обратно.
package recordcodec

import (
	"encoding/json"
	"fmt"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/mmcloughlin/geohash"
)

// LocationBucketPrecision - 7 символов geohash, ячейка примерно 150x150 м
const LocationBucketPrecision = 7

// LocationBucket возвращает geohash-ячейку для координат или nil
func LocationBucket(gps *domain.GeoPoint) *string {
	if gps == nil {
		return nil
	}
	h := geohash.EncodeWithPrecision(gps.Lat, gps.Lon, LocationBucketPrecision)
	return &h
}

// EncodeValue сериализует значение поля для JSON-колонки (аудит, previous_value блокировки).
// nil остается SQL NULL.
func EncodeValue(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode field value: %w", err)
	}
	return data, nil
}

func DecodeValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("failed to decode field value: %w", err)
	}
	return v, nil
}

func EncodeInclusion(inc domain.Inclusion) ([]byte, error) {
	data, err := json.Marshal(inc.Normalized())
	if err != nil {
		return nil, fmt.Errorf("failed to encode inclusion: %w", err)
	}
	return data, nil
}

func DecodeInclusion(data []byte) (domain.Inclusion, error) {
	if len(data) == 0 {
		return domain.NewInclusion(domain.InclusionUnconfirmed, nil), nil
	}
	var inc domain.Inclusion
	if err := json.Unmarshal(data, &inc); err != nil {
		return domain.Inclusion{}, fmt.Errorf("failed to decode inclusion: %w", err)
	}
	if !inc.State.Valid() {
		return domain.Inclusion{}, fmt.Errorf("%w: %q", domain.ErrUnknownInclusionState, inc.State)
	}
	return inc.Normalized(), nil
}

func EncodeContact(c domain.AgentContact) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode agent contact: %w", err)
	}
	return data, nil
}

func DecodeContact(data []byte) (domain.AgentContact, error) {
	var c domain.AgentContact
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("failed to decode agent contact: %w", err)
	}
	return c, nil
}

// DeliveryMonth: "" и nil - месяц не указан
func EncodeDeliveryMonth(m *domain.YearMonth) *string {
	if m == nil {
		return nil
	}
	s := m.String()
	return &s
}

func DecodeDeliveryMonth(s *string) (*domain.YearMonth, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	m, err := domain.ParseYearMonth(*s)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// NonNilStrings - колонки списков объявлены NOT NULL
func NonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// StoredTime приводит время к точности хранилища (микросекунды) в UTC.
// Иначе снимок, прочитанный из БД, не совпал бы с тем, что вернул SaveEdit.
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
