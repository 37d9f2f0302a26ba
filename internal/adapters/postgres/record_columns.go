package postgres

import (
	"context"
	"fmt"

	"property-sync-service/internal/adapters/recordcodec"
	"property-sync-service/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// querier - общее у пула и транзакции
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NUMERIC читается как текст, чтобы decimal не терял точность
const recordColumns = `
	id, parent_id, title, project_name,
	published_price::text, quoting_regime, canonical_price_usd::text,
	area::text, bedrooms, bathrooms::text, floor,
	latitude, longitude,
	parking, storage, construction_state, estimated_delivery_month,
	amenities, equipment, agent_contact, description, updated_at`

func scanRecord(row pgx.Row) (*domain.PropertyRecord, error) {
	var (
		rec                             domain.PropertyRecord
		parentID                        *string
		published, canonical, area, bth string
		lat, lon                        *float64
		parking, storage, contact       []byte
		delivery                        *string
	)

	err := row.Scan(
		&rec.ID, &parentID, &rec.Title, &rec.ProjectName,
		&published, &rec.QuotingRegime, &canonical,
		&area, &rec.Bedrooms, &bth, &rec.Floor,
		&lat, &lon,
		&parking, &storage, &rec.ConstructionState, &delivery,
		&rec.Amenities, &rec.Equipment, &contact, &rec.Description, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if parentID != nil {
		p := domain.RecordID(*parentID)
		rec.ParentID = &p
	}
	if lat != nil && lon != nil {
		rec.GPS = &domain.GeoPoint{Lat: *lat, Lon: *lon}
	}

	for _, n := range []struct {
		src string
		dst *decimal.Decimal
	}{
		{published, &rec.PublishedPrice},
		{canonical, &rec.CanonicalPriceUSD},
		{area, &rec.Area},
		{bth, &rec.Bathrooms},
	} {
		d, err := decimal.NewFromString(n.src)
		if err != nil {
			return nil, fmt.Errorf("failed to parse numeric column %q: %w", n.src, err)
		}
		*n.dst = d
	}

	if rec.Parking, err = recordcodec.DecodeInclusion(parking); err != nil {
		return nil, err
	}
	if rec.Storage, err = recordcodec.DecodeInclusion(storage); err != nil {
		return nil, err
	}
	if rec.AgentContact, err = recordcodec.DecodeContact(contact); err != nil {
		return nil, err
	}
	if rec.EstimatedDeliveryMonth, err = recordcodec.DecodeDeliveryMonth(delivery); err != nil {
		return nil, err
	}
	rec.UpdatedAt = rec.UpdatedAt.UTC()

	return &rec, nil
}

// recordArgs - значения для UPDATE в порядке $3..$22 (см. updateRecordSQL)
func recordArgs(rec domain.PropertyRecord) ([]any, error) {
	parking, err := recordcodec.EncodeInclusion(rec.Parking)
	if err != nil {
		return nil, err
	}
	storage, err := recordcodec.EncodeInclusion(rec.Storage)
	if err != nil {
		return nil, err
	}
	contact, err := recordcodec.EncodeContact(rec.AgentContact)
	if err != nil {
		return nil, err
	}

	var lat, lon *float64
	if rec.GPS != nil {
		lat, lon = &rec.GPS.Lat, &rec.GPS.Lon
	}

	return []any{
		rec.Title,
		rec.ProjectName,
		rec.PublishedPrice.String(),
		string(rec.QuotingRegime),
		rec.CanonicalPriceUSD.String(),
		rec.Area.String(),
		rec.Bedrooms,
		rec.Bathrooms.String(),
		rec.Floor,
		lat,
		lon,
		recordcodec.LocationBucket(rec.GPS),
		parking,
		storage,
		string(rec.ConstructionState),
		recordcodec.EncodeDeliveryMonth(rec.EstimatedDeliveryMonth),
		recordcodec.NonNilStrings(rec.Amenities),
		recordcodec.NonNilStrings(rec.Equipment),
		contact,
		rec.Description,
	}, nil
}

// $1 - id, $2 - ожидаемая версия. Ноль строк означает, что запись уже изменили.
const updateRecordSQL = `
	UPDATE property_records SET
		title = $3,
		project_name = $4,
		published_price = $5::numeric,
		quoting_regime = $6,
		canonical_price_usd = $7::numeric,
		area = $8::numeric,
		bedrooms = $9,
		bathrooms = $10::numeric,
		floor = $11,
		latitude = $12,
		longitude = $13,
		location_bucket = $14,
		parking = $15,
		storage = $16,
		construction_state = $17,
		estimated_delivery_month = $18,
		amenities = $19,
		equipment = $20,
		agent_contact = $21,
		description = $22,
		updated_at = clock_timestamp()
	WHERE id = $1 AND updated_at = $2
	RETURNING updated_at`
