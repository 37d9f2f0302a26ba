package syncengine

import (
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// baseRecord - чистая запись, которая проходит все проверки без предупреждений
func baseRecord() domain.PropertyRecord {
	floor := 7
	return domain.PropertyRecord{
		ID:                "unit-101",
		Title:             "Departamento en Equipetrol",
		ProjectName:       "Torre Sirari",
		PublishedPrice:    dec("150000"),
		QuotingRegime:     domain.RegimeOfficialUSD,
		CanonicalPriceUSD: dec("150000"),
		Area:              dec("85"),
		Bedrooms:          3,
		Bathrooms:         dec("2"),
		Floor:             &floor,
		GPS:               &domain.GeoPoint{Lat: -17.7650, Lon: -63.1950},
		Parking:           domain.NewInclusion(domain.InclusionIncluded, nil),
		Storage:           domain.NewInclusion(domain.InclusionUnconfirmed, nil),
		ConstructionState: domain.ConstructionImmediateDelivery,
		Amenities:         []string{"Piscina", "Gimnasio"},
		Equipment:         []string{"Cocina equipada"},
		AgentContact: domain.AgentContact{
			Name:  "Lucía Rojas",
			Phone: "+591 70000000",
			Email: "lucia@example.com",
		},
		Description: "Vista panorámica, piso alto",
		UpdatedAt:   testNow.Add(-time.Hour),
	}
}

func adminMeta() domain.ChangeMeta {
	return domain.ChangeMeta{ActorID: "admin-7", ActorName: "Ana Admin", Timestamp: testNow}
}
