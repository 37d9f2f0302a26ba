package sqlite

import (
	"context"
	"testing"
	"time"

	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/syncengine"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

var testRates = domain.Rates{
	Official: decimal.RequireFromString("6.96"),
	Parallel: decimal.RequireFromString("10.5"),
	AsOf:     testNow,
}

func mergeImport(stored *domain.PropertyRecord, incoming domain.PropertyRecord) (domain.PropertyRecord, error) {
	out, _, err := syncengine.MergeImport(stored, incoming, testRates)
	return out, err
}

func newTestStore(t *testing.T) *SQLiteRecordStorageAdapter {
	t.Helper()
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store.WithClock(func() time.Time { return testNow })
}

func sampleRecord(id domain.RecordID, parent *domain.RecordID) domain.PropertyRecord {
	floor := 7
	month := domain.NewYearMonth(2026, time.June)
	return domain.PropertyRecord{
		ID:                     id,
		ParentID:               parent,
		Title:                  "Depto " + string(id),
		ProjectName:            "Torre Norte",
		PublishedPrice:         decimal.NewFromInt(150000),
		QuotingRegime:          domain.RegimeOfficialUSD,
		CanonicalPriceUSD:      decimal.NewFromInt(150000),
		Area:                   decimal.RequireFromString("85.5"),
		Bedrooms:               3,
		Bathrooms:              decimal.RequireFromString("1.5"),
		Floor:                  &floor,
		GPS:                    &domain.GeoPoint{Lat: -17.78, Lon: -63.18},
		Parking:                domain.NewInclusion(domain.InclusionIncluded, nil),
		Storage:                domain.NewInclusion(domain.InclusionUnconfirmed, nil),
		ConstructionState:      domain.ConstructionUnderConstruction,
		EstimatedDeliveryMonth: &month,
		Amenities:              []string{"Piscina"},
	}
}

func seed(t *testing.T, store *SQLiteRecordStorageAdapter, rec domain.PropertyRecord) *domain.PropertyRecord {
	t.Helper()
	saved, err := store.UpsertRecord(context.Background(), rec, mergeImport)
	require.NoError(t, err)
	return saved
}

func TestUpsertAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	saved := seed(t, store, sampleRecord("unit-1", nil))
	assert.True(t, saved.UpdatedAt.Equal(testNow))

	loaded, err := store.LoadRecord(ctx, "unit-1")
	require.NoError(t, err)

	assert.Equal(t, "Depto unit-1", loaded.Title)
	assert.True(t, decimal.RequireFromString("85.5").Equal(loaded.Area))
	assert.True(t, decimal.RequireFromString("1.5").Equal(loaded.Bathrooms))
	require.NotNil(t, loaded.Floor)
	assert.Equal(t, 7, *loaded.Floor)
	assert.Equal(t, domain.NewYearMonth(2026, time.June), *loaded.EstimatedDeliveryMonth)
	assert.Equal(t, domain.InclusionIncluded, loaded.Parking.State)
	assert.Equal(t, []string{"Piscina"}, loaded.Amenities)
	assert.True(t, loaded.UpdatedAt.Equal(saved.UpdatedAt))
	assert.Empty(t, loaded.LockedFields)
	assert.Empty(t, loaded.AuditLog)

	_, err = store.LoadRecord(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestUpsertRecord_KeepsLockedFieldsAndRecomputesPrice(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	previous := seed(t, store, sampleRecord("unit-1", nil))

	edited := previous.Clone()
	edited.Area = decimal.NewFromInt(90)
	lock := domain.LockInfo{ActorID: "admin-7", ActorName: "Ana Admin", Timestamp: testNow, PreviousValue: previous.Area}
	edited.LockedFields = domain.LockMap{domain.FieldArea: lock}
	entry := domain.ChangeRecord{
		Field:         domain.FieldArea,
		PreviousValue: previous.Area,
		NewValue:      edited.Area,
		ActorID:       "admin-7",
		ActorName:     "Ana Admin",
		Timestamp:     testNow,
	}
	_, err := store.SaveEdit(ctx, domain.SaveBundle{
		Record:            edited,
		ExpectedUpdatedAt: previous.UpdatedAt,
		AuditEntries:      []domain.ChangeRecord{entry},
		NewLocks:          domain.LockMap{domain.FieldArea: lock},
	})
	require.NoError(t, err)

	// повторная выгрузка портала: старая площадь и мусорная каноническая цена
	scraped := sampleRecord("unit-1", nil)
	scraped.Title = "Depto 3D con balcón"
	scraped.CanonicalPriceUSD = decimal.NewFromInt(1)

	saved, err := store.UpsertRecord(ctx, scraped, mergeImport)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(saved.Area), "locked area reverted to %s", saved.Area)
	assert.True(t, decimal.NewFromInt(150000).Equal(saved.CanonicalPriceUSD), "got %s", saved.CanonicalPriceUSD)
	assert.Contains(t, saved.LockedFields, domain.FieldArea)

	loaded, err := store.LoadRecord(ctx, "unit-1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(90).Equal(loaded.Area))
	assert.True(t, decimal.NewFromInt(150000).Equal(loaded.CanonicalPriceUSD))
	assert.Equal(t, "Depto 3D con balcón", loaded.Title)
	assert.Equal(t, []domain.FieldName{domain.FieldArea}, loaded.LockedFields.Fields())
	assert.Len(t, loaded.AuditLog, 1, "import writes no audit")
	assert.True(t, loaded.UpdatedAt.After(previous.UpdatedAt))
}

func TestUpsertRecord_MergeSeesStoredVersion(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var seen []*domain.PropertyRecord
	spy := func(stored *domain.PropertyRecord, incoming domain.PropertyRecord) (domain.PropertyRecord, error) {
		seen = append(seen, stored)
		return mergeImport(stored, incoming)
	}
	_, err := store.UpsertRecord(ctx, sampleRecord("unit-1", nil), spy)
	require.NoError(t, err)
	_, err = store.UpsertRecord(ctx, sampleRecord("unit-1", nil), spy)
	require.NoError(t, err)

	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	require.NotNil(t, seen[1])
	assert.Equal(t, domain.RecordID("unit-1"), seen[1].ID)

	_, err = store.UpsertRecord(ctx, sampleRecord("unit-2", nil), nil)
	assert.Error(t, err)

	var refuse port.ImportMerger = func(*domain.PropertyRecord, domain.PropertyRecord) (domain.PropertyRecord, error) {
		return domain.PropertyRecord{}, domain.ErrInvalidRecord
	}
	_, err = store.UpsertRecord(ctx, sampleRecord("unit-2", nil), refuse)
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)
	_, err = store.LoadRecord(ctx, "unit-2")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound, "refused import writes nothing")
}

func TestSaveEdit_WritesRecordAuditAndLocks(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	previous := seed(t, store, sampleRecord("unit-1", nil))

	proposed := previous.Clone()
	proposed.Area = decimal.NewFromInt(90)

	entry := domain.ChangeRecord{
		Field:         domain.FieldArea,
		PreviousValue: previous.Area,
		NewValue:      proposed.Area,
		ActorID:       "admin-7",
		ActorName:     "Ana Admin",
		Timestamp:     testNow,
	}
	lock := domain.LockInfo{ActorID: "admin-7", ActorName: "Ana Admin", Timestamp: testNow, PreviousValue: previous.Area}
	proposed.LockedFields = domain.LockMap{domain.FieldArea: lock}

	saved, err := store.SaveEdit(ctx, domain.SaveBundle{
		Record:            proposed,
		ExpectedUpdatedAt: previous.UpdatedAt,
		AuditEntries:      []domain.ChangeRecord{entry},
		NewLocks:          domain.LockMap{domain.FieldArea: lock},
	})
	require.NoError(t, err)
	assert.True(t, saved.UpdatedAt.After(previous.UpdatedAt), "version must move forward even with a frozen clock")

	loaded, err := store.LoadRecord(ctx, "unit-1")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(90).Equal(loaded.Area))
	assert.True(t, loaded.UpdatedAt.Equal(saved.UpdatedAt))

	require.Contains(t, loaded.LockedFields, domain.FieldArea)
	assert.Equal(t, "admin-7", loaded.LockedFields[domain.FieldArea].ActorID)
	assert.Equal(t, "85.5", loaded.LockedFields[domain.FieldArea].PreviousValue)

	require.Len(t, loaded.AuditLog, 1)
	assert.Equal(t, domain.FieldArea, loaded.AuditLog[0].Field)
	assert.Equal(t, "85.5", loaded.AuditLog[0].PreviousValue)
	assert.Equal(t, "90", loaded.AuditLog[0].NewValue)
	assert.True(t, loaded.AuditLog[0].Timestamp.Equal(testNow))
}

func TestSaveEdit_StaleSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	previous := seed(t, store, sampleRecord("unit-1", nil))

	_, err := store.SaveEdit(ctx, domain.SaveBundle{
		Record:            previous.Clone(),
		ExpectedUpdatedAt: previous.UpdatedAt.Add(-time.Second),
	})
	assert.ErrorIs(t, err, domain.ErrStaleSnapshot)

	_, err = store.SaveEdit(ctx, domain.SaveBundle{
		Record:            sampleRecord("ghost", nil),
		ExpectedUpdatedAt: previous.UpdatedAt,
	})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestSaveEdit_SecondWriterWithSameSnapshotLoses(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	previous := seed(t, store, sampleRecord("unit-1", nil))

	first := previous.Clone()
	first.Title = "primero"
	_, err := store.SaveEdit(ctx, domain.SaveBundle{Record: first, ExpectedUpdatedAt: previous.UpdatedAt})
	require.NoError(t, err)

	second := previous.Clone()
	second.Title = "segundo"
	_, err = store.SaveEdit(ctx, domain.SaveBundle{Record: second, ExpectedUpdatedAt: previous.UpdatedAt})
	assert.ErrorIs(t, err, domain.ErrStaleSnapshot)

	loaded, err := store.LoadRecord(ctx, "unit-1")
	require.NoError(t, err)
	assert.Equal(t, "primero", loaded.Title)
}

func TestListChildren(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	parent := domain.RecordID("project-1")
	seed(t, store, sampleRecord(parent, nil))
	seed(t, store, sampleRecord("unit-2", &parent))
	unit1 := seed(t, store, sampleRecord("unit-1", &parent))

	lock := domain.LockInfo{ActorID: "broker-3", Timestamp: testNow, PreviousValue: 7}
	_, err := store.SaveEdit(ctx, domain.SaveBundle{
		Record:            *unit1,
		ExpectedUpdatedAt: unit1.UpdatedAt,
		NewLocks:          domain.LockMap{domain.FieldFloor: lock},
	})
	require.NoError(t, err)

	children, err := store.ListChildren(ctx, parent)
	require.NoError(t, err)
	require.Len(t, children, 2)

	assert.Equal(t, domain.RecordID("unit-1"), children[0].ID)
	assert.True(t, children[0].LockedFields.IsLocked(domain.FieldFloor))
	assert.Equal(t, domain.RecordID("unit-2"), children[1].ID)
	assert.Empty(t, children[1].LockedFields)

	none, err := store.ListChildren(ctx, "unit-1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyPropagation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seed(t, store, sampleRecord("unit-1", nil))

	err := store.ApplyPropagation(ctx, "unit-1", func(fresh domain.PropertyRecord) (*domain.SaveBundle, error) {
		return nil, nil
	})
	require.NoError(t, err)

	err = store.ApplyPropagation(ctx, "unit-1", func(fresh domain.PropertyRecord) (*domain.SaveBundle, error) {
		updated := fresh.Clone()
		updated.ConstructionState = domain.ConstructionPreSale
		return &domain.SaveBundle{
			Record:            updated,
			ExpectedUpdatedAt: fresh.UpdatedAt,
			AuditEntries: []domain.ChangeRecord{{
				Field:         domain.FieldConstructionState,
				PreviousValue: string(fresh.ConstructionState),
				NewValue:      string(updated.ConstructionState),
				ActorID:       "system:propagation",
				Timestamp:     testNow,
			}},
		}, nil
	})
	require.NoError(t, err)

	loaded, err := store.LoadRecord(ctx, "unit-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ConstructionPreSale, loaded.ConstructionState)
	assert.Len(t, loaded.AuditLog, 1)
	assert.Empty(t, loaded.LockedFields, "propagation never locks fields")

	err = store.ApplyPropagation(ctx, "missing", func(domain.PropertyRecord) (*domain.SaveBundle, error) {
		t.Fatal("apply must not run for a missing record")
		return nil, nil
	})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestGetAuditLog_Paging(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	current := seed(t, store, sampleRecord("unit-1", nil))

	for i := 1; i <= 3; i++ {
		next := current.Clone()
		next.Bedrooms = i
		saved, err := store.SaveEdit(ctx, domain.SaveBundle{
			Record:            next,
			ExpectedUpdatedAt: current.UpdatedAt,
			AuditEntries: []domain.ChangeRecord{{
				Field:         domain.FieldBedrooms,
				PreviousValue: current.Bedrooms,
				NewValue:      i,
				ActorID:       "admin-7",
				Timestamp:     testNow.Add(time.Duration(i) * time.Minute),
			}},
		})
		require.NoError(t, err)
		current = saved
	}

	page, err := store.GetAuditLog(ctx, "unit-1", 2, 1)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, float64(2), page[0].NewValue)
	assert.Equal(t, float64(3), page[1].NewValue)

	_, err = store.GetAuditLog(ctx, "missing", 10, 0)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}
