package usecase

import (
	"context"
	"testing"

	"property-sync-service/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func projectFixture() *memStorage {
	parent := unitRecord("project-1", "")
	u1 := unitRecord("unit-1", "project-1")
	u2 := unitRecord("unit-2", "project-1")
	u2.LockedFields = domain.LockMap{
		domain.FieldFloor: {ActorID: "broker-3", ActorName: "Bruno Broker", Timestamp: testNow, PreviousValue: 3},
	}
	other := unitRecord("unit-9", "project-2")
	return newMemStorage(parent, u1, u2, other)
}

func TestPropagate_RespectsChildLocks(t *testing.T) {
	store := projectFixture()
	reporter := &recordingReporter{}
	uc := NewPropagateProjectUseCase(store, reporter).WithClock(testClock)

	summary, err := uc.Propagate(context.Background(), domain.PropagateCommand{
		JobID:    "job-1",
		ParentID: "project-1",
		Fields: []domain.FieldValue{
			{Field: domain.FieldFloor, Value: 10},
			{Field: domain.FieldAmenities, Value: []string{"Piscina", "Sauna"}},
		},
		Actor: admin,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, "Propagado a 2 de 2 unidades elegibles; 1 omitidas por ediciones manuales", summary.Message())

	u1, _ := store.LoadRecord(context.Background(), "unit-1")
	assert.Equal(t, 10, *u1.Floor)
	assert.Equal(t, []string{"Piscina", "Sauna"}, u1.Amenities)
	assert.Empty(t, u1.LockedFields, "automatic writes never lock")
	require.Len(t, u1.AuditLog, 2)
	assert.Equal(t, "admin-7", u1.AuditLog[0].ActorID)

	u2, _ := store.LoadRecord(context.Background(), "unit-2")
	assert.Equal(t, 7, *u2.Floor, "locked field keeps the manual value")
	assert.Equal(t, []string{"Piscina", "Sauna"}, u2.Amenities)
	assert.Equal(t, []domain.FieldName{domain.FieldFloor}, u2.LockedFields.Fields())

	u9, _ := store.LoadRecord(context.Background(), "unit-9")
	assert.Equal(t, 7, *u9.Floor, "units of other projects are untouched")

	require.Len(t, reporter.summaries, 1)
	assert.Equal(t, "job-1", reporter.summaries[0].JobID)
}

func TestPropagate_ChildFailureDoesNotStopBatch(t *testing.T) {
	store := projectFixture()
	store.failOn["unit-1"] = errBoom
	uc := NewPropagateProjectUseCase(store, nil).WithClock(testClock)

	summary, err := uc.Propagate(context.Background(), domain.PropagateCommand{
		ParentID: "project-1",
		Fields:   []domain.FieldValue{{Field: domain.FieldConstructionState, Value: "pre_sale"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, summary.JobID)
	assert.Equal(t, 2, summary.Eligible)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Updated)
	require.Len(t, summary.Children, 2)
	assert.Equal(t, "boom", summary.Children[0].Error)
	assert.Empty(t, summary.Children[0].Written)

	u2, _ := store.LoadRecord(context.Background(), "unit-2")
	assert.Equal(t, domain.ConstructionPreSale, u2.ConstructionState)
	require.Len(t, u2.AuditLog, 1)
	assert.Equal(t, SystemPropagationActor.ID, u2.AuditLog[0].ActorID)
}

func TestPropagate_ReporterErrorIsNotFatal(t *testing.T) {
	reporter := &recordingReporter{err: errBoom}
	uc := NewPropagateProjectUseCase(projectFixture(), reporter).WithClock(testClock)

	summary, err := uc.Propagate(context.Background(), domain.PropagateCommand{
		ParentID: "project-1",
		Fields:   []domain.FieldValue{{Field: domain.FieldEquipment, Value: []string{"Aire acondicionado"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Updated)
	assert.Len(t, reporter.summaries, 1)
}

func TestPropagate_RejectsRequest(t *testing.T) {
	uc := NewPropagateProjectUseCase(projectFixture(), nil)

	_, err := uc.Propagate(context.Background(), domain.PropagateCommand{ParentID: "project-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidRecord)

	_, err = uc.Propagate(context.Background(), domain.PropagateCommand{
		ParentID: "project-1",
		Fields:   []domain.FieldValue{{Field: domain.FieldPublishedPrice, Value: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrFieldNotPropagatable)

	_, err = uc.Propagate(context.Background(), domain.PropagateCommand{
		ParentID: "project-404",
		Fields:   []domain.FieldValue{{Field: domain.FieldFloor, Value: 1}},
	})
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestPropagate_InvalidValueFailsPerChild(t *testing.T) {
	uc := NewPropagateProjectUseCase(projectFixture(), nil)

	summary, err := uc.Propagate(context.Background(), domain.PropagateCommand{
		ParentID: "project-1",
		Fields:   []domain.FieldValue{{Field: domain.FieldAmenities, Value: 42}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Failed)
	assert.Zero(t, summary.Updated)
}
