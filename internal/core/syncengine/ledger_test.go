package syncengine

import (
	"encoding/json"
	"testing"
	"time"

	"property-sync-service/internal/core/domain"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyChanges_LocksEveryChange(t *testing.T) {
	prev := baseRecord()
	next := prev.Clone()
	next.Area = dec("90")
	next.Bedrooms = 2

	changes := Diff(prev, next, adminMeta())
	res := ApplyChanges(changes, nil)

	require.Len(t, res.NewAuditEntries, 2)
	require.Len(t, res.NewLocks, 2)

	lock := res.NewLocks[domain.FieldArea]
	assert.Equal(t, "admin-7", lock.ActorID)
	assert.Equal(t, "Ana Admin", lock.ActorName)
	assert.Equal(t, testNow, lock.Timestamp)
	assert.True(t, ValuesEqual(85, lock.PreviousValue), "previous value: %v", lock.PreviousValue)
}

func TestApplyChanges_ParallelPriceExemption(t *testing.T) {
	rates := domain.Rates{Official: dec("6.96"), Parallel: dec("10.5")}

	prev := baseRecord()
	prev.PublishedPrice = dec("100000")
	prev.QuotingRegime = domain.RegimeParallelUSD
	prev = Recompute(prev, rates)

	next := Recompute(prev, domain.Rates{Official: dec("6.96"), Parallel: dec("11")})
	changes := Diff(prev, next, adminMeta())
	require.Len(t, changes, 1)

	t.Run("not exempt: audited but not locked", func(t *testing.T) {
		policy := domain.EditorPolicy{Editor: domain.EditorAdmin}
		res := ApplyChanges(changes, ExemptFields(next, policy), WithLockExempt(DriftingFields(next)))

		assert.Len(t, res.NewAuditEntries, 1)
		assert.Empty(t, res.NewLocks)
	})

	t.Run("exempt: neither audited nor locked", func(t *testing.T) {
		policy := domain.EditorPolicy{Editor: domain.EditorBroker, ExemptParallelPrice: true}
		res := ApplyChanges(changes, ExemptFields(next, policy), WithLockExempt(DriftingFields(next)))

		assert.Empty(t, res.NewAuditEntries)
		assert.Empty(t, res.NewLocks)
	})
}

func TestDriftingFields_OnlyParallelRegime(t *testing.T) {
	rec := baseRecord()
	assert.Empty(t, DriftingFields(rec))

	rec.QuotingRegime = domain.RegimeParallelUSD
	assert.True(t, DriftingFields(rec).Has(domain.FieldCanonicalPriceUSD))
}

func TestLockMap_MergeLastWins(t *testing.T) {
	older := domain.LockMap{
		domain.FieldArea:  {ActorID: "a", Timestamp: testNow.Add(-time.Hour)},
		domain.FieldTitle: {ActorID: "a", Timestamp: testNow.Add(-time.Hour)},
	}
	newer := domain.LockMap{
		domain.FieldArea: {ActorID: "b", Timestamp: testNow},
	}

	merged := older.Merge(newer)

	assert.Equal(t, "b", merged[domain.FieldArea].ActorID)
	assert.Equal(t, "a", merged[domain.FieldTitle].ActorID)
	assert.Equal(t, "a", older[domain.FieldArea].ActorID, "merge must not mutate the receiver")
}

func TestCommit_AppendsAuditWithoutMutating(t *testing.T) {
	prev := baseRecord()
	prev.AuditLog = []domain.ChangeRecord{{Field: domain.FieldTitle, ActorID: "old"}}

	next := prev.Clone()
	next.Description = "otra"
	res := ApplyChanges(Diff(prev, next, adminMeta()), nil)

	committed := Commit(next, res)

	assert.Len(t, prev.AuditLog, 1)
	require.Len(t, committed.AuditLog, 2)
	assert.Equal(t, "old", committed.AuditLog[0].ActorID)
	assert.Equal(t, domain.FieldDescription, committed.AuditLog[1].Field)
	assert.True(t, committed.LockedFields.IsLocked(domain.FieldDescription))
}

// Полный сценарий сохранения в админке: площадь 85 -> 38 при трех спальнях.
func TestEndToEnd_CrampedUnitEdit(t *testing.T) {
	rates := domain.Rates{Official: dec("6.96"), Parallel: dec("10.5")}
	validator := NewValidator(DefaultValidatorConfig())

	snapshot := baseRecord()
	snapshot.PublishedPrice = dec("99500")
	snapshot.QuotingRegime = domain.RegimeOfficialUSD
	snapshot = Recompute(snapshot, rates)

	proposed := snapshot.Clone()
	proposed.Area = dec("38")
	proposed.Bedrooms = 3
	proposed = Recompute(proposed, rates)

	result := validator.Validate(proposed, testNow)
	assert.Empty(t, result.Errors)
	assert.Equal(t, []string{"3 dormitorios en 38m² parece muy reducido"}, result.Warnings)

	assert.Equal(t, GateNeedsConfirmation, Gate(result, false))
	assert.Equal(t, GateProceed, Gate(result, true))

	changes := Diff(snapshot, proposed, adminMeta())
	require.Len(t, changes, 1)
	assert.Equal(t, domain.FieldArea, changes[0].Field)

	ledger := ApplyChanges(changes, ExemptFields(proposed, domain.EditorPolicy{Editor: domain.EditorAdmin}),
		WithLockExempt(DriftingFields(proposed)))
	saved := Commit(proposed, ledger)
	assert.True(t, saved.LockedFields.IsLocked(domain.FieldArea))
	assert.Equal(t, []domain.FieldName{domain.FieldArea}, saved.LockedFields.Fields())

	data, err := json.MarshalIndent(ledger, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "cramped_unit_edit", append(data, '\n'))
}
