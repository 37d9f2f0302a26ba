package syncengine

import (
	"property-sync-service/internal/core/domain"
)

// LedgerResult - что нужно дописать в журнал и в карту блокировок
type LedgerResult struct {
	NewAuditEntries []domain.ChangeRecord `json:"new_audit_entries"`
	NewLocks        domain.LockMap        `json:"new_locks"`
}

type ledgerOptions struct {
	lockExempt domain.FieldSet
}

type LedgerOption func(*ledgerOptions)

// WithLockExempt - эти поля попадают в аудит, но не блокируются
func WithLockExempt(fields domain.FieldSet) LedgerOption {
	return func(o *ledgerOptions) {
		o.lockExempt = o.lockExempt.Union(fields)
	}
}

// ApplyChanges превращает изменения в записи аудита и блокировки.
// Поля из exempt не дают ни того, ни другого.
func ApplyChanges(changes []domain.ChangeRecord, exempt domain.FieldSet, opts ...LedgerOption) LedgerResult {
	o := ledgerOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	res := LedgerResult{NewLocks: domain.LockMap{}}
	for _, c := range changes {
		if exempt.Has(c.Field) {
			continue
		}
		res.NewAuditEntries = append(res.NewAuditEntries, c)

		if o.lockExempt.Has(c.Field) {
			continue
		}
		res.NewLocks[c.Field] = domain.LockInfo{
			ActorID:       c.ActorID,
			ActorName:     c.ActorName,
			Timestamp:     c.Timestamp,
			PreviousValue: c.PreviousValue,
		}
	}
	return res
}

// DriftingFields - поля, которые продолжают пересчитываться автоматически
// и поэтому не блокируются: цена в параллельном долларе плывет вместе с курсом.
func DriftingFields(rec domain.PropertyRecord) domain.FieldSet {
	if rec.QuotingRegime == domain.RegimeParallelUSD {
		return domain.NewFieldSet(domain.FieldCanonicalPriceUSD)
	}
	return domain.FieldSet{}
}

// ExemptFields - полностью исключенные из аудита поля для политики редактора
func ExemptFields(rec domain.PropertyRecord, policy domain.EditorPolicy) domain.FieldSet {
	if policy.ExemptParallelPrice && rec.QuotingRegime == domain.RegimeParallelUSD {
		return domain.NewFieldSet(domain.FieldCanonicalPriceUSD)
	}
	return domain.FieldSet{}
}

// Commit применяет результат к записи: журнал дописывается, блокировки сливаются.
func Commit(rec domain.PropertyRecord, res LedgerResult) domain.PropertyRecord {
	out := rec.Clone()
	out.AuditLog = domain.AppendAudit(rec.AuditLog, res.NewAuditEntries...)
	out.LockedFields = rec.LockedFields.Merge(res.NewLocks)
	return out
}
