package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"
	"property-sync-service/internal/core/syncengine"

	"github.com/google/uuid"
)

// SystemPropagationActor - автор записей аудита, если команда пришла без автора
var SystemPropagationActor = domain.Actor{ID: "system:propagation", Name: "Propagación de proyecto"}

// PropagateProjectUseCase раздает общие атрибуты проекта его юнитам,
// не трогая поля, зафиксированные людьми.
type PropagateProjectUseCase struct {
	storage  port.RecordStoragePort
	reporter port.PropagationReporterPort
	now      func() time.Time
}

// NewPropagateProjectUseCase: reporter может быть nil (например, в CLI)
func NewPropagateProjectUseCase(storage port.RecordStoragePort, reporter port.PropagationReporterPort) *PropagateProjectUseCase {
	return &PropagateProjectUseCase{
		storage:  storage,
		reporter: reporter,
		now:      time.Now,
	}
}

func (uc *PropagateProjectUseCase) WithClock(now func() time.Time) *PropagateProjectUseCase {
	uc.now = now
	return uc
}

func (uc *PropagateProjectUseCase) Propagate(ctx context.Context, cmd domain.PropagateCommand) (*domain.PropagationSummary, error) {
	if cmd.JobID == "" {
		cmd.JobID = uuid.New().String()
	}
	if !cmd.Actor.Valid() {
		cmd.Actor = SystemPropagationActor
	}

	logger := contextkeys.LoggerFromContext(ctx)
	ucLogger := logger.WithFields(port.Fields{
		"use_case":  "PropagateProject",
		"job_id":    cmd.JobID,
		"parent_id": cmd.ParentID,
	})

	ucLogger.Info("Use case started", port.Fields{"fields": len(cmd.Fields)})

	if len(cmd.Fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to propagate", domain.ErrInvalidRecord)
	}
	if err := syncengine.CheckPropagatable(cmd.Fields); err != nil {
		ucLogger.Warn("Rejected propagation request", port.Fields{"reason": err.Error()})
		return nil, err
	}

	if _, err := uc.storage.LoadRecord(ctx, cmd.ParentID); err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			ucLogger.Error("Failed to load parent project", err, nil)
		}
		return nil, err
	}

	children, err := uc.storage.ListChildren(ctx, cmd.ParentID)
	if err != nil {
		ucLogger.Error("Failed to list child units", err, nil)
		return nil, fmt.Errorf("failed to list children of %s: %w", cmd.ParentID, err)
	}

	meta := domain.ChangeMeta{ActorID: cmd.Actor.ID, ActorName: cmd.Actor.Name, Timestamp: uc.now().UTC()}
	summary := domain.PropagationSummary{JobID: cmd.JobID, ParentID: cmd.ParentID}

	for _, child := range children {
		report := uc.propagateToChild(ctx, child.ID, cmd.Fields, meta)
		if report.Error != "" {
			ucLogger.Warn("Propagation to child failed, continuing", port.Fields{
				"child_id": child.ID,
				"error":    report.Error,
			})
		}
		summary.Add(report)
	}

	ucLogger.Info("Use case finished", port.Fields{
		"eligible": summary.Eligible,
		"updated":  summary.Updated,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	})

	if uc.reporter != nil {
		if err := uc.reporter.ReportPropagation(ctx, summary); err != nil {
			// отчет вторичен: юниты уже записаны
			ucLogger.Error("Failed to publish propagation report", err, nil)
		}
	}

	return &summary, nil
}

func (uc *PropagateProjectUseCase) propagateToChild(ctx context.Context, childID domain.RecordID, fields []domain.FieldValue, meta domain.ChangeMeta) domain.PropagationReport {
	report := domain.PropagationReport{ChildID: childID}

	err := uc.storage.ApplyPropagation(ctx, childID, func(fresh domain.PropertyRecord) (*domain.SaveBundle, error) {
		// блокировки читаются в момент записи, а не в момент планирования
		report = syncengine.FilterPropagatable(fields, fresh.LockedFields)
		report.ChildID = fresh.ID
		if len(report.Values) == 0 {
			return nil, nil
		}

		updated, err := syncengine.ApplyFieldValues(fresh, report.Values)
		if err != nil {
			return nil, err
		}

		changes := syncengine.Diff(fresh, updated, meta)
		if len(changes) == 0 {
			return nil, nil
		}
		// автоматическая запись: аудит есть, новых блокировок нет
		updated.AuditLog = domain.AppendAudit(fresh.AuditLog, changes...)

		return &domain.SaveBundle{
			Record:            updated,
			ExpectedUpdatedAt: fresh.UpdatedAt,
			AuditEntries:      changes,
		}, nil
	})
	if err != nil {
		report.Written = nil
		report.Error = err.Error()
	}
	return report
}
