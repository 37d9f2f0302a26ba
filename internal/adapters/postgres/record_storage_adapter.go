package postgres

import (
	"context"
	"errors"
	"fmt"

	"property-sync-service/internal/adapters/recordcodec"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecordStorageAdapter реализует RecordStoragePort для PostgreSQL.
type PostgresRecordStorageAdapter struct {
	pool *pgxpool.Pool
}

// NewPostgresRecordStorageAdapter создает новый экземпляр адаптера.
func NewPostgresRecordStorageAdapter(pool *pgxpool.Pool) (*PostgresRecordStorageAdapter, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &PostgresRecordStorageAdapter{
		pool: pool,
	}, nil
}

// LoadRecord возвращает запись вместе с блокировками и полным журналом аудита
func (a *PostgresRecordStorageAdapter) LoadRecord(ctx context.Context, id domain.RecordID) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRecordStorageAdapter",
		"method":    "LoadRecord",
		"record_id": id,
	})

	rec, err := loadRecord(ctx, a.pool, id, false)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			repoLogger.Error("Failed to load record", err, nil)
		}
		return nil, err
	}

	rec.AuditLog, err = loadAudit(ctx, a.pool, id, -1, 0)
	if err != nil {
		repoLogger.Error("Failed to load audit log", err, nil)
		return nil, err
	}

	repoLogger.Debug("Record loaded", port.Fields{"locks": len(rec.LockedFields), "audit": len(rec.AuditLog)})
	return rec, nil
}

// SaveEdit пишет запись, аудит и блокировки в одной транзакции.
// Версия сверяется в самом UPDATE, поэтому параллельная запись не проскочит между чтением и записью.
func (a *PostgresRecordStorageAdapter) SaveEdit(ctx context.Context, bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRecordStorageAdapter",
		"method":    "SaveEdit",
		"record_id": bundle.Record.ID,
	})

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	saved, err := writeBundle(ctx, tx, bundle)
	if err != nil {
		if !errors.Is(err, domain.ErrStaleSnapshot) && !errors.Is(err, domain.ErrRecordNotFound) {
			repoLogger.Error("Failed to write save bundle", err, nil)
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	repoLogger.Info("Edit saved", port.Fields{
		"audit_entries": len(bundle.AuditEntries),
		"new_locks":     len(bundle.NewLocks),
	})
	return saved, nil
}

// ListChildren - юниты проекта с их блокировками, без журнала аудита
func (a *PostgresRecordStorageAdapter) ListChildren(ctx context.Context, parentID domain.RecordID) ([]domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRecordStorageAdapter",
		"method":    "ListChildren",
		"parent_id": parentID,
	})

	query := `SELECT ` + recordColumns + ` FROM property_records WHERE parent_id = $1 ORDER BY id`
	rows, err := a.pool.Query(ctx, query, string(parentID))
	if err != nil {
		repoLogger.Error("Failed to query children", err, nil)
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	children := make([]domain.PropertyRecord, 0)
	ids := make([]string, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child record: %w", err)
		}
		children = append(children, *rec)
		ids = append(ids, string(rec.ID))
	}
	if err := rows.Err(); err != nil {
		repoLogger.Error("Error during children rows iteration", err, nil)
		return nil, err
	}

	if len(ids) == 0 {
		return children, nil
	}

	locks, err := loadLocksFor(ctx, a.pool, ids)
	if err != nil {
		repoLogger.Error("Failed to load children locks", err, nil)
		return nil, err
	}
	for i := range children {
		children[i].LockedFields = locks[children[i].ID]
	}

	repoLogger.Debug("Children loaded", port.Fields{"count": len(children)})
	return children, nil
}

// ApplyPropagation читает юнит под FOR UPDATE и пишет результат apply в той же транзакции.
// Две параллельные пропагации на один юнит выполняются по очереди.
func (a *PostgresRecordStorageAdapter) ApplyPropagation(ctx context.Context, childID domain.RecordID, apply port.PropagationApplier) error {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "PostgresRecordStorageAdapter",
		"method":    "ApplyPropagation",
		"child_id":  childID,
	})

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	fresh, err := loadRecord(ctx, tx, childID, true)
	if err != nil {
		return err
	}

	bundle, err := apply(*fresh)
	if err != nil {
		return err
	}
	if bundle == nil {
		repoLogger.Debug("Nothing to write for child", nil)
		return nil
	}

	if _, err := writeBundle(ctx, tx, *bundle); err != nil {
		repoLogger.Error("Failed to write propagation bundle", err, nil)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetAuditLog - страница журнала, старые записи первыми
func (a *PostgresRecordStorageAdapter) GetAuditLog(ctx context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	var exists bool
	if err := a.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM property_records WHERE id = $1)`, string(id)).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check record existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
	}
	return loadAudit(ctx, a.pool, id, limit, offset)
}

// UpsertRecord создает или полностью перезаписывает запись, версия выставляется заново.
// Существующая строка читается под FOR UPDATE вместе с блокировками и передается в merge.
func (a *PostgresRecordStorageAdapter) UpsertRecord(ctx context.Context, rec domain.PropertyRecord, merge port.ImportMerger) (*domain.PropertyRecord, error) {
	if merge == nil {
		return nil, fmt.Errorf("import merge function is required")
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored, err := loadRecord(ctx, tx, rec.ID, true)
	if errors.Is(err, domain.ErrRecordNotFound) {
		stored, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	merged, err := merge(stored, rec)
	if err != nil {
		return nil, err
	}
	if merged.ID != rec.ID {
		return nil, fmt.Errorf("%w: merge changed record id %s -> %s", domain.ErrInvalidRecord, rec.ID, merged.ID)
	}

	args, err := recordArgs(merged)
	if err != nil {
		return nil, err
	}

	var parentID *string
	if merged.ParentID != nil {
		p := string(*merged.ParentID)
		parentID = &p
	}

	query := `
		INSERT INTO property_records (
			id, parent_id, title, project_name, published_price, quoting_regime, canonical_price_usd,
			area, bedrooms, bathrooms, floor, latitude, longitude, location_bucket,
			parking, storage, construction_state, estimated_delivery_month,
			amenities, equipment, agent_contact, description, updated_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6, $7::numeric,
			$8::numeric, $9, $10::numeric, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22, clock_timestamp()
		)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = EXCLUDED.parent_id,
			title = EXCLUDED.title,
			project_name = EXCLUDED.project_name,
			published_price = EXCLUDED.published_price,
			quoting_regime = EXCLUDED.quoting_regime,
			canonical_price_usd = EXCLUDED.canonical_price_usd,
			area = EXCLUDED.area,
			bedrooms = EXCLUDED.bedrooms,
			bathrooms = EXCLUDED.bathrooms,
			floor = EXCLUDED.floor,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			location_bucket = EXCLUDED.location_bucket,
			parking = EXCLUDED.parking,
			storage = EXCLUDED.storage,
			construction_state = EXCLUDED.construction_state,
			estimated_delivery_month = EXCLUDED.estimated_delivery_month,
			amenities = EXCLUDED.amenities,
			equipment = EXCLUDED.equipment,
			agent_contact = EXCLUDED.agent_contact,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING updated_at`

	full := append([]any{string(merged.ID), parentID}, args...)
	out := merged.Clone()
	if err := tx.QueryRow(ctx, query, full...).Scan(&out.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	out.UpdatedAt = out.UpdatedAt.UTC()
	out.AuditLog = nil

	locks, err := loadLocksFor(ctx, tx, []string{string(out.ID)})
	if err != nil {
		return nil, err
	}
	out.LockedFields = locks[out.ID]

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &out, nil
}

func loadRecord(ctx context.Context, q querier, id domain.RecordID, forUpdate bool) (*domain.PropertyRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM property_records WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	rec, err := scanRecord(q.QueryRow(ctx, query, string(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}

	locks, err := loadLocksFor(ctx, q, []string{string(id)})
	if err != nil {
		return nil, err
	}
	rec.LockedFields = locks[id]
	return rec, nil
}

func loadLocksFor(ctx context.Context, q querier, ids []string) (map[domain.RecordID]domain.LockMap, error) {
	rows, err := q.Query(ctx, `
		SELECT record_id, field, actor_id, actor_name, locked_at, previous_value
		FROM field_locks
		WHERE record_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query field locks: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.RecordID]domain.LockMap)
	for rows.Next() {
		var (
			recordID string
			field    string
			info     domain.LockInfo
			previous []byte
		)
		if err := rows.Scan(&recordID, &field, &info.ActorID, &info.ActorName, &info.Timestamp, &previous); err != nil {
			return nil, fmt.Errorf("failed to scan field lock: %w", err)
		}
		if info.PreviousValue, err = recordcodec.DecodeValue(previous); err != nil {
			return nil, err
		}
		info.Timestamp = info.Timestamp.UTC()

		id := domain.RecordID(recordID)
		if out[id] == nil {
			out[id] = make(domain.LockMap)
		}
		out[id][domain.FieldName(field)] = info
	}
	return out, rows.Err()
}

// loadAudit: limit < 0 - весь журнал
func loadAudit(ctx context.Context, q querier, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	query := `
		SELECT field, previous_value, new_value, actor_id, actor_name, changed_at
		FROM audit_log
		WHERE record_id = $1
		ORDER BY seq`
	args := []any{string(id)}
	if limit >= 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ChangeRecord, 0)
	for rows.Next() {
		var (
			entry         domain.ChangeRecord
			field         string
			previous, now []byte
		)
		if err := rows.Scan(&field, &previous, &now, &entry.ActorID, &entry.ActorName, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Field = domain.FieldName(field)
		entry.Timestamp = entry.Timestamp.UTC()
		if entry.PreviousValue, err = recordcodec.DecodeValue(previous); err != nil {
			return nil, err
		}
		if entry.NewValue, err = recordcodec.DecodeValue(now); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// writeBundle - общий шаг записи для SaveEdit и ApplyPropagation, вызывается внутри транзакции
func writeBundle(ctx context.Context, tx pgx.Tx, bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	rec := bundle.Record

	args, err := recordArgs(rec)
	if err != nil {
		return nil, err
	}
	full := append([]any{string(rec.ID), bundle.ExpectedUpdatedAt}, args...)

	saved := rec.Clone()
	err = tx.QueryRow(ctx, updateRecordSQL, full...).Scan(&saved.UpdatedAt)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM property_records WHERE id = $1)`, string(rec.ID)).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check record existence: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, rec.ID)
		}
		return nil, domain.ErrStaleSnapshot
	}
	saved.UpdatedAt = saved.UpdatedAt.UTC()

	batch := &pgx.Batch{}
	for _, entry := range bundle.AuditEntries {
		previous, err := recordcodec.EncodeValue(entry.PreviousValue)
		if err != nil {
			return nil, err
		}
		next, err := recordcodec.EncodeValue(entry.NewValue)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
			INSERT INTO audit_log (id, record_id, field, previous_value, new_value, actor_id, actor_name, changed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), string(rec.ID), string(entry.Field), previous, next,
			entry.ActorID, entry.ActorName, entry.Timestamp,
		)
	}
	for field, info := range bundle.NewLocks {
		previous, err := recordcodec.EncodeValue(info.PreviousValue)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
			INSERT INTO field_locks (record_id, field, actor_id, actor_name, locked_at, previous_value)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (record_id, field) DO UPDATE SET
				actor_id = EXCLUDED.actor_id,
				actor_name = EXCLUDED.actor_name,
				locked_at = EXCLUDED.locked_at,
				previous_value = EXCLUDED.previous_value`,
			string(rec.ID), string(field), info.ActorID, info.ActorName, info.Timestamp, previous,
		)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return nil, fmt.Errorf("failed to write audit and locks: %w", err)
		}
	}

	return &saved, nil
}
