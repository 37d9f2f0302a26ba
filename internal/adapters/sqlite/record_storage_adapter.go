// Package sqlite - локальное хранилище записей для разработки и CLI.
// Запись хранится JSON-документом, блокировки и аудит - отдельными таблицами, как в postgres.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"property-sync-service/internal/adapters/recordcodec"
	"property-sync-service/internal/contextkeys"
	"property-sync-service/internal/core/domain"
	"property-sync-service/internal/core/port"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteRecordStorageAdapter реализует RecordStoragePort поверх одного соединения:
// транзакции выполняются строго по очереди.
type SQLiteRecordStorageAdapter struct {
	db  *sql.DB
	now func() time.Time
}

// Open открывает (или создает) файл базы и накатывает схему. ":memory:" - база в памяти.
func Open(ctx context.Context, path string) (*SQLiteRecordStorageAdapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// одно соединение: и сериализация записи, и общая база для ":memory:"
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	a := &SQLiteRecordStorageAdapter{db: db, now: time.Now}
	if err := a.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// WithClock подменяет часы, которыми выставляется версия записи
func (a *SQLiteRecordStorageAdapter) WithClock(now func() time.Time) *SQLiteRecordStorageAdapter {
	a.now = now
	return a
}

func (a *SQLiteRecordStorageAdapter) Close() error {
	return a.db.Close()
}

func (a *SQLiteRecordStorageAdapter) migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}

func (a *SQLiteRecordStorageAdapter) LoadRecord(ctx context.Context, id domain.RecordID) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "SQLiteRecordStorageAdapter",
		"method":    "LoadRecord",
		"record_id": id,
	})

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := loadRecord(ctx, tx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrRecordNotFound) {
			repoLogger.Error("Failed to load record", err, nil)
		}
		return nil, err
	}
	if rec.AuditLog, err = loadAudit(ctx, tx, id, -1, 0); err != nil {
		repoLogger.Error("Failed to load audit log", err, nil)
		return nil, err
	}
	return rec, nil
}

func (a *SQLiteRecordStorageAdapter) SaveEdit(ctx context.Context, bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	logger := contextkeys.LoggerFromContext(ctx)
	repoLogger := logger.WithFields(port.Fields{
		"component": "SQLiteRecordStorageAdapter",
		"method":    "SaveEdit",
		"record_id": bundle.Record.ID,
	})

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	saved, err := a.writeBundle(ctx, tx, bundle)
	if err != nil {
		if !errors.Is(err, domain.ErrStaleSnapshot) && !errors.Is(err, domain.ErrRecordNotFound) {
			repoLogger.Error("Failed to write save bundle", err, nil)
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	repoLogger.Info("Edit saved", port.Fields{
		"audit_entries": len(bundle.AuditEntries),
		"new_locks":     len(bundle.NewLocks),
	})
	return saved, nil
}

func (a *SQLiteRecordStorageAdapter) ListChildren(ctx context.Context, parentID domain.RecordID) ([]domain.PropertyRecord, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT document, updated_at_us FROM property_records WHERE parent_id = ? ORDER BY id`, string(parentID))
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}

	children := make([]domain.PropertyRecord, 0)
	for rows.Next() {
		rec, err := scanDocument(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		children = append(children, *rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range children {
		if children[i].LockedFields, err = loadLocks(ctx, tx, children[i].ID); err != nil {
			return nil, err
		}
	}
	return children, nil
}

// ApplyPropagation: чтение, apply и запись в одной транзакции на единственном соединении
func (a *SQLiteRecordStorageAdapter) ApplyPropagation(ctx context.Context, childID domain.RecordID, apply port.PropagationApplier) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fresh, err := loadRecord(ctx, tx, childID)
	if err != nil {
		return err
	}

	bundle, err := apply(*fresh)
	if err != nil {
		return err
	}
	if bundle == nil {
		return nil
	}

	if _, err := a.writeBundle(ctx, tx, *bundle); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (a *SQLiteRecordStorageAdapter) GetAuditLog(ctx context.Context, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := currentVersion(ctx, tx, id); err != nil {
		return nil, err
	}
	return loadAudit(ctx, tx, id, limit, offset)
}

// UpsertRecord создает или перезаписывает документ, блокировки и аудит не трогаются.
// merge видит сохраненную версию с блокировками в той же транзакции.
func (a *SQLiteRecordStorageAdapter) UpsertRecord(ctx context.Context, rec domain.PropertyRecord, merge port.ImportMerger) (*domain.PropertyRecord, error) {
	if merge == nil {
		return nil, fmt.Errorf("import merge function is required")
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var previous time.Time
	stored, err := loadRecord(ctx, tx, rec.ID)
	switch {
	case err == nil:
		previous = stored.UpdatedAt
	case errors.Is(err, domain.ErrRecordNotFound):
		stored = nil
	default:
		return nil, err
	}

	merged, err := merge(stored, rec)
	if err != nil {
		return nil, err
	}
	if merged.ID != rec.ID {
		return nil, fmt.Errorf("%w: merge changed record id %s -> %s", domain.ErrInvalidRecord, rec.ID, merged.ID)
	}

	out := merged.Clone()
	out.LockedFields = nil
	out.AuditLog = nil
	out.UpdatedAt = a.nextVersion(previous)

	doc, err := encodeDocument(out)
	if err != nil {
		return nil, err
	}

	var parentID *string
	if out.ParentID != nil {
		p := string(*out.ParentID)
		parentID = &p
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO property_records (id, parent_id, location_bucket, document, updated_at_us)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			parent_id = excluded.parent_id,
			location_bucket = excluded.location_bucket,
			document = excluded.document,
			updated_at_us = excluded.updated_at_us`,
		string(out.ID), parentID, recordcodec.LocationBucket(out.GPS), doc, out.UpdatedAt.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	if out.LockedFields, err = loadLocks(ctx, tx, out.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &out, nil
}

// nextVersion всегда строго больше предыдущей версии, даже при одинаковых показаниях часов
func (a *SQLiteRecordStorageAdapter) nextVersion(previous time.Time) time.Time {
	next := recordcodec.StoredTime(a.now())
	if !next.After(previous) {
		next = previous.Add(time.Microsecond)
	}
	return next
}

func (a *SQLiteRecordStorageAdapter) writeBundle(ctx context.Context, tx *sql.Tx, bundle domain.SaveBundle) (*domain.PropertyRecord, error) {
	rec := bundle.Record

	stored, err := currentVersion(ctx, tx, rec.ID)
	if err != nil {
		return nil, err
	}
	if !stored.Equal(recordcodec.StoredTime(bundle.ExpectedUpdatedAt)) {
		return nil, domain.ErrStaleSnapshot
	}

	saved := rec.Clone()
	saved.UpdatedAt = a.nextVersion(stored)

	doc, err := encodeDocument(saved)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE property_records
		SET document = ?, location_bucket = ?, updated_at_us = ?
		WHERE id = ? AND updated_at_us = ?`,
		doc, recordcodec.LocationBucket(saved.GPS), saved.UpdatedAt.UnixMicro(),
		string(rec.ID), stored.UnixMicro(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	} else if n == 0 {
		return nil, domain.ErrStaleSnapshot
	}

	for _, entry := range bundle.AuditEntries {
		previous, err := encodeNullable(entry.PreviousValue)
		if err != nil {
			return nil, err
		}
		next, err := encodeNullable(entry.NewValue)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO audit_log (id, record_id, field, previous_value, new_value, actor_id, actor_name, changed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), string(rec.ID), string(entry.Field), previous, next,
			entry.ActorID, entry.ActorName, entry.Timestamp.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return nil, fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}

	for field, info := range bundle.NewLocks {
		previous, err := encodeNullable(info.PreviousValue)
		if err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO field_locks (record_id, field, actor_id, actor_name, locked_at, previous_value)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (record_id, field) DO UPDATE SET
				actor_id = excluded.actor_id,
				actor_name = excluded.actor_name,
				locked_at = excluded.locked_at,
				previous_value = excluded.previous_value`,
			string(rec.ID), string(field), info.ActorID, info.ActorName,
			info.Timestamp.UTC().Format(time.RFC3339Nano), previous,
		); err != nil {
			return nil, fmt.Errorf("failed to upsert field lock: %w", err)
		}
	}

	return &saved, nil
}

func currentVersion(ctx context.Context, tx *sql.Tx, id domain.RecordID) (time.Time, error) {
	var us int64
	err := tx.QueryRowContext(ctx, `SELECT updated_at_us FROM property_records WHERE id = ?`, string(id)).Scan(&us)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
		}
		return time.Time{}, fmt.Errorf("failed to read record version: %w", err)
	}
	return time.UnixMicro(us).UTC(), nil
}

func loadRecord(ctx context.Context, tx *sql.Tx, id domain.RecordID) (*domain.PropertyRecord, error) {
	row := tx.QueryRowContext(ctx, `SELECT document, updated_at_us FROM property_records WHERE id = ?`, string(id))
	rec, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrRecordNotFound, id)
		}
		return nil, err
	}
	if rec.LockedFields, err = loadLocks(ctx, tx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*domain.PropertyRecord, error) {
	var (
		doc string
		us  int64
	)
	if err := row.Scan(&doc, &us); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan record: %w", err)
	}

	var rec domain.PropertyRecord
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode record document: %w", err)
	}
	rec.UpdatedAt = time.UnixMicro(us).UTC()
	rec.LockedFields = nil
	rec.AuditLog = nil
	return &rec, nil
}

func encodeDocument(rec domain.PropertyRecord) (string, error) {
	doc := rec.Clone()
	doc.LockedFields = nil
	doc.AuditLog = nil
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode record document: %w", err)
	}
	return string(data), nil
}

func loadLocks(ctx context.Context, tx *sql.Tx, id domain.RecordID) (domain.LockMap, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT field, actor_id, actor_name, locked_at, previous_value
		FROM field_locks WHERE record_id = ?`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to query field locks: %w", err)
	}
	defer rows.Close()

	var locks domain.LockMap
	for rows.Next() {
		var (
			field, lockedAt string
			info            domain.LockInfo
			previous        sql.NullString
		)
		if err := rows.Scan(&field, &info.ActorID, &info.ActorName, &lockedAt, &previous); err != nil {
			return nil, fmt.Errorf("failed to scan field lock: %w", err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, lockedAt); err != nil {
			return nil, fmt.Errorf("failed to parse lock timestamp: %w", err)
		}
		if info.PreviousValue, err = decodeNullable(previous); err != nil {
			return nil, err
		}
		if locks == nil {
			locks = make(domain.LockMap)
		}
		locks[domain.FieldName(field)] = info
	}
	return locks, rows.Err()
}

// loadAudit: limit < 0 - весь журнал
func loadAudit(ctx context.Context, tx *sql.Tx, id domain.RecordID, limit, offset int) ([]domain.ChangeRecord, error) {
	query := `
		SELECT field, previous_value, new_value, actor_id, actor_name, changed_at
		FROM audit_log WHERE record_id = ?
		ORDER BY seq`
	args := []any{string(id)}
	if limit >= 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, limit, offset)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.ChangeRecord, 0)
	for rows.Next() {
		var (
			entry           domain.ChangeRecord
			field, changed  string
			previous, value sql.NullString
		)
		if err := rows.Scan(&field, &previous, &value, &entry.ActorID, &entry.ActorName, &changed); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Field = domain.FieldName(field)
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, changed); err != nil {
			return nil, fmt.Errorf("failed to parse audit timestamp: %w", err)
		}
		if entry.PreviousValue, err = decodeNullable(previous); err != nil {
			return nil, err
		}
		if entry.NewValue, err = decodeNullable(value); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func encodeNullable(v any) (sql.NullString, error) {
	data, err := recordcodec.EncodeValue(v)
	if err != nil || data == nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeNullable(s sql.NullString) (any, error) {
	if !s.Valid {
		return nil, nil
	}
	return recordcodec.DecodeValue([]byte(s.String))
}
