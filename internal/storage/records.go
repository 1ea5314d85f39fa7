package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/backofhouse/tally/internal/model"
)

const recordColumns = `id, source, description, amount, supplier_id, pos_category, state, category_id, created_at`

// SaveRecords inserts normalized records, skipping IDs already present so
// adapters can re-deliver safely.
func (s *SQLiteStorage) SaveRecords(ctx context.Context, records []model.Record) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO records (id, source, description, amount, supplier_id, pos_category, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range records {
		rec := &records[i]
		state := rec.State
		if state == "" {
			state = model.StateUncategorized
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.Source, rec.Description, rec.Amount,
			nullString(rec.SupplierID), nullString(rec.PosCategory), state,
		); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// GetRecordByID retrieves a single record.
func (s *SQLiteStorage) GetRecordByID(ctx context.Context, id string) (*model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return rec, nil
}

// GetUncategorizedRecords retrieves up to limit uncategorized records for
// a source, oldest first so backfills drain in insertion order.
func (s *SQLiteStorage) GetUncategorizedRecords(ctx context.Context, source model.RecordSource, limit int) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !source.Valid() {
		return nil, fmt.Errorf("invalid record source: %q", source)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE state = ? AND source = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		model.StateUncategorized, source, limit)
}

// GetRecords retrieves up to limit records for a source, newest first.
func (s *SQLiteStorage) GetRecords(ctx context.Context, source model.RecordSource, limit int) ([]model.Record, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !source.Valid() {
		return nil, fmt.Errorf("invalid record source: %q", source)
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM records
		WHERE source = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`,
		source, limit)
}

// CategorizeRecord transitions a record to categorized only if it is
// still uncategorized. The returned bool reports whether this caller won
// the transition; losing is not an error.
func (s *SQLiteStorage) CategorizeRecord(ctx context.Context, recordID string, categoryID int64) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return false, err
	}
	return categorizeRecord(ctx, s.db, recordID, categoryID)
}

// MarkRecordSplit transitions a record to split, clearing any direct
// category, only if it is still uncategorized.
func (s *SQLiteStorage) MarkRecordSplit(ctx context.Context, recordID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return false, err
	}
	return markRecordSplit(ctx, s.db, recordID)
}

// categorizeRecord is the conditional update at the heart of the race
// guard: the WHERE clause only hits rows still uncategorized, and the
// affected-row count says whether this caller made the transition.
func categorizeRecord(ctx context.Context, q queryer, recordID string, categoryID int64) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE records SET state = ?, category_id = ?
		WHERE id = ? AND state = ?`,
		model.StateCategorized, categoryID, recordID, model.StateUncategorized)
	if err != nil {
		return false, fmt.Errorf("failed to categorize record: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func markRecordSplit(ctx context.Context, q queryer, recordID string) (bool, error) {
	result, err := q.ExecContext(ctx, `
		UPDATE records SET state = ?, category_id = NULL
		WHERE id = ? AND state = ?`,
		model.StateSplit, recordID, model.StateUncategorized)
	if err != nil {
		return false, fmt.Errorf("failed to mark record split: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (s *SQLiteStorage) queryRecords(ctx context.Context, query string, args ...any) ([]model.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

func scanRecord(row scanner) (*model.Record, error) {
	var rec model.Record
	var supplierID, posCategory sql.NullString
	var categoryID sql.NullInt64

	err := row.Scan(
		&rec.ID, &rec.Source, &rec.Description, &rec.Amount,
		&supplierID, &posCategory, &rec.State, &categoryID, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if supplierID.Valid {
		rec.SupplierID = &supplierID.String
	}
	if posCategory.Valid {
		rec.PosCategory = &posCategory.String
	}
	if categoryID.Valid {
		rec.CategoryID = &categoryID.Int64
	}
	return &rec, nil
}
