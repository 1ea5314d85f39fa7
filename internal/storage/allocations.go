package storage

import (
	"context"
	"fmt"

	"github.com/backofhouse/tally/internal/model"
)

// CreateAllocation inserts one split allocation row.
func (s *SQLiteStorage) CreateAllocation(ctx context.Context, allocation *model.SplitAllocation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAllocation(allocation); err != nil {
		return err
	}
	return createAllocation(ctx, s.db, allocation)
}

func createAllocation(ctx context.Context, q queryer, allocation *model.SplitAllocation) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO split_allocations (record_id, category_id, amount, label)
		VALUES (?, ?, ?, ?)`,
		allocation.RecordID, allocation.CategoryID, allocation.Amount, allocation.Label)
	if err != nil {
		return fmt.Errorf("failed to create allocation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get allocation ID: %w", err)
	}
	allocation.ID = id
	return nil
}

// GetAllocationsForRecord retrieves a record's split allocations in
// insertion order, which is spec order.
func (s *SQLiteStorage) GetAllocationsForRecord(ctx context.Context, recordID string) ([]model.SplitAllocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(recordID, "recordID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, category_id, amount, label
		FROM split_allocations
		WHERE record_id = ?
		ORDER BY id ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var allocations []model.SplitAllocation
	for rows.Next() {
		var a model.SplitAllocation
		if err := rows.Scan(&a.ID, &a.RecordID, &a.CategoryID, &a.Amount, &a.Label); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating allocations: %w", err)
	}
	return allocations, nil
}
