// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/backofhouse/tally/internal/model"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Record operations
	SaveRecords(ctx context.Context, records []model.Record) error
	GetRecordByID(ctx context.Context, id string) (*model.Record, error)
	GetUncategorizedRecords(ctx context.Context, source model.RecordSource, limit int) ([]model.Record, error)
	GetRecords(ctx context.Context, source model.RecordSource, limit int) ([]model.Record, error)
	// CategorizeRecord transitions a record to categorized only if it is
	// still uncategorized; the bool reports whether the update won.
	CategorizeRecord(ctx context.Context, recordID string, categoryID int64) (bool, error)
	// MarkRecordSplit transitions a record to split (category cleared)
	// only if it is still uncategorized.
	MarkRecordSplit(ctx context.Context, recordID string) (bool, error)

	// Allocation operations
	CreateAllocation(ctx context.Context, allocation *model.SplitAllocation) error
	GetAllocationsForRecord(ctx context.Context, recordID string) ([]model.SplitAllocation, error)

	// Rule operations
	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetAllRules(ctx context.Context) ([]model.Rule, error)
	GetActiveRules(ctx context.Context, source model.RecordSource) ([]model.Rule, error)
	CountAutoApplyRules(ctx context.Context, source model.RecordSource) (int, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	SetRuleActive(ctx context.Context, id int64, active bool) error
	SetRuleAutoApply(ctx context.Context, id int64, autoApply bool) error
	IncrementRuleApplyCount(ctx context.Context, id int64, appliedAt time.Time) error

	// Category operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, name string) (*model.Category, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction scopes the storage operations an application commits as one
// atomic unit. Everything called through it either commits together or
// not at all.
type Transaction interface {
	Commit() error
	Rollback() error

	CategorizeRecord(ctx context.Context, recordID string, categoryID int64) (bool, error)
	MarkRecordSplit(ctx context.Context, recordID string) (bool, error)
	CreateAllocation(ctx context.Context, allocation *model.SplitAllocation) error
	IncrementRuleApplyCount(ctx context.Context, id int64, appliedAt time.Time) error
}
