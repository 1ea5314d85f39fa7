package engine

import (
	"context"

	"github.com/backofhouse/tally/internal/model"
	"github.com/backofhouse/tally/internal/service"
)

// Storage is the slice of the persistence contract the engine needs.
type Storage interface {
	SaveRecords(ctx context.Context, records []model.Record) error
	GetRecordByID(ctx context.Context, id string) (*model.Record, error)
	GetUncategorizedRecords(ctx context.Context, source model.RecordSource, limit int) ([]model.Record, error)

	CreateRule(ctx context.Context, rule *model.Rule) error
	GetRule(ctx context.Context, id int64) (*model.Rule, error)
	GetActiveRules(ctx context.Context, source model.RecordSource) ([]model.Rule, error)
	CountAutoApplyRules(ctx context.Context, source model.RecordSource) (int, error)
	UpdateRule(ctx context.Context, rule *model.Rule) error
	DeleteRule(ctx context.Context, id int64) error
	SetRuleActive(ctx context.Context, id int64, active bool) error
	SetRuleAutoApply(ctx context.Context, id int64, autoApply bool) error

	BeginTx(ctx context.Context) (service.Transaction, error)
}
