package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/backofhouse/tally/internal/model"
)

const ruleColumns = `id, name, scope, priority, active, auto_apply,
	text_value, text_match_type, amount_min, amount_max,
	supplier_id, transaction_type, pos_category,
	direct_category_id, split_specs,
	apply_count, last_applied_at, created_at, updated_at`

// CreateRule persists a new rule. The caller is responsible for running
// the safety guard first; this only enforces structural validity and that
// target categories exist.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.verifyRuleCategories(ctx, rule); err != nil {
		return err
	}

	splitJSON, err := splitSpecsToJSON(rule.SplitSpecs)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rules (
			name, scope, priority, active, auto_apply,
			text_value, text_match_type, amount_min, amount_max,
			supplier_id, transaction_type, pos_category,
			direct_category_id, split_specs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Scope, rule.Priority, rule.Active, rule.AutoApply,
		textValue(rule), textMatchType(rule),
		nullInt64(rule.Conditions.AmountMin), nullInt64(rule.Conditions.AmountMax),
		nullString(rule.Conditions.SupplierID), txnTypeToNullString(rule.Conditions.TransactionType),
		nullString(rule.Conditions.PosCategory),
		nullInt64(rule.DirectCategoryID), splitJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get rule ID: %w", err)
	}

	rule.ID = id
	rule.CreatedAt = time.Now()
	rule.UpdatedAt = time.Now()

	return nil
}

// GetRule retrieves a rule by ID.
func (s *SQLiteStorage) GetRule(ctx context.Context, id int64) (*model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("rule %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// GetAllRules retrieves every rule, active or not, in resolution order.
func (s *SQLiteStorage) GetAllRules(ctx context.Context) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY priority DESC, created_at ASC, id ASC`)
}

// GetActiveRules retrieves the active rules whose scope covers the given
// source, in resolution order.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, source model.RecordSource) ([]model.Rule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !source.Valid() {
		return nil, fmt.Errorf("invalid record source: %q", source)
	}

	return s.queryRules(ctx, `
		SELECT `+ruleColumns+` FROM rules
		WHERE active = 1 AND (scope = ? OR scope = 'both')
		ORDER BY priority DESC, created_at ASC, id ASC`,
		string(source))
}

// CountAutoApplyRules counts the active auto-apply rules covering the
// given source. The auto-apply hook uses this as its short-circuit.
func (s *SQLiteStorage) CountAutoApplyRules(ctx context.Context, source model.RecordSource) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if !source.Valid() {
		return 0, fmt.Errorf("invalid record source: %q", source)
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM rules
		WHERE auto_apply = 1 AND active = 1 AND (scope = ? OR scope = 'both')`,
		string(source)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auto-apply rules: %w", err)
	}
	return count, nil
}

// UpdateRule updates an existing rule's definition. Stats and created_at
// are left untouched.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.Rule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}
	if err := s.verifyRuleCategories(ctx, rule); err != nil {
		return err
	}

	splitJSON, err := splitSpecsToJSON(rule.SplitSpecs)
	if err != nil {
		return err
	}

	query := `
		UPDATE rules SET
			name = ?, scope = ?, priority = ?, active = ?, auto_apply = ?,
			text_value = ?, text_match_type = ?, amount_min = ?, amount_max = ?,
			supplier_id = ?, transaction_type = ?, pos_category = ?,
			direct_category_id = ?, split_specs = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Name, rule.Scope, rule.Priority, rule.Active, rule.AutoApply,
		textValue(rule), textMatchType(rule),
		nullInt64(rule.Conditions.AmountMin), nullInt64(rule.Conditions.AmountMax),
		nullString(rule.Conditions.SupplierID), txnTypeToNullString(rule.Conditions.TransactionType),
		nullString(rule.Conditions.PosCategory),
		nullInt64(rule.DirectCategoryID), splitJSON,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireRowsAffected(result, rule.ID)
}

// DeleteRule deletes a rule. Records it already categorized and their
// allocations are untouched.
func (s *SQLiteStorage) DeleteRule(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM rules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowsAffected(result, id)
}

// SetRuleActive toggles a rule's active flag.
func (s *SQLiteStorage) SetRuleActive(ctx context.Context, id int64, active bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE rules SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to set rule active: %w", err)
	}
	return requireRowsAffected(result, id)
}

// SetRuleAutoApply toggles a rule's auto-apply flag.
func (s *SQLiteStorage) SetRuleAutoApply(ctx context.Context, id int64, autoApply bool) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE rules SET auto_apply = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, autoApply, id)
	if err != nil {
		return fmt.Errorf("failed to set rule auto-apply: %w", err)
	}
	return requireRowsAffected(result, id)
}

// IncrementRuleApplyCount bumps a rule's apply count and stamps the
// application time.
func (s *SQLiteStorage) IncrementRuleApplyCount(ctx context.Context, id int64, appliedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return incrementRuleApplyCount(ctx, s.db, id, appliedAt)
}

func incrementRuleApplyCount(ctx context.Context, q queryer, id int64, appliedAt time.Time) error {
	result, err := q.ExecContext(ctx,
		`UPDATE rules SET apply_count = apply_count + 1, last_applied_at = ? WHERE id = ?`,
		appliedAt, id)
	if err != nil {
		return fmt.Errorf("failed to increment rule apply count: %w", err)
	}
	return requireRowsAffected(result, id)
}

// queryRules runs a query returning rule rows and scans them all.
func (s *SQLiteStorage) queryRules(ctx context.Context, query string, args ...any) ([]model.Rule, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRule(row scanner) (*model.Rule, error) {
	var rule model.Rule
	var textVal, textMatch, supplierID, txnType, posCategory, splitJSON sql.NullString
	var amountMin, amountMax, directCategoryID sql.NullInt64
	var lastAppliedAt sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Scope, &rule.Priority, &rule.Active, &rule.AutoApply,
		&textVal, &textMatch, &amountMin, &amountMax,
		&supplierID, &txnType, &posCategory,
		&directCategoryID, &splitJSON,
		&rule.Stats.ApplyCount, &lastAppliedAt, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if textVal.Valid && textMatch.Valid {
		rule.Conditions.Text = &model.TextCondition{
			Value:     textVal.String,
			MatchType: model.MatchType(textMatch.String),
		}
	}
	if amountMin.Valid {
		rule.Conditions.AmountMin = &amountMin.Int64
	}
	if amountMax.Valid {
		rule.Conditions.AmountMax = &amountMax.Int64
	}
	if supplierID.Valid {
		rule.Conditions.SupplierID = &supplierID.String
	}
	if txnType.Valid {
		t := model.TransactionType(txnType.String)
		rule.Conditions.TransactionType = &t
	}
	if posCategory.Valid {
		rule.Conditions.PosCategory = &posCategory.String
	}
	if directCategoryID.Valid {
		rule.DirectCategoryID = &directCategoryID.Int64
	}
	if splitJSON.Valid && splitJSON.String != "" {
		if err := json.Unmarshal([]byte(splitJSON.String), &rule.SplitSpecs); err != nil {
			return nil, fmt.Errorf("failed to decode split specs for rule %d: %w", rule.ID, err)
		}
	}
	if lastAppliedAt.Valid {
		rule.Stats.LastAppliedAt = &lastAppliedAt.Time
	}

	return &rule, nil
}

// verifyRuleCategories ensures every category the rule targets exists and
// is active, the way pattern rules verify their default category.
func (s *SQLiteStorage) verifyRuleCategories(ctx context.Context, rule *model.Rule) error {
	ids := make([]int64, 0, len(rule.SplitSpecs)+1)
	if rule.DirectCategoryID != nil {
		ids = append(ids, *rule.DirectCategoryID)
	}
	for _, spec := range rule.SplitSpecs {
		ids = append(ids, spec.CategoryID)
	}

	for _, id := range ids {
		var count int
		err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM categories WHERE id = ? AND is_active = 1", id).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to verify category: %w", err)
		}
		if count == 0 {
			return fmt.Errorf("category %d does not exist or is inactive", id)
		}
	}
	return nil
}

func requireRowsAffected(result sql.Result, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}
	return nil
}

func splitSpecsToJSON(specs []model.SplitSpec) (sql.NullString, error) {
	if len(specs) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(specs)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode split specs: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func textValue(rule *model.Rule) sql.NullString {
	if rule.Conditions.Text == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: rule.Conditions.Text.Value, Valid: true}
}

func textMatchType(rule *model.Rule) sql.NullString {
	if rule.Conditions.Text == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(rule.Conditions.Text.MatchType), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt64(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}

func txnTypeToNullString(t *model.TransactionType) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*t), Valid: true}
}
