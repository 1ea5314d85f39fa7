package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RuleScope restricts a rule to records from a particular source.
type RuleScope string

// Rule scopes.
const (
	ScopeBank RuleScope = "bank"
	ScopePOS  RuleScope = "pos"
	ScopeBoth RuleScope = "both"
)

// Valid reports whether the scope is a known value.
func (s RuleScope) Valid() bool {
	return s == ScopeBank || s == ScopePOS || s == ScopeBoth
}

// Covers reports whether a rule with this scope applies to records from
// the given source.
func (s RuleScope) Covers(src RecordSource) bool {
	switch s {
	case ScopeBoth:
		return true
	case ScopeBank:
		return src == SourceBank
	case ScopePOS:
		return src == SourcePOS
	}
	return false
}

// MatchType selects the string-comparison mode for a text condition.
type MatchType string

// Match types.
const (
	MatchExact      MatchType = "exact"
	MatchContains   MatchType = "contains"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
)

// Valid reports whether the match type is a known value.
func (m MatchType) Valid() bool {
	switch m {
	case MatchExact, MatchContains, MatchStartsWith, MatchEndsWith, MatchRegex:
		return true
	}
	return false
}

// TransactionType constrains a rule to debits, credits, or either.
type TransactionType string

// Transaction types.
const (
	TypeDebit  TransactionType = "debit"
	TypeCredit TransactionType = "credit"
	TypeAny    TransactionType = "any"
)

// Valid reports whether the transaction type is a known value.
func (t TransactionType) Valid() bool {
	return t == TypeDebit || t == TypeCredit || t == TypeAny
}

// TextCondition matches the record's description (or POS item name) against
// a pattern.
type TextCondition struct {
	Value     string    `json:"value"`
	MatchType MatchType `json:"match_type"`
}

// Conditions is a rule's condition set. Each field is optional; the ones
// present are ANDed. A nil field is a wildcard and never evaluated.
type Conditions struct {
	Text            *TextCondition   `json:"text,omitempty"`
	AmountMin       *int64           `json:"amount_min,omitempty"`
	AmountMax       *int64           `json:"amount_max,omitempty"`
	SupplierID      *string          `json:"supplier_id,omitempty"`
	TransactionType *TransactionType `json:"transaction_type,omitempty"`
	PosCategory     *string          `json:"pos_category,omitempty"`
}

// Empty reports whether no condition is specified at all.
func (c Conditions) Empty() bool {
	return c.Text == nil &&
		c.AmountMin == nil && c.AmountMax == nil &&
		c.SupplierID == nil &&
		(c.TransactionType == nil || *c.TransactionType == TypeAny) &&
		c.PosCategory == nil
}

// SplitSpec describes one leg of a split target. Exactly one of Percentage
// or FixedAmount is set. Percentage is expressed in percent (e.g. "70"),
// FixedAmount in absolute minor units.
type SplitSpec struct {
	Percentage  *string `json:"percentage,omitempty"`
	FixedAmount *int64  `json:"fixed_amount,omitempty"`
	Label       string  `json:"label"`
	CategoryID  int64   `json:"category_id"`
}

// RuleStats tracks how often a rule has been applied. ApplyCount only
// moves forward, and only inside the same transaction that commits an
// application.
type RuleStats struct {
	LastAppliedAt *time.Time `json:"last_applied_at,omitempty"`
	ApplyCount    int64      `json:"apply_count"`
}

// Rule is a stored categorization rule. Its target is either a direct
// category (DirectCategoryID set, SplitSpecs empty) or an ordered split
// (DirectCategoryID nil, SplitSpecs non-empty).
type Rule struct {
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
	DirectCategoryID *int64      `json:"direct_category_id,omitempty"`
	Name             string      `json:"name"`
	Scope            RuleScope   `json:"scope"`
	Conditions       Conditions  `json:"conditions"`
	SplitSpecs       []SplitSpec `json:"split_specs,omitempty"`
	Stats            RuleStats   `json:"stats"`
	ID               int64       `json:"id"`
	Priority         int         `json:"priority"`
	Active           bool        `json:"active"`
	AutoApply        bool        `json:"auto_apply"`
}

// IsSplit reports whether the rule targets a split rather than a single
// category.
func (r *Rule) IsSplit() bool {
	return len(r.SplitSpecs) > 0
}

// Validate ensures the rule is structurally sound. The overbreadth checks
// live in the safety guard; this covers shape only.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if !r.Scope.Valid() {
		return fmt.Errorf("invalid rule scope: %q", r.Scope)
	}
	if r.Conditions.Text != nil && !r.Conditions.Text.MatchType.Valid() {
		return fmt.Errorf("invalid match type: %q", r.Conditions.Text.MatchType)
	}
	if r.Conditions.TransactionType != nil && !r.Conditions.TransactionType.Valid() {
		return fmt.Errorf("invalid transaction type: %q", *r.Conditions.TransactionType)
	}
	if r.Conditions.AmountMin != nil && *r.Conditions.AmountMin < 0 {
		return fmt.Errorf("amount range bounds compare against abs(amount) and must be >= 0")
	}
	if r.Conditions.AmountMax != nil && *r.Conditions.AmountMax < 0 {
		return fmt.Errorf("amount range bounds compare against abs(amount) and must be >= 0")
	}
	if r.Conditions.AmountMin != nil && r.Conditions.AmountMax != nil &&
		*r.Conditions.AmountMin > *r.Conditions.AmountMax {
		return fmt.Errorf("amount min must be <= amount max")
	}

	switch {
	case r.DirectCategoryID == nil && len(r.SplitSpecs) == 0:
		return fmt.Errorf("rule must target a category or a split")
	case r.DirectCategoryID != nil && len(r.SplitSpecs) > 0:
		return fmt.Errorf("rule cannot target both a category and a split")
	case len(r.SplitSpecs) == 1:
		return fmt.Errorf("a split needs at least two specs")
	}

	for i, spec := range r.SplitSpecs {
		if spec.CategoryID == 0 {
			return fmt.Errorf("split spec %d: category is required", i)
		}
		if (spec.Percentage == nil) == (spec.FixedAmount == nil) {
			return fmt.Errorf("split spec %d: exactly one of percentage or fixed amount is required", i)
		}
		if spec.Percentage != nil {
			pct, err := decimal.NewFromString(*spec.Percentage)
			if err != nil {
				return fmt.Errorf("split spec %d: invalid percentage %q", i, *spec.Percentage)
			}
			if pct.Sign() <= 0 {
				return fmt.Errorf("split spec %d: percentage must be positive, got %q", i, *spec.Percentage)
			}
		}
		if spec.FixedAmount != nil && *spec.FixedAmount < 0 {
			return fmt.Errorf("split spec %d: fixed amount must be >= 0", i)
		}
	}

	return nil
}
