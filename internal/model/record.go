// Package model defines the core data structures for the tally engine.
package model

import (
	"fmt"
	"time"
)

// RecordSource identifies which adapter produced a record.
type RecordSource string

// Record sources.
const (
	SourceBank RecordSource = "bank"
	SourcePOS  RecordSource = "pos"
)

// Valid reports whether the source is a known value.
func (s RecordSource) Valid() bool {
	return s == SourceBank || s == SourcePOS
}

// CategorizationState tracks how far a record has progressed through
// categorization. The engine only ever moves a record out of
// StateUncategorized; the other states are terminal from its point of view.
type CategorizationState string

// Categorization states.
const (
	StateUncategorized      CategorizationState = "uncategorized"
	StateCategorized        CategorizationState = "categorized"
	StateSplit              CategorizationState = "split"
	StateManuallyOverridden CategorizationState = "manually_overridden"
)

// Valid reports whether the state is a known value.
func (s CategorizationState) Valid() bool {
	switch s {
	case StateUncategorized, StateCategorized, StateSplit, StateManuallyOverridden:
		return true
	}
	return false
}

// Record is a normalized transaction or sale as produced by an external
// adapter. Bank transactions and POS sales share one shape: Description
// holds the bank description or the POS item name depending on Source.
// Amount is signed, in integer minor units (cents).
type Record struct {
	CreatedAt   time.Time           `json:"created_at"`
	SupplierID  *string             `json:"supplier_id,omitempty"`
	PosCategory *string             `json:"pos_category,omitempty"`
	CategoryID  *int64              `json:"category_id,omitempty"`
	ID          string              `json:"id"`
	Description string              `json:"description"`
	Source      RecordSource        `json:"source"`
	State       CategorizationState `json:"state"`
	Amount      int64               `json:"amount"`
}

// AbsAmount returns the record's amount with the sign stripped.
func (r *Record) AbsAmount() int64 {
	if r.Amount < 0 {
		return -r.Amount
	}
	return r.Amount
}

// IsDebit reports whether the record represents money going out.
func (r *Record) IsDebit() bool {
	return r.Amount < 0
}

// Validate ensures the record is well-formed enough to persist.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record id is required")
	}
	if !r.Source.Valid() {
		return fmt.Errorf("invalid record source: %q", r.Source)
	}
	if r.Description == "" {
		return fmt.Errorf("record description is required")
	}
	if r.State != "" && !r.State.Valid() {
		return fmt.Errorf("invalid categorization state: %q", r.State)
	}
	return nil
}
