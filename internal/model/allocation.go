package model

import "fmt"

// SplitAllocation assigns a portion of a record's amount to one category.
// Amount is absolute (unsigned magnitude) in minor units; the allocations
// for a record always sum to abs(record.Amount) exactly.
type SplitAllocation struct {
	RecordID   string `json:"record_id"`
	Label      string `json:"label"`
	ID         int64  `json:"id"`
	CategoryID int64  `json:"category_id"`
	Amount     int64  `json:"amount"`
}

// Validate ensures the allocation is well-formed.
func (a *SplitAllocation) Validate() error {
	if a.RecordID == "" {
		return fmt.Errorf("allocation record id is required")
	}
	if a.CategoryID == 0 {
		return fmt.Errorf("allocation category is required")
	}
	if a.Amount < 0 {
		return fmt.Errorf("allocation amount must be >= 0")
	}
	return nil
}
