package rule

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/backofhouse/tally/internal/model"
)

// Split errors.
var (
	// ErrSplitExceedsTotal means the non-last specs alone already consume
	// more than the record's absolute amount.
	ErrSplitExceedsTotal = fmt.Errorf("split specs exceed record amount")
	// ErrSplitNegativeRemainder means the last spec would have to absorb a
	// negative amount to reconcile the total.
	ErrSplitNegativeRemainder = fmt.Errorf("split remainder is negative")
)

// ConvertSplits turns a rule's split specs into reconciled absolute
// amounts for a record of totalAbs minor units. Percentages are rounded
// half-up to whole minor units; the last spec absorbs whatever remainder
// the earlier roundings leave, so the amounts always sum to totalAbs
// exactly. Returns one amount per spec, in spec order.
func ConvertSplits(specs []model.SplitSpec, totalAbs int64) ([]int64, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no split specs")
	}
	if totalAbs < 0 {
		return nil, fmt.Errorf("total must be absolute, got %d", totalAbs)
	}

	amounts := make([]int64, len(specs))
	total := decimal.NewFromInt(totalAbs)
	var allocated int64

	for i, spec := range specs[:len(specs)-1] {
		var amount int64
		switch {
		case spec.Percentage != nil:
			pct, err := decimal.NewFromString(*spec.Percentage)
			if err != nil {
				return nil, fmt.Errorf("split spec %d: invalid percentage %q: %w", i, *spec.Percentage, err)
			}
			amount = total.Mul(pct).Div(decimal.NewFromInt(100)).Round(0).IntPart()
		case spec.FixedAmount != nil:
			amount = *spec.FixedAmount
			if amount > totalAbs {
				return nil, fmt.Errorf("split spec %d: fixed amount %d: %w", i, amount, ErrSplitExceedsTotal)
			}
		default:
			return nil, fmt.Errorf("split spec %d has neither percentage nor fixed amount", i)
		}
		amounts[i] = amount
		allocated += amount
	}

	remainder := totalAbs - allocated
	if remainder < 0 {
		return nil, fmt.Errorf("allocated %d of %d: %w", allocated, totalAbs, ErrSplitNegativeRemainder)
	}
	amounts[len(specs)-1] = remainder

	return amounts, nil
}
