// Package rule implements condition evaluation, rule matching, winner
// resolution, split conversion, and pre-creation safety checks for the
// categorization engine.
package rule

import (
	"regexp"
	"strings"

	"github.com/backofhouse/tally/internal/model"
)

// conditionFunc evaluates one condition kind against a record. Each
// present condition contributes one of these; the matcher ANDs them.
type conditionFunc func(rec model.Record) bool

// evalText evaluates a text condition against the record description.
// Comparison is case-insensitive: the plain match types lowercase both
// sides, regex patterns rely solely on the (?i) flag the matcher compiles
// in and run against the raw description. For regex conditions the caller
// supplies the pre-compiled pattern; a nil re means the pattern failed to
// compile and the condition fails closed.
func evalText(cond model.TextCondition, re *regexp.Regexp) conditionFunc {
	if cond.MatchType == model.MatchRegex {
		return func(rec model.Record) bool {
			if re == nil {
				return false
			}
			return re.MatchString(rec.Description)
		}
	}

	value := strings.ToLower(cond.Value)
	return func(rec model.Record) bool {
		text := strings.ToLower(rec.Description)
		switch cond.MatchType {
		case model.MatchExact:
			return text == value
		case model.MatchContains:
			return strings.Contains(text, value)
		case model.MatchStartsWith:
			return strings.HasPrefix(text, value)
		case model.MatchEndsWith:
			return strings.HasSuffix(text, value)
		}
		return false
	}
}

// evalAmountRange compares bounds against abs(record.Amount). A missing
// bound is unbounded on that side.
func evalAmountRange(min, max *int64) conditionFunc {
	return func(rec model.Record) bool {
		amount := rec.AbsAmount()
		if min != nil && amount < *min {
			return false
		}
		if max != nil && amount > *max {
			return false
		}
		return true
	}
}

// evalSupplier requires an exact supplier match. A record without a
// supplier never satisfies a supplier condition.
func evalSupplier(supplierID string) conditionFunc {
	return func(rec model.Record) bool {
		return rec.SupplierID != nil && *rec.SupplierID == supplierID
	}
}

// evalTransactionType distinguishes debits from credits by the sign of
// the record amount. TypeAny always passes.
func evalTransactionType(txnType model.TransactionType) conditionFunc {
	return func(rec model.Record) bool {
		switch txnType {
		case model.TypeAny:
			return true
		case model.TypeDebit:
			return rec.IsDebit()
		case model.TypeCredit:
			return !rec.IsDebit()
		}
		return false
	}
}

// evalPosCategory requires a case-insensitive exact match on the record's
// POS category.
func evalPosCategory(posCategory string) conditionFunc {
	want := strings.ToLower(posCategory)
	return func(rec model.Record) bool {
		return rec.PosCategory != nil && strings.ToLower(*rec.PosCategory) == want
	}
}
