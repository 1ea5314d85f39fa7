package rule

import (
	"log/slog"
	"regexp"

	"github.com/backofhouse/tally/internal/model"
)

// Matcher evaluates records against a snapshot of rules. Regex patterns
// are compiled once up front; a pattern that fails to compile is logged
// and its condition fails closed, so one bad rule never throws or poisons
// the rest of the set.
type Matcher struct {
	compiledRegex map[int64]*regexp.Regexp
	rules         []model.Rule
}

// NewMatcher creates a matcher over the given rule snapshot.
func NewMatcher(rules []model.Rule) *Matcher {
	m := &Matcher{
		rules:         rules,
		compiledRegex: make(map[int64]*regexp.Regexp),
	}

	for _, r := range rules {
		cond := r.Conditions.Text
		if cond == nil || cond.MatchType != model.MatchRegex {
			continue
		}
		re, err := regexp.Compile("(?i)" + cond.Value)
		if err != nil {
			slog.Error("invalid regex in rule condition, treating as non-match",
				"rule_id", r.ID,
				"pattern", cond.Value,
				"error", err)
			continue
		}
		m.compiledRegex[r.ID] = re
	}

	return m
}

// Rules returns the snapshot the matcher was built over.
func (m *Matcher) Rules() []model.Rule {
	return m.rules
}

// Matches reports whether every specified condition of the rule holds for
// the record. A rule with no conditions at all never matches; the guard
// should make that state unreachable, but the matcher does not rely on it.
func (m *Matcher) Matches(r model.Rule, rec model.Record) bool {
	evals := m.conditionFuncs(r)
	if len(evals) == 0 {
		return false
	}
	for _, eval := range evals {
		if !eval(rec) {
			return false
		}
	}
	return true
}

// conditionFuncs assembles the evaluators for the rule's present
// conditions. Absent fields contribute nothing, making them wildcards.
func (m *Matcher) conditionFuncs(r model.Rule) []conditionFunc {
	var evals []conditionFunc
	c := r.Conditions

	if c.Text != nil {
		evals = append(evals, evalText(*c.Text, m.compiledRegex[r.ID]))
	}
	if c.AmountMin != nil || c.AmountMax != nil {
		evals = append(evals, evalAmountRange(c.AmountMin, c.AmountMax))
	}
	if c.SupplierID != nil {
		evals = append(evals, evalSupplier(*c.SupplierID))
	}
	if c.TransactionType != nil {
		evals = append(evals, evalTransactionType(*c.TransactionType))
	}
	if c.PosCategory != nil {
		evals = append(evals, evalPosCategory(*c.PosCategory))
	}

	return evals
}
