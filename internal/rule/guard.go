package rule

import (
	"fmt"
	"strings"

	"github.com/backofhouse/tally/internal/model"
)

// genericTerms are text patterns too broad to categorize on by
// themselves: a contains-match on "payment" would swallow most of a bank
// feed. A rule may still use them when another discriminating condition
// narrows it down.
var genericTerms = []string{
	"withdrawal",
	"deposit",
	"payment",
	"transfer",
	"debit",
	"credit",
	"ach",
	"wire",
	"check",
	"atm",
}

// minPatternLength is the shortest text pattern allowed without a
// supplier condition backing it up.
const minPatternLength = 3

// GuardViolation describes why the guard rejected a rule. It is surfaced
// both as the advisory check result and as the hard creation error.
type GuardViolation struct {
	Reason         string `json:"reason"`
	OffendingValue string `json:"offending_value"`
}

// Error implements the error interface.
func (v *GuardViolation) Error() string {
	return fmt.Sprintf("rule rejected: %s (offending value %q)", v.Reason, v.OffendingValue)
}

// Guard validates rules before they are persisted, blocking ones broad
// enough to miscategorize large swaths of records.
type Guard struct{}

// NewGuard creates a safety guard.
func NewGuard() *Guard {
	return &Guard{}
}

// Check runs the advisory tier: it returns every violation found, without
// failing. Callers surface these before commit.
func (g *Guard) Check(r *model.Rule) []GuardViolation {
	var violations []GuardViolation

	if r.Conditions.Empty() {
		violations = append(violations, GuardViolation{
			Reason: "rule has no discriminating conditions",
		})
		return violations
	}

	text := r.Conditions.Text
	if text == nil {
		return violations
	}

	qualified := r.Conditions.SupplierID != nil ||
		r.Conditions.AmountMin != nil ||
		r.Conditions.AmountMax != nil ||
		r.Conditions.PosCategory != nil

	if !qualified {
		if term := matchesGenericTerm(text.Value); term != "" {
			violations = append(violations, GuardViolation{
				Reason:         fmt.Sprintf("text pattern is a generic banking term (%q) and no supplier, amount range, or POS category narrows it", term),
				OffendingValue: text.Value,
			})
		}
	}

	if len(text.Value) < minPatternLength && r.Conditions.SupplierID == nil {
		violations = append(violations, GuardViolation{
			Reason:         fmt.Sprintf("text pattern is shorter than %d characters and no supplier condition is present", minPatternLength),
			OffendingValue: text.Value,
		})
	}

	return violations
}

// Validate runs the hard tier: the first violation is returned as an
// error and the rule must not be persisted.
func (g *Guard) Validate(r *model.Rule) error {
	violations := g.Check(r)
	if len(violations) == 0 {
		return nil
	}
	return &violations[0]
}

// matchesGenericTerm returns the blocklisted term the pattern value
// equals or contains, or "" when it is specific enough.
func matchesGenericTerm(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	for _, term := range genericTerms {
		if lowered == term || strings.Contains(lowered, term) {
			return term
		}
	}
	return ""
}
