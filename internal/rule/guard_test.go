package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofhouse/tally/internal/model"
)

func guardRule(conds model.Conditions) *model.Rule {
	catID := int64(1)
	return &model.Rule{
		Name:             "test rule",
		Scope:            model.ScopeBank,
		Conditions:       conds,
		DirectCategoryID: &catID,
	}
}

func TestGuard_GenericTermAloneRejected(t *testing.T) {
	g := NewGuard()

	for _, term := range []string{"withdrawal", "Withdrawal", "DEPOSIT", "payment", "transfer", "ach", "atm"} {
		r := guardRule(model.Conditions{
			Text: textCond(term, model.MatchContains),
		})
		err := g.Validate(r)
		require.Error(t, err, "term %q should be rejected alone", term)

		var violation *GuardViolation
		require.ErrorAs(t, err, &violation)
		assert.Equal(t, term, violation.OffendingValue)
		assert.NotEmpty(t, violation.Reason)
	}
}

func TestGuard_GenericTermWithQualifierAccepted(t *testing.T) {
	g := NewGuard()

	withSupplier := guardRule(model.Conditions{
		Text:       textCond("withdrawal", model.MatchContains),
		SupplierID: strPtr("sup-7"),
	})
	assert.NoError(t, g.Validate(withSupplier))

	withAmountRange := guardRule(model.Conditions{
		Text:      textCond("withdrawal", model.MatchContains),
		AmountMin: int64Ptr(712500),
		AmountMax: int64Ptr(787500),
	})
	assert.NoError(t, g.Validate(withAmountRange))

	withPosCategory := guardRule(model.Conditions{
		Text:        textCond("payment", model.MatchContains),
		PosCategory: strPtr("Catering"),
	})
	assert.NoError(t, g.Validate(withPosCategory))
}

func TestGuard_ShortPatternRejectedWithoutSupplier(t *testing.T) {
	g := NewGuard()

	short := guardRule(model.Conditions{
		Text: textCond("ab", model.MatchContains),
	})
	err := g.Validate(short)
	require.Error(t, err)

	var violation *GuardViolation
	require.ErrorAs(t, err, &violation)
	assert.Equal(t, "ab", violation.OffendingValue)

	withSupplier := guardRule(model.Conditions{
		Text:       textCond("ab", model.MatchContains),
		SupplierID: strPtr("sup-7"),
	})
	assert.NoError(t, g.Validate(withSupplier))
}

func TestGuard_NoConditionsRejected(t *testing.T) {
	g := NewGuard()

	err := g.Validate(guardRule(model.Conditions{}))
	require.Error(t, err)

	// transaction_type=any alone discriminates nothing.
	anyType := model.TypeAny
	err = g.Validate(guardRule(model.Conditions{TransactionType: &anyType}))
	require.Error(t, err)
}

func TestGuard_SpecificPatternAccepted(t *testing.T) {
	g := NewGuard()

	r := guardRule(model.Conditions{
		Text: textCond("SYSCO", model.MatchContains),
	})
	assert.NoError(t, g.Validate(r))
	assert.Empty(t, g.Check(r))
}

func TestGuard_CheckReturnsAllViolations(t *testing.T) {
	g := NewGuard()

	// "ach" is both generic and shorter than the minimum length.
	r := guardRule(model.Conditions{
		Text: textCond("ach", model.MatchContains),
	})
	violations := g.Check(r)
	require.Len(t, violations, 1)

	short := guardRule(model.Conditions{
		Text: textCond("at", model.MatchContains),
	})
	violations = g.Check(short)
	require.NotEmpty(t, violations)
}
