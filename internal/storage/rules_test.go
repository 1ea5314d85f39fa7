package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofhouse/tally/internal/model"
)

func newTestStorage(t *testing.T) (*SQLiteStorage, int64) {
	t.Helper()
	ctx := context.Background()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx))

	cat, err := store.CreateCategory(ctx, "Food COGS")
	require.NoError(t, err)
	return store, cat.ID
}

func TestCreateAndGetRule(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	supplier := "sup-42"
	amountMin := int64(1000)
	txnType := model.TypeDebit
	r := &model.Rule{
		Name:      "sysco invoices",
		Scope:     model.ScopeBank,
		Priority:  7,
		Active:    true,
		AutoApply: true,
		Conditions: model.Conditions{
			Text:            &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
			AmountMin:       &amountMin,
			SupplierID:      &supplier,
			TransactionType: &txnType,
		},
		DirectCategoryID: &catID,
	}

	require.NoError(t, store.CreateRule(ctx, r))
	require.NotZero(t, r.ID)

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "sysco invoices", got.Name)
	assert.Equal(t, model.ScopeBank, got.Scope)
	assert.Equal(t, 7, got.Priority)
	assert.True(t, got.Active)
	assert.True(t, got.AutoApply)
	require.NotNil(t, got.Conditions.Text)
	assert.Equal(t, "SYSCO", got.Conditions.Text.Value)
	assert.Equal(t, model.MatchContains, got.Conditions.Text.MatchType)
	require.NotNil(t, got.Conditions.AmountMin)
	assert.Equal(t, int64(1000), *got.Conditions.AmountMin)
	assert.Nil(t, got.Conditions.AmountMax)
	require.NotNil(t, got.Conditions.SupplierID)
	assert.Equal(t, "sup-42", *got.Conditions.SupplierID)
	require.NotNil(t, got.Conditions.TransactionType)
	assert.Equal(t, model.TypeDebit, *got.Conditions.TransactionType)
	require.NotNil(t, got.DirectCategoryID)
	assert.Equal(t, catID, *got.DirectCategoryID)
	assert.Equal(t, int64(0), got.Stats.ApplyCount)
	assert.Nil(t, got.Stats.LastAppliedAt)
}

func TestCreateRuleRequiresExistingCategory(t *testing.T) {
	store, _ := newTestStorage(t)
	ctx := context.Background()

	missing := int64(9999)
	r := &model.Rule{
		Name:  "bad target",
		Scope: model.ScopeBank,
		Conditions: model.Conditions{
			Text: &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
		},
		DirectCategoryID: &missing,
	}
	err := store.CreateRule(ctx, r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestSplitSpecsRoundTrip(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	bev, err := store.CreateCategory(ctx, "Beverage COGS")
	require.NoError(t, err)

	pct := "70"
	fixed := int64(240)
	r := &model.Rule{
		Name:   "combo split",
		Scope:  model.ScopePOS,
		Active: true,
		Conditions: model.Conditions{
			Text: &model.TextCondition{Value: "combo", MatchType: model.MatchContains},
		},
		SplitSpecs: []model.SplitSpec{
			{CategoryID: catID, Percentage: &pct, Label: "Food"},
			{CategoryID: bev.ID, FixedAmount: &fixed, Label: "Beverage"},
		},
	}
	require.NoError(t, store.CreateRule(ctx, r))

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, got.SplitSpecs, 2)
	require.NotNil(t, got.SplitSpecs[0].Percentage)
	assert.Equal(t, "70", *got.SplitSpecs[0].Percentage)
	assert.Equal(t, "Food", got.SplitSpecs[0].Label)
	require.NotNil(t, got.SplitSpecs[1].FixedAmount)
	assert.Equal(t, int64(240), *got.SplitSpecs[1].FixedAmount)
	assert.Nil(t, got.DirectCategoryID)
}

func TestGetActiveRulesFiltersScopeAndActive(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	mk := func(name string, scope model.RuleScope, active bool) *model.Rule {
		r := &model.Rule{
			Name:   name,
			Scope:  scope,
			Active: active,
			Conditions: model.Conditions{
				Text: &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
			},
			DirectCategoryID: &catID,
		}
		require.NoError(t, store.CreateRule(ctx, r))
		return r
	}

	mk("bank", model.ScopeBank, true)
	mk("pos", model.ScopePOS, true)
	mk("both", model.ScopeBoth, true)
	mk("inactive", model.ScopeBank, false)

	bankRules, err := store.GetActiveRules(ctx, model.SourceBank)
	require.NoError(t, err)
	names := make([]string, 0, len(bankRules))
	for _, r := range bankRules {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{"bank", "both"}, names)

	posRules, err := store.GetActiveRules(ctx, model.SourcePOS)
	require.NoError(t, err)
	require.Len(t, posRules, 2)
}

func TestCountAutoApplyRules(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	count, err := store.CountAutoApplyRules(ctx, model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	r := &model.Rule{
		Name:      "auto",
		Scope:     model.ScopeBoth,
		Active:    true,
		AutoApply: true,
		Conditions: model.Conditions{
			Text: &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
		},
		DirectCategoryID: &catID,
	}
	require.NoError(t, store.CreateRule(ctx, r))

	count, err = store.CountAutoApplyRules(ctx, model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, store.SetRuleActive(ctx, r.ID, false))
	count, err = store.CountAutoApplyRules(ctx, model.SourceBank)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUpdateAndDeleteRule(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	r := &model.Rule{
		Name:   "original",
		Scope:  model.ScopeBank,
		Active: true,
		Conditions: model.Conditions{
			Text: &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
		},
		DirectCategoryID: &catID,
	}
	require.NoError(t, store.CreateRule(ctx, r))

	r.Name = "renamed"
	r.Priority = 42
	require.NoError(t, store.UpdateRule(ctx, r))

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Name)
	assert.Equal(t, 42, got.Priority)

	require.NoError(t, store.DeleteRule(ctx, r.ID))
	_, err = store.GetRule(ctx, r.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.DeleteRule(ctx, r.ID), ErrNotFound)
}

func TestIncrementRuleApplyCount(t *testing.T) {
	store, catID := newTestStorage(t)
	ctx := context.Background()

	r := &model.Rule{
		Name:   "counter",
		Scope:  model.ScopeBank,
		Active: true,
		Conditions: model.Conditions{
			Text: &model.TextCondition{Value: "SYSCO", MatchType: model.MatchContains},
		},
		DirectCategoryID: &catID,
	}
	require.NoError(t, store.CreateRule(ctx, r))

	appliedAt := time.Now()
	require.NoError(t, store.IncrementRuleApplyCount(ctx, r.ID, appliedAt))
	require.NoError(t, store.IncrementRuleApplyCount(ctx, r.ID, appliedAt.Add(time.Minute)))

	got, err := store.GetRule(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Stats.ApplyCount)
	require.NotNil(t, got.Stats.LastAppliedAt)
}
