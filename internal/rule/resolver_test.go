package rule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofhouse/tally/internal/model"
)

func matchAllRule(id int64, priority int, createdAt time.Time) model.Rule {
	return model.Rule{
		ID:        id,
		Name:      "rule",
		Scope:     model.ScopeBoth,
		Priority:  priority,
		Active:    true,
		CreatedAt: createdAt,
		Conditions: model.Conditions{
			Text: textCond("sysco", model.MatchContains),
		},
	}
}

func TestResolve_HighestPriorityWins(t *testing.T) {
	rec := model.Record{Source: model.SourceBank, Description: "SYSCO DALLAS", Amount: -45210}
	now := time.Now()

	low := matchAllRule(1, 5, now)
	high := matchAllRule(2, 10, now)

	// Winner is independent of snapshot order.
	for _, rules := range [][]model.Rule{{low, high}, {high, low}} {
		winner := Resolve(NewMatcher(rules), rec)
		require.NotNil(t, winner)
		assert.Equal(t, int64(2), winner.ID)
	}
}

func TestResolve_TiebreakEarliestCreated(t *testing.T) {
	rec := model.Record{Source: model.SourceBank, Description: "SYSCO DALLAS", Amount: -45210}
	now := time.Now()

	older := matchAllRule(7, 10, now.Add(-time.Hour))
	newer := matchAllRule(3, 10, now)

	for _, rules := range [][]model.Rule{{older, newer}, {newer, older}} {
		winner := Resolve(NewMatcher(rules), rec)
		require.NotNil(t, winner)
		assert.Equal(t, int64(7), winner.ID)
	}
}

func TestResolve_TiebreakLowestID(t *testing.T) {
	rec := model.Record{Source: model.SourceBank, Description: "SYSCO DALLAS", Amount: -45210}
	now := time.Now()

	a := matchAllRule(3, 10, now)
	b := matchAllRule(9, 10, now)

	winner := Resolve(NewMatcher([]model.Rule{b, a}), rec)
	require.NotNil(t, winner)
	assert.Equal(t, int64(3), winner.ID)
}

func TestResolve_FiltersInactiveAndScope(t *testing.T) {
	rec := model.Record{Source: model.SourcePOS, Description: "SYSCO DALLAS", Amount: 800}
	now := time.Now()

	inactive := matchAllRule(1, 100, now)
	inactive.Active = false

	bankOnly := matchAllRule(2, 50, now)
	bankOnly.Scope = model.ScopeBank

	posRule := matchAllRule(3, 1, now)
	posRule.Scope = model.ScopePOS

	winner := Resolve(NewMatcher([]model.Rule{inactive, bankOnly, posRule}), rec)
	require.NotNil(t, winner)
	assert.Equal(t, int64(3), winner.ID)
}

func TestResolve_NoMatchReturnsNil(t *testing.T) {
	rec := model.Record{Source: model.SourceBank, Description: "UNRELATED", Amount: -100}
	winner := Resolve(NewMatcher([]model.Rule{matchAllRule(1, 10, time.Now())}), rec)
	assert.Nil(t, winner)
}

func TestResolve_Deterministic(t *testing.T) {
	rec := model.Record{Source: model.SourceBank, Description: "SYSCO DALLAS", Amount: -45210}
	now := time.Now()
	m := NewMatcher([]model.Rule{
		matchAllRule(1, 5, now),
		matchAllRule(2, 10, now),
		matchAllRule(3, 10, now.Add(time.Minute)),
	})

	first := Resolve(m, rec)
	second := Resolve(m, rec)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
}
