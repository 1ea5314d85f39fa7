package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/backofhouse/tally/internal/model"
)

func strPtr(s string) *string { return &s }

func int64Ptr(n int64) *int64 { return &n }

func typePtr(t model.TransactionType) *model.TransactionType { return &t }

func textCond(value string, mt model.MatchType) *model.TextCondition {
	return &model.TextCondition{Value: value, MatchType: mt}
}

func TestMatcher_Matches(t *testing.T) {
	tests := []struct {
		name string
		rule model.Rule
		rec  model.Record
		want bool
	}{
		{
			name: "exact match is case insensitive",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond("sysco dallas", model.MatchExact)},
			},
			rec:  model.Record{Description: "SYSCO DALLAS", Amount: -4521},
			want: true,
		},
		{
			name: "contains match",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond("SYSCO", model.MatchContains)},
			},
			rec:  model.Record{Description: "Sysco Dallas #1042", Amount: -4521},
			want: true,
		},
		{
			name: "starts with match",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond("us foods", model.MatchStartsWith)},
			},
			rec:  model.Record{Description: "US FOODS INV 99812", Amount: -120000},
			want: true,
		},
		{
			name: "ends with match",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond("combo", model.MatchEndsWith)},
			},
			rec:  model.Record{Description: "Coffee Combo", Amount: 800},
			want: true,
		},
		{
			name: "regex match",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond(`sysco\s+(dallas|austin)`, model.MatchRegex)},
			},
			rec:  model.Record{Description: "SYSCO AUSTIN", Amount: -4521},
			want: true,
		},
		{
			name: "regex is case insensitive in both directions",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond(`Sysco\s+Dallas`, model.MatchRegex)},
			},
			rec:  model.Record{Description: "SYSCO dallas", Amount: -4521},
			want: true,
		},
		{
			name: "invalid regex fails closed",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{Text: textCond(`sysco[`, model.MatchRegex)},
			},
			rec:  model.Record{Description: "sysco[", Amount: -4521},
			want: false,
		},
		{
			name: "amount range compares against absolute amount",
			rule: model.Rule{
				ID: 1,
				Conditions: model.Conditions{
					AmountMin: int64Ptr(1000),
					AmountMax: int64Ptr(5000),
				},
			},
			rec:  model.Record{Description: "anything", Amount: -4521},
			want: true,
		},
		{
			name: "amount below range",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{AmountMin: int64Ptr(10000)},
			},
			rec:  model.Record{Description: "anything", Amount: -4521},
			want: false,
		},
		{
			name: "missing max bound is unbounded",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{AmountMin: int64Ptr(1)},
			},
			rec:  model.Record{Description: "anything", Amount: 99999999},
			want: true,
		},
		{
			name: "supplier exact match",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{SupplierID: strPtr("sup-42")},
			},
			rec:  model.Record{Description: "x", SupplierID: strPtr("sup-42")},
			want: true,
		},
		{
			name: "supplier condition fails without record supplier",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{SupplierID: strPtr("sup-42")},
			},
			rec:  model.Record{Description: "x"},
			want: false,
		},
		{
			name: "debit type matches negative amount",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{TransactionType: typePtr(model.TypeDebit)},
			},
			rec:  model.Record{Description: "x", Amount: -100},
			want: true,
		},
		{
			name: "credit type rejects negative amount",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{TransactionType: typePtr(model.TypeCredit)},
			},
			rec:  model.Record{Description: "x", Amount: -100},
			want: false,
		},
		{
			name: "any type matches either sign",
			rule: model.Rule{
				ID: 1,
				Conditions: model.Conditions{
					TransactionType: typePtr(model.TypeAny),
					AmountMin:       int64Ptr(1),
				},
			},
			rec:  model.Record{Description: "x", Amount: -100},
			want: true,
		},
		{
			name: "pos category is case insensitive",
			rule: model.Rule{
				ID:         1,
				Conditions: model.Conditions{PosCategory: strPtr("Beverages")},
			},
			rec:  model.Record{Description: "x", PosCategory: strPtr("BEVERAGES")},
			want: true,
		},
		{
			name: "all conditions must hold",
			rule: model.Rule{
				ID: 1,
				Conditions: model.Conditions{
					Text:      textCond("sysco", model.MatchContains),
					AmountMin: int64Ptr(100000),
				},
			},
			rec:  model.Record{Description: "SYSCO DALLAS", Amount: -4521},
			want: false,
		},
		{
			name: "rule with zero conditions never matches",
			rule: model.Rule{ID: 1},
			rec:  model.Record{Description: "anything", Amount: -100},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher([]model.Rule{tt.rule})
			assert.Equal(t, tt.want, m.Matches(tt.rule, tt.rec))
		})
	}
}
