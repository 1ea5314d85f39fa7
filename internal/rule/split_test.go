package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backofhouse/tally/internal/model"
)

func pctSpec(categoryID int64, pct string) model.SplitSpec {
	return model.SplitSpec{CategoryID: categoryID, Percentage: &pct}
}

func fixedSpec(categoryID, amount int64) model.SplitSpec {
	return model.SplitSpec{CategoryID: categoryID, FixedAmount: &amount}
}

func TestConvertSplits(t *testing.T) {
	tests := []struct {
		name    string
		specs   []model.SplitSpec
		total   int64
		want    []int64
		wantErr error
	}{
		{
			name:  "even percentages",
			specs: []model.SplitSpec{pctSpec(1, "70"), pctSpec(2, "30")},
			total: 800,
			want:  []int64{560, 240},
		},
		{
			name:  "uneven percentages reconcile via last spec",
			specs: []model.SplitSpec{pctSpec(1, "33.33"), pctSpec(2, "33.33"), pctSpec(3, "33.34")},
			total: 100,
			want:  []int64{33, 33, 34},
		},
		{
			name:  "rounding remainder absorbed by last spec",
			specs: []model.SplitSpec{pctSpec(1, "50"), pctSpec(2, "50")},
			total: 101,
			want:  []int64{51, 50},
		},
		{
			name:  "fixed plus percentage",
			specs: []model.SplitSpec{fixedSpec(1, 250), pctSpec(2, "100")},
			total: 1000,
			want:  []int64{250, 750},
		},
		{
			name:    "fixed amount exceeding total fails",
			specs:   []model.SplitSpec{fixedSpec(1, 1200), pctSpec(2, "10")},
			total:   1000,
			wantErr: ErrSplitExceedsTotal,
		},
		{
			name:    "negative remainder fails",
			specs:   []model.SplitSpec{fixedSpec(1, 600), fixedSpec(2, 600), pctSpec(3, "10")},
			total:   1000,
			wantErr: ErrSplitNegativeRemainder,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertSplits(tt.specs, tt.total)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			var sum int64
			for _, amount := range got {
				sum += amount
			}
			assert.Equal(t, tt.total, sum, "allocations must sum to the total exactly")
		})
	}
}

func TestConvertSplits_SumIsExactForAwkwardTotals(t *testing.T) {
	specs := []model.SplitSpec{pctSpec(1, "33.33"), pctSpec(2, "33.33"), pctSpec(3, "33.34")}
	for _, total := range []int64{1, 7, 99, 101, 12345, 999999937} {
		got, err := ConvertSplits(specs, total)
		require.NoError(t, err)
		var sum int64
		for _, amount := range got {
			sum += amount
		}
		assert.Equal(t, total, sum, "total %d", total)
	}
}
