package ingest

import (
	"math/big"
	"testing"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"

	"github.com/backofhouse/tally/internal/model"
)

func TestRatToMinorUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount *big.Rat
		want   int64
	}{
		{"whole dollars", big.NewRat(452, 1), 45200},
		{"negative with cents", big.NewRat(-45210, 100), -45210},
		{"rounds half up", big.NewRat(1005, 1000), 101},
		{"rounds half away from zero when negative", big.NewRat(-1005, 1000), -101},
		{"sub-cent precision rounds", big.NewRat(12345678, 1000000), 1235},
		{"zero", big.NewRat(0, 1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ratToMinorUnits(tt.amount))
		})
	}
}

func TestConvertTransaction(t *testing.T) {
	txn := ofxgo.Transaction{
		FiTID:  "FIT-123",
		Name:   "SYSCO DALLAS  ",
		TrnAmt: ofxgo.Amount{Rat: *big.NewRat(-45210, 100)},
	}

	rec := convertTransaction(txn, "acct-9")
	assert.Equal(t, "acct-9:FIT-123", rec.ID)
	assert.Equal(t, model.SourceBank, rec.Source)
	assert.Equal(t, "SYSCO DALLAS", rec.Description)
	assert.Equal(t, int64(-45210), rec.Amount)
	assert.Equal(t, model.StateUncategorized, rec.State)
}

func TestConvertTransaction_FallsBackToMemoAndUUID(t *testing.T) {
	txn := ofxgo.Transaction{
		Memo:   "CHECK 1042",
		TrnAmt: ofxgo.Amount{Rat: *big.NewRat(-5000, 100)},
	}

	rec := convertTransaction(txn, "acct-9")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "CHECK 1042", rec.Description)
}
