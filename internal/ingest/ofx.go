// Package ingest converts external bank files into normalized records the
// engine can categorize. The engine itself never learns which institution
// or file format a record came from.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/google/uuid"

	"github.com/backofhouse/tally/internal/model"
)

// OFXParser parses OFX/QFX bank files into normalized bank records.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// ParseFile parses an OFX/QFX file and returns normalized bank records,
// all in the uncategorized state.
func (p *OFXParser) ParseFile(_ context.Context, reader io.Reader) ([]model.Record, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(strings.TrimLeft(string(content), " \t\r\n")))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var records []model.Record
	var statements int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		accountID := string(stmt.BankAcctFrom.AcctID)
		for _, txn := range stmt.BankTranList.Transactions {
			records = append(records, convertTransaction(txn, accountID))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		statements++
		accountID := string(stmt.CCAcctFrom.AcctID)
		for _, txn := range stmt.BankTranList.Transactions {
			records = append(records, convertTransaction(txn, accountID))
		}
	}

	slog.Info("Parsed OFX file",
		"records", len(records),
		"statements", statements)

	return records, nil
}

// convertTransaction maps one OFX transaction to a normalized bank
// record. OFX amounts are decimal; they land as signed minor units, with
// the OFX sign convention kept (negative = debit).
func convertTransaction(txn ofxgo.Transaction, accountID string) model.Record {
	id := string(txn.FiTID)
	if id == "" {
		id = uuid.NewString()
	} else {
		// FiTID is only unique per institution; qualify it.
		id = accountID + ":" + id
	}

	description := strings.TrimSpace(string(txn.Name))
	if memo := strings.TrimSpace(string(txn.Memo)); description == "" && memo != "" {
		description = memo
	}

	return model.Record{
		ID:          id,
		Source:      model.SourceBank,
		Description: description,
		Amount:      ratToMinorUnits(&txn.TrnAmt.Rat),
		State:       model.StateUncategorized,
	}
}

// ratToMinorUnits converts an OFX decimal amount to integer minor units,
// rounding half away from zero.
func ratToMinorUnits(amount *big.Rat) int64 {
	cents := new(big.Rat).Mul(amount, big.NewRat(100, 1))
	num := new(big.Int).Set(cents.Num())
	denom := cents.Denom()

	quo, rem := new(big.Int).QuoRem(num, denom, new(big.Int))
	rem.Abs(rem)
	rem.Mul(rem, big.NewInt(2))
	if rem.Cmp(denom) >= 0 {
		if cents.Sign() < 0 {
			quo.Sub(quo, big.NewInt(1))
		} else {
			quo.Add(quo, big.NewInt(1))
		}
	}
	return quo.Int64()
}
