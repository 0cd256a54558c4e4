package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Package model defines the records exchanged between the ledger engine and its I/O adapters.

// Amounts use "github.com/shopspring/decimal" rather than float64 so that every deposit,
// withdrawal and dispute is applied exactly and the snapshot never drifts from the input.

// TransactionType identifies the kind of a transaction record.
type TransactionType string

const (
	Deposit    TransactionType = "deposit"
	Withdrawal TransactionType = "withdrawal"
	Dispute    TransactionType = "dispute"
	Resolve    TransactionType = "resolve"
	Chargeback TransactionType = "chargeback"
)

// ParseTransactionType maps a case-insensitive name to a TransactionType.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(strings.ToLower(strings.TrimSpace(s))); t {
	case Deposit, Withdrawal, Dispute, Resolve, Chargeback:
		return t, nil
	default:
		return "", fmt.Errorf("unknown transaction type %q", s)
	}
}

// CarriesAmount reports whether records of this type must supply an amount.
func (t TransactionType) CarriesAmount() bool {
	return t == Deposit || t == Withdrawal
}

// Transaction is a single parsed input record.
// Amount is only valid for deposits and withdrawals.
type Transaction struct {
	Type     TransactionType     `json:"type"`
	ClientID uint16              `json:"client"`
	TxID     uint32              `json:"tx"`
	Amount   decimal.NullDecimal `json:"amount"`
}

// AccountView is the externally visible state of one client account.
type AccountView struct {
	ClientID  uint16          `json:"client"`
	Available decimal.Decimal `json:"available"`
	Held      decimal.Decimal `json:"held"`
	Total     decimal.Decimal `json:"total"`
	Locked    bool            `json:"locked"`
}

// FormatAmount renders d with at least places fraction digits.
// Digits beyond places are kept, never rounded away.
func FormatAmount(d decimal.Decimal, places int32) string {
	if exp := -d.Exponent(); exp > places {
		// Trailing zeros do not count as precision.
		s := d.String()
		if i := strings.IndexByte(s, '.'); i >= 0 && int32(len(s)-i-1) > places {
			places = int32(len(s) - i - 1)
		}
	}
	return d.StringFixed(places)
}
