package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"payments-engine/model"
)

func amount(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func deposit(client uint16, tx uint32, amt string) model.Transaction {
	return model.Transaction{Type: model.Deposit, ClientID: client, TxID: tx, Amount: amount(amt)}
}

func withdrawal(client uint16, tx uint32, amt string) model.Transaction {
	return model.Transaction{Type: model.Withdrawal, ClientID: client, TxID: tx, Amount: amount(amt)}
}

func dispute(client uint16, tx uint32) model.Transaction {
	return model.Transaction{Type: model.Dispute, ClientID: client, TxID: tx}
}

func resolve(client uint16, tx uint32) model.Transaction {
	return model.Transaction{Type: model.Resolve, ClientID: client, TxID: tx}
}

func chargeback(client uint16, tx uint32) model.Transaction {
	return model.Transaction{Type: model.Chargeback, ClientID: client, TxID: tx}
}

// assertBalances compares decimals by value so 2 and 2.0000 are equal.
func assertBalances(t *testing.T, view model.AccountView, available, held, total string, locked bool) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(available).Equal(view.Available), "available: want %s, got %s", available, view.Available)
	assert.True(t, decimal.RequireFromString(held).Equal(view.Held), "held: want %s, got %s", held, view.Held)
	assert.True(t, decimal.RequireFromString(total).Equal(view.Total), "total: want %s, got %s", total, view.Total)
	assert.Equal(t, locked, view.Locked, "locked")
}

func findView(views []model.AccountView, client uint16) (model.AccountView, bool) {
	for _, v := range views {
		if v.ClientID == client {
			return v, true
		}
	}
	return model.AccountView{}, false
}
