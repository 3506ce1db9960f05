package testutil

import (
	"time"

	"pointsbank/domain/entities"
)

// CreateTestAccount creates an account with a starting balance
func CreateTestAccount(username string, balance int64) *entities.Account {
	account := entities.NewAccount(username, time.Now().UTC().Truncate(time.Microsecond))
	account.Balance = balance
	account.TotalDeposited = balance
	return account
}

// CreateTestTransaction creates a ledger entry without an ID
func CreateTestTransaction(username string, txnType entities.TransactionType, amount, balanceAfter int64) *entities.Transaction {
	return &entities.Transaction{
		Username:     username,
		Type:         txnType,
		Amount:       amount,
		Description:  "test " + string(txnType),
		BalanceAfter: balanceAfter,
		Metadata:     map[string]any{"test": true},
	}
}
