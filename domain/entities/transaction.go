package entities

import "time"

// TransactionType represents the kind of ledger entry
type TransactionType string

const (
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeWithdraw TransactionType = "withdraw"
	TransactionTypeWin      TransactionType = "win"
	TransactionTypeLoss     TransactionType = "loss"
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeReset    TransactionType = "reset"
)

// IsValid reports whether the type is one the ledger records
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw, TransactionTypeWin,
		TransactionTypeLoss, TransactionTypePurchase, TransactionTypeReset:
		return true
	}
	return false
}

// IsCredit reports whether entries of this type add to the balance
func (t TransactionType) IsCredit() bool {
	return t == TransactionTypeDeposit || t == TransactionTypeWin
}

// Transaction is an immutable ledger entry
type Transaction struct {
	ID           int64           `json:"id"`
	Username     string          `json:"username"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter int64           `json:"balanceAfter"`
	Metadata     map[string]any  `json:"metadata,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}
