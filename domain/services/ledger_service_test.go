package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/testhelpers"
	"pointsbank/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type ledgerMocks struct {
	accounts  *testhelpers.MockAccountRepository
	txns      *testhelpers.MockTransactionRepository
	publisher *testhelpers.MockEventPublisher
	clock     *testhelpers.FakeClock
}

func newLedgerMocks() *ledgerMocks {
	return &ledgerMocks{
		accounts:  new(testhelpers.MockAccountRepository),
		txns:      new(testhelpers.MockTransactionRepository),
		publisher: new(testhelpers.MockEventPublisher),
		clock:     testhelpers.NewFakeClock(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
	}
}

func (m *ledgerMocks) assertExpectations(t *testing.T) {
	m.accounts.AssertExpectations(t)
	m.txns.AssertExpectations(t)
	m.publisher.AssertExpectations(t)
}

func TestLedgerService_Deposit_CreatesAccount(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	m.accounts.On("GetForUpdate", ctx, "alice").Return(nil, nil).Once()
	m.accounts.On("Create", ctx, mock.MatchedBy(func(a *entities.Account) bool {
		return a.Username == "alice" && a.Balance == 0
	})).Return(true, nil)
	m.accounts.On("GetForUpdate", ctx, "alice").Return(entities.NewAccount("alice", m.clock.Now()), nil).Once()
	m.accounts.On("Update", ctx, mock.MatchedBy(func(a *entities.Account) bool {
		return a.Username == "alice" && a.Balance == 1000 && a.TotalDeposited == 1000
	})).Return(nil)
	m.txns.On("Append", ctx, mock.MatchedBy(func(txn *entities.Transaction) bool {
		return txn.Type == entities.TransactionTypeDeposit &&
			txn.Amount == 1000 &&
			txn.BalanceAfter == 1000 &&
			txn.Timestamp.Equal(m.clock.Now())
	})).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*entities.Transaction).ID = 7
	})
	m.publisher.On("Publish", mock.AnythingOfType("events.AccountCreatedEvent")).Return(nil)
	m.publisher.On("Publish", mock.MatchedBy(func(e events.Event) bool {
		change, ok := e.(events.BalanceChangeEvent)
		return ok && change.TransactionID == 7 && change.OldBalance == 0 && change.NewBalance == 1000
	})).Return(nil)

	txn, err := ledger.Deposit(ctx, "@Alice ", 1000, "Admin deposit")
	require.NoError(t, err)
	assert.Equal(t, int64(7), txn.ID)
	assert.Equal(t, "alice", txn.Username)

	m.assertExpectations(t)
}

func TestLedgerService_Deposit_RejectsNonPositive(t *testing.T) {
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	for _, amount := range []int64{0, -5} {
		_, err := ledger.Deposit(context.Background(), "alice", amount, "bad")
		assert.ErrorIs(t, err, entities.ErrInvalidAmount)
	}
	m.accounts.AssertNotCalled(t, "GetForUpdate", mock.Anything, mock.Anything)
}

func TestLedgerService_Withdraw(t *testing.T) {
	ctx := context.Background()

	t.Run("insufficient funds leaves no trace", func(t *testing.T) {
		m := newLedgerMocks()
		ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
		m.accounts.On("GetForUpdate", ctx, "alice").Return(&entities.Account{Username: "alice", Balance: 100}, nil)

		ok, err := ledger.Withdraw(ctx, "alice", 500, "cash out")
		require.NoError(t, err)
		assert.False(t, ok)

		m.accounts.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
		m.txns.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})

	t.Run("unknown account", func(t *testing.T) {
		m := newLedgerMocks()
		ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
		m.accounts.On("GetForUpdate", ctx, "ghost").Return(nil, nil)

		ok, err := ledger.Withdraw(ctx, "ghost", 1, "cash out")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("success", func(t *testing.T) {
		m := newLedgerMocks()
		ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
		m.accounts.On("GetForUpdate", ctx, "alice").Return(&entities.Account{Username: "alice", Balance: 500}, nil)
		m.accounts.On("Update", ctx, mock.MatchedBy(func(a *entities.Account) bool { return a.Balance == 0 })).Return(nil)
		m.txns.On("Append", ctx, mock.MatchedBy(func(txn *entities.Transaction) bool {
			return txn.Type == entities.TransactionTypeWithdraw && txn.Amount == 500 && txn.BalanceAfter == 0
		})).Return(nil)
		m.publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)

		ok, err := ledger.Withdraw(ctx, "alice", 500, "cash out")
		require.NoError(t, err)
		assert.True(t, ok)
		m.assertExpectations(t)
	})
}

func TestLedgerService_Purchase_RecordsPurchaseType(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	m.accounts.On("GetForUpdate", ctx, "alice").Return(&entities.Account{Username: "alice", Balance: 800}, nil)
	m.accounts.On("Update", ctx, mock.Anything).Return(nil)
	m.txns.On("Append", ctx, mock.MatchedBy(func(txn *entities.Transaction) bool {
		return txn.Type == entities.TransactionTypePurchase && txn.Amount == 300 && txn.BalanceAfter == 500
	})).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)

	ok, err := ledger.Purchase(ctx, "alice", 300, "Purchased shoutout")
	require.NoError(t, err)
	assert.True(t, ok)
	m.assertExpectations(t)
}

func TestLedgerService_AddWin_AllIn(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	account := &entities.Account{Username: "alice", Balance: 0}
	m.accounts.On("GetForUpdate", ctx, "alice").Return(account, nil)
	m.accounts.On("Update", ctx, account).Return(nil)
	m.txns.On("Append", ctx, mock.MatchedBy(func(txn *entities.Transaction) bool {
		return txn.Type == entities.TransactionTypeWin && txn.Metadata["allIn"] == true
	})).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)

	_, err := ledger.AddWin(ctx, "alice", 250, "Coinflip win", true)
	require.NoError(t, err)
	assert.Equal(t, int64(250), account.Balance)
	assert.Equal(t, int64(250), account.TotalWon)
	assert.Equal(t, int64(1), account.AllInWins)
	m.assertExpectations(t)
}

func TestLedgerService_AddLoss(t *testing.T) {
	ctx := context.Background()

	t.Run("floors at zero", func(t *testing.T) {
		m := newLedgerMocks()
		ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
		account := &entities.Account{Username: "alice", Balance: 40}
		m.accounts.On("GetForUpdate", ctx, "alice").Return(account, nil)
		m.accounts.On("Update", ctx, account).Return(nil)
		m.txns.On("Append", ctx, mock.Anything).Return(nil)
		m.publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)

		txn, err := ledger.AddLoss(ctx, "alice", 100, "Dice loss", true)
		require.NoError(t, err)
		assert.Equal(t, int64(0), account.Balance)
		assert.Equal(t, int64(100), account.TotalLost)
		assert.Equal(t, int64(1), account.AllInLosses)
		assert.Equal(t, int64(0), txn.BalanceAfter)
	})

	t.Run("absent account is a no-op", func(t *testing.T) {
		m := newLedgerMocks()
		ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
		m.accounts.On("GetForUpdate", ctx, "ghost").Return(nil, nil)

		txn, err := ledger.AddLoss(ctx, "ghost", 100, "Dice loss", false)
		require.NoError(t, err)
		assert.Nil(t, txn)
		m.txns.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
	})
}

func TestLedgerService_ResetEconomy(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	m.accounts.On("ResetAll", ctx, m.clock.Now()).Return(int64(3), nil)
	m.txns.On("Append", ctx, mock.MatchedBy(func(txn *entities.Transaction) bool {
		return txn.Username == entities.SystemUsername &&
			txn.Type == entities.TransactionTypeReset &&
			txn.Metadata["accountsReset"] == int64(3)
	})).Return(nil)
	m.publisher.On("Publish", mock.AnythingOfType("events.BalanceChangeEvent")).Return(nil)
	m.publisher.On("Publish", events.EconomyResetEvent{AccountsReset: 3}).Return(nil)

	require.NoError(t, ledger.ResetEconomy(ctx))
	m.assertExpectations(t)
}

func TestLedgerService_RepositoryErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)
	dbErr := errors.New("connection reset")

	m.accounts.On("GetForUpdate", ctx, "alice").Return(nil, dbErr)

	_, err := ledger.Deposit(ctx, "alice", 10, "x")
	assert.ErrorIs(t, err, dbErr)
}

func TestLedgerService_GetTransactions_DefaultLimit(t *testing.T) {
	ctx := context.Background()
	m := newLedgerMocks()
	ledger := NewLedgerService(m.accounts, m.txns, m.publisher, m.clock)

	m.txns.On("GetByUser", ctx, "alice", 10).Return([]*entities.Transaction{}, nil)

	_, err := ledger.GetTransactions(ctx, "Alice", 0)
	require.NoError(t, err)

	_, err = ledger.GetTransactions(ctx, "  ", 5)
	assert.Error(t, err)
	m.txns.AssertExpectations(t)
}
