package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/services"
	"pointsbank/domain/utils"
	"pointsbank/events"
	"pointsbank/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork_CommitPersistsAndFlushes(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	received := make(chan events.Event, 8)
	bus.Subscribe(events.EventTypeBalanceChange, func(ctx context.Context, e events.Event) {
		received <- e
	})

	executor := services.NewLedgerExecutor(NewUnitOfWorkFactory(testDB.DB, bus), utils.SystemClock{})
	ctx := context.Background()

	err := executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		_, err := ledger.Deposit(ctx, "alice", 1000, "Admin deposit")
		return err
	})
	require.NoError(t, err)

	select {
	case e := <-received:
		change := e.(events.BalanceChangeEvent)
		assert.Equal(t, "alice", change.Username)
		assert.Equal(t, int64(1000), change.NewBalance)
	case <-time.After(2 * time.Second):
		t.Fatal("balance change event not delivered")
	}

	txns, err := NewTransactionRepository(testDB.DB).GetByUser(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, entities.TransactionTypeDeposit, txns[0].Type)
	assert.Equal(t, int64(1000), txns[0].BalanceAfter)
}

func TestUnitOfWork_RollbackDiscards(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	bus := events.NewBus()
	var published int
	var mu sync.Mutex
	bus.SubscribeAll(func(ctx context.Context, e events.Event) {
		mu.Lock()
		published++
		mu.Unlock()
	})

	executor := services.NewLedgerExecutor(NewUnitOfWorkFactory(testDB.DB, bus), utils.SystemClock{})
	ctx := context.Background()
	boom := errors.New("boom")

	err := executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		if _, err := ledger.Deposit(ctx, "bob", 500, "Admin deposit"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	account, err := NewAccountRepository(testDB.DB).Get(ctx, "bob")
	require.NoError(t, err)
	assert.Nil(t, account)

	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Zero(t, published)
	mu.Unlock()
}

func TestUnitOfWork_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	executor := services.NewLedgerExecutor(NewUnitOfWorkFactory(testDB.DB, nil), utils.SystemClock{})
	ctx := context.Background()

	require.NoError(t, executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		_, err := ledger.Deposit(ctx, "carol", 1000, "seed")
		return err
	}))

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var ok bool
			err := executor.Execute(ctx, func(ledger interfaces.Ledger) error {
				var err error
				ok, err = ledger.Withdraw(ctx, "carol", 300, "withdraw")
				return err
			})
			if err == nil && ok {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	account, err := NewAccountRepository(testDB.DB).Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(100), account.Balance)
}

func TestUnitOfWork_ConcurrentFirstCreditsCreateOneAccount(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	executor := services.NewLedgerExecutor(NewUnitOfWorkFactory(testDB.DB, nil), utils.SystemClock{})
	ctx := context.Background()

	const credits = 8
	var wg sync.WaitGroup
	errs := make(chan error, credits)
	for i := 0; i < credits; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- executor.Execute(ctx, func(ledger interfaces.Ledger) error {
				_, err := ledger.Deposit(ctx, "newcomer", 100, "welcome")
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	account, err := NewAccountRepository(testDB.DB).Get(ctx, "newcomer")
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, int64(credits*100), account.Balance)

	txns, err := NewTransactionRepository(testDB.DB).GetByUser(ctx, "newcomer", 20)
	require.NoError(t, err)
	assert.Len(t, txns, credits)
}
