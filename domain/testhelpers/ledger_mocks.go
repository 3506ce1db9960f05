package testhelpers

import (
	"context"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"

	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetBalance(ctx context.Context, username string) (*entities.Account, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Account), args.Error(1)
}

func (m *MockLedger) Deposit(ctx context.Context, username string, amount int64, description string) (*entities.Transaction, error) {
	args := m.Called(ctx, username, amount, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedger) Withdraw(ctx context.Context, username string, amount int64, description string) (bool, error) {
	args := m.Called(ctx, username, amount, description)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) AddWin(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error) {
	args := m.Called(ctx, username, amount, description, isAllIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedger) AddLoss(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error) {
	args := m.Called(ctx, username, amount, description, isAllIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Transaction), args.Error(1)
}

func (m *MockLedger) Purchase(ctx context.Context, username string, cost int64, description string) (bool, error) {
	args := m.Called(ctx, username, cost, description)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedger) ResetEconomy(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLedger) GetTransactions(ctx context.Context, username string, limit int) ([]*entities.Transaction, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Transaction), args.Error(1)
}

func (m *MockLedger) GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Account), args.Error(1)
}

// InlineExecutor runs every Execute call directly against one ledger.
// Calls counts how many units of work were opened.
type InlineExecutor struct {
	Ledger interfaces.Ledger
	Err    error
	Calls  int
}

func (e *InlineExecutor) Execute(ctx context.Context, fn func(ledger interfaces.Ledger) error) error {
	e.Calls++
	if e.Err != nil {
		return e.Err
	}
	return fn(e.Ledger)
}
