package services

import (
	"context"
	"fmt"

	"pointsbank/domain/interfaces"
)

type ledgerExecutor struct {
	uowFactory interfaces.UnitOfWorkFactory
	clock      interfaces.Clock
}

// NewLedgerExecutor creates an executor that commits each Execute call as one unit of work
func NewLedgerExecutor(uowFactory interfaces.UnitOfWorkFactory, clock interfaces.Clock) interfaces.LedgerExecutor {
	return &ledgerExecutor{
		uowFactory: uowFactory,
		clock:      clock,
	}
}

// Execute runs fn against a ledger and commits when it returns nil
func (e *ledgerExecutor) Execute(ctx context.Context, fn func(ledger interfaces.Ledger) error) error {
	uow := e.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer uow.Rollback()

	ledger := NewLedgerService(
		uow.AccountRepository(),
		uow.TransactionRepository(),
		uow.EventBus(),
		e.clock,
	)

	if err := fn(ledger); err != nil {
		return err
	}

	if err := uow.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
