package repository

import (
	"context"
	"errors"
	"fmt"

	"pointsbank/database"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

// unitOfWork implements the UnitOfWork interface over one pgx transaction
type unitOfWork struct {
	db        *database.DB
	tx        pgx.Tx
	ctx       context.Context
	bus       *events.Bus
	publisher *events.TransactionalBus
	accounts  *AccountRepository
	txns      *TransactionRepository
}

type unitOfWorkFactory struct {
	db  *database.DB
	bus *events.Bus
}

// NewUnitOfWorkFactory creates a factory whose units of work flush their events to bus after commit
func NewUnitOfWorkFactory(db *database.DB, bus *events.Bus) interfaces.UnitOfWorkFactory {
	return &unitOfWorkFactory{db: db, bus: bus}
}

// Create returns a unit of work that has not begun yet
func (f *unitOfWorkFactory) Create() interfaces.UnitOfWork {
	return &unitOfWork{db: f.db, bus: f.bus}
}

// Begin starts a new transaction
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("transaction already started")
	}

	tx, err := u.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	u.tx = tx
	u.ctx = ctx
	u.publisher = events.NewTransactionalBus(u.bus)
	u.accounts = NewAccountRepositoryWithTx(tx)
	u.txns = NewTransactionRepositoryWithTx(tx)
	return nil
}

// Commit commits the transaction and then releases its buffered events
func (u *unitOfWork) Commit() error {
	if u.tx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if err := u.tx.Commit(u.ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil

	if err := u.publisher.Flush(u.ctx); err != nil {
		log.WithError(err).Warn("Failed to flush events after commit")
	}
	return nil
}

// Rollback rolls back the transaction and drops its buffered events
func (u *unitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback(u.ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	u.tx = nil
	u.publisher.Discard()
	return nil
}

// AccountRepository returns the account repository for this unit of work
func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if u.accounts == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.accounts
}

// TransactionRepository returns the transaction repository for this unit of work
func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	if u.txns == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.txns
}

// EventBus returns the transactional publisher for this unit of work
func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if u.publisher == nil {
		panic("unit of work not started - call Begin() first")
	}
	return u.publisher
}
