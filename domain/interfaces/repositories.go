package interfaces

import (
	"context"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/events"
)

// AccountRepository defines the interface for account data access
type AccountRepository interface {
	// GetForUpdate retrieves an account and holds its lock until the unit of work ends.
	// Returns nil, nil when the account does not exist.
	GetForUpdate(ctx context.Context, username string) (*entities.Account, error)

	// Get retrieves an account without locking it
	Get(ctx context.Context, username string) (*entities.Account, error)

	// Create inserts the account unless one with the same username exists,
	// reporting whether it was inserted
	Create(ctx context.Context, account *entities.Account) (bool, error)

	// Update persists every field of an existing account
	Update(ctx context.Context, account *entities.Account) error

	// ResetAll zeroes balances and counters of every account, returning how many were touched
	ResetAll(ctx context.Context, now time.Time) (int64, error)

	// GetLeaderboard returns accounts ordered by balance descending
	GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error)
}

// TransactionRepository defines the interface for the append-only ledger log
type TransactionRepository interface {
	// Append stores the entry and assigns its ID and timestamp
	Append(ctx context.Context, txn *entities.Transaction) error

	// GetByUser returns a user's entries newest first
	GetByUser(ctx context.Context, username string, limit int) ([]*entities.Transaction, error)
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(event events.Event) error
}

// TransactionalEventPublisher buffers events until the owning unit of work commits
type TransactionalEventPublisher interface {
	EventPublisher
	Flush(ctx context.Context) error
	Discard()
}

// UnitOfWork scopes repositories to one atomic commit
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	AccountRepository() AccountRepository
	TransactionRepository() TransactionRepository
	EventBus() EventPublisher
}

// UnitOfWorkFactory creates units of work against a ledger store
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// KeyedStore is an in-memory map whose entries are guarded by per-key locks.
// Callers hold Lock(key) across a read-modify-write of that key.
type KeyedStore[K comparable, V any] interface {
	Lock(key K) (unlock func())
	Get(key K) (V, bool)
	Put(key K, value V)
	Delete(key K) (V, bool)
	Values() []V
	Len() int
}
