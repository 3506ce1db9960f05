package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"
)

// unitOfWork buffers changes over the store's committed state.
// The store lock is held from Begin until Commit or Rollback.
type unitOfWork struct {
	store     *Store
	active    bool
	dirty     map[string]*entities.Account
	appended  []*entities.Transaction
	nextID    int64
	publisher *events.TransactionalBus
	ctx       context.Context
}

func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.active {
		return fmt.Errorf("transaction already started")
	}
	u.store.mu.Lock()
	u.active = true
	u.ctx = ctx
	u.dirty = make(map[string]*entities.Account)
	u.appended = nil
	u.nextID = u.store.nextID
	u.publisher = events.NewTransactionalBus(u.store.bus)
	return nil
}

func (u *unitOfWork) Commit() error {
	if !u.active {
		return fmt.Errorf("no transaction to commit")
	}
	if err := u.store.commit(u.dirty, u.appended, u.nextID); err != nil {
		return fmt.Errorf("failed to commit ledger snapshot: %w", err)
	}
	u.finish()
	u.publisher.Flush(u.ctx)
	return nil
}

func (u *unitOfWork) Rollback() error {
	if !u.active {
		return nil
	}
	u.finish()
	u.publisher.Discard()
	return nil
}

func (u *unitOfWork) finish() {
	u.active = false
	u.dirty = nil
	u.appended = nil
	u.store.mu.Unlock()
}

func (u *unitOfWork) AccountRepository() interfaces.AccountRepository {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
	return &accountRepository{uow: u}
}

func (u *unitOfWork) TransactionRepository() interfaces.TransactionRepository {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
	return &transactionRepository{uow: u}
}

func (u *unitOfWork) EventBus() interfaces.EventPublisher {
	if !u.active {
		panic("unit of work not started - call Begin() first")
	}
	return u.publisher
}

func (u *unitOfWork) lookup(username string) *entities.Account {
	if a, ok := u.dirty[username]; ok {
		return a
	}
	return u.store.accounts[username]
}

type accountRepository struct {
	uow *unitOfWork
}

// GetForUpdate returns a copy; the store lock already serializes writers
func (r *accountRepository) GetForUpdate(ctx context.Context, username string) (*entities.Account, error) {
	return r.uow.lookup(username).Clone(), nil
}

func (r *accountRepository) Get(ctx context.Context, username string) (*entities.Account, error) {
	return r.uow.lookup(username).Clone(), nil
}

func (r *accountRepository) Create(ctx context.Context, account *entities.Account) (bool, error) {
	if r.uow.lookup(account.Username) != nil {
		return false, nil
	}
	r.uow.dirty[account.Username] = account.Clone()
	return true, nil
}

func (r *accountRepository) Update(ctx context.Context, account *entities.Account) error {
	if r.uow.lookup(account.Username) == nil {
		return fmt.Errorf("account %s does not exist", account.Username)
	}
	r.uow.dirty[account.Username] = account.Clone()
	return nil
}

func (r *accountRepository) ResetAll(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	for username := range r.uow.store.accounts {
		if _, ok := r.uow.dirty[username]; !ok {
			r.uow.dirty[username] = r.uow.store.accounts[username].Clone()
		}
	}
	for _, a := range r.uow.dirty {
		a.Reset(now)
		count++
	}
	return count, nil
}

func (r *accountRepository) GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error) {
	merged := make(map[string]*entities.Account, len(r.uow.store.accounts)+len(r.uow.dirty))
	for k, v := range r.uow.store.accounts {
		merged[k] = v
	}
	for k, v := range r.uow.dirty {
		merged[k] = v
	}

	accounts := make([]*entities.Account, 0, len(merged))
	for _, a := range merged {
		accounts = append(accounts, a.Clone())
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].Balance != accounts[j].Balance {
			return accounts[i].Balance > accounts[j].Balance
		}
		return accounts[i].Username < accounts[j].Username
	})
	if limit > 0 && len(accounts) > limit {
		accounts = accounts[:limit]
	}
	return accounts, nil
}

type transactionRepository struct {
	uow *unitOfWork
}

func (r *transactionRepository) Append(ctx context.Context, txn *entities.Transaction) error {
	txn.ID = r.uow.nextID
	r.uow.nextID++
	if txn.Timestamp.IsZero() {
		txn.Timestamp = r.uow.store.clockNow()
	}
	stored := *txn
	r.uow.appended = append(r.uow.appended, &stored)
	return nil
}

func (r *transactionRepository) GetByUser(ctx context.Context, username string, limit int) ([]*entities.Transaction, error) {
	var out []*entities.Transaction
	for _, i := range r.uow.store.byUser[username] {
		c := *r.uow.store.transactions[i]
		out = append(out, &c)
	}
	for _, txn := range r.uow.appended {
		if txn.Username == username {
			c := *txn
			out = append(out, &c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
