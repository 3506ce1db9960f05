package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pointsbank/database"
	"pointsbank/domain/entities"

	"github.com/jackc/pgx/v5"
)

const accountColumns = `username, balance, total_deposited, total_won, total_lost, all_in_wins, all_in_losses, last_updated`

// AccountRepository implements the AccountRepository interface on PostgreSQL
type AccountRepository struct {
	q Queryable
}

// NewAccountRepository creates a repository on the pool, for reads outside a unit of work
func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{q: db.Pool}
}

// NewAccountRepositoryWithTx creates a repository bound to a transaction
func NewAccountRepositoryWithTx(tx Queryable) *AccountRepository {
	return &AccountRepository{q: tx}
}

func scanAccount(row pgx.Row) (*entities.Account, error) {
	var a entities.Account
	err := row.Scan(
		&a.Username,
		&a.Balance,
		&a.TotalDeposited,
		&a.TotalWon,
		&a.TotalLost,
		&a.AllInWins,
		&a.AllInLosses,
		&a.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetForUpdate retrieves an account and locks its row until the transaction ends
func (r *AccountRepository) GetForUpdate(ctx context.Context, username string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1 FOR UPDATE`
	return r.getOne(ctx, query, username)
}

// Get retrieves an account without locking it
func (r *AccountRepository) Get(ctx context.Context, username string) (*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = $1`
	return r.getOne(ctx, query, username)
}

func (r *AccountRepository) getOne(ctx context.Context, query, username string) (*entities.Account, error) {
	account, err := scanAccount(r.q.QueryRow(ctx, query, username))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return account, nil
}

// Create inserts an account. An existing row is left untouched and reported as false;
// a concurrent insert of the same username blocks until the other transaction ends.
func (r *AccountRepository) Create(ctx context.Context, account *entities.Account) (bool, error) {
	query := `
		INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (username) DO NOTHING
	`
	result, err := r.q.Exec(ctx, query,
		account.Username,
		account.Balance,
		account.TotalDeposited,
		account.TotalWon,
		account.TotalLost,
		account.AllInWins,
		account.AllInLosses,
		account.LastUpdated,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create account %s: %w", account.Username, err)
	}
	return result.RowsAffected() == 1, nil
}

// Update persists every field of an existing account
func (r *AccountRepository) Update(ctx context.Context, account *entities.Account) error {
	query := `
		UPDATE accounts
		SET balance = $2,
		    total_deposited = $3,
		    total_won = $4,
		    total_lost = $5,
		    all_in_wins = $6,
		    all_in_losses = $7,
		    last_updated = $8
		WHERE username = $1
	`
	result, err := r.q.Exec(ctx, query,
		account.Username,
		account.Balance,
		account.TotalDeposited,
		account.TotalWon,
		account.TotalLost,
		account.AllInWins,
		account.AllInLosses,
		account.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.Username, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("account %s not found", account.Username)
	}
	return nil
}

// ResetAll zeroes balances and game counters of every account
func (r *AccountRepository) ResetAll(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = 0,
		    total_won = 0,
		    total_lost = 0,
		    all_in_wins = 0,
		    all_in_losses = 0,
		    last_updated = $1
	`
	result, err := r.q.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reset accounts: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetLeaderboard returns accounts by balance descending, ties broken by username
func (r *AccountRepository) GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY balance DESC, username ASC LIMIT $1`
	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	var accounts []*entities.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}
