package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"pointsbank/database"
	"pointsbank/domain/entities"
)

// TransactionRepository implements the TransactionRepository interface on PostgreSQL
type TransactionRepository struct {
	q Queryable
}

// NewTransactionRepository creates a repository on the pool
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

// NewTransactionRepositoryWithTx creates a repository bound to a transaction
func NewTransactionRepositoryWithTx(tx Queryable) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Append inserts the entry; the sequence assigns its ID
func (r *TransactionRepository) Append(ctx context.Context, txn *entities.Transaction) error {
	var metadataJSON []byte
	if txn.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal transaction metadata: %w", err)
		}
	}

	query := `
		INSERT INTO transactions (username, type, amount, description, balance_after, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))
		RETURNING id, created_at
	`
	var createdAt any
	if !txn.Timestamp.IsZero() {
		createdAt = txn.Timestamp
	}
	err := r.q.QueryRow(ctx, query,
		txn.Username,
		string(txn.Type),
		txn.Amount,
		txn.Description,
		txn.BalanceAfter,
		metadataJSON,
		createdAt,
	).Scan(&txn.ID, &txn.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to record transaction for %s: %w", txn.Username, err)
	}
	return nil
}

// GetByUser returns a user's entries newest first
func (r *TransactionRepository) GetByUser(ctx context.Context, username string, limit int) ([]*entities.Transaction, error) {
	query := `
		SELECT id, username, type, amount, description, balance_after, metadata, created_at
		FROM transactions
		WHERE username = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`
	rows, err := r.q.Query(ctx, query, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", username, err)
	}
	defer rows.Close()

	var txns []*entities.Transaction
	for rows.Next() {
		var txn entities.Transaction
		var txnType string
		var metadataJSON []byte
		if err := rows.Scan(
			&txn.ID,
			&txn.Username,
			&txnType,
			&txn.Amount,
			&txn.Description,
			&txn.BalanceAfter,
			&metadataJSON,
			&txn.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = entities.TransactionType(txnType)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &txn.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal transaction metadata: %w", err)
			}
		}
		txns = append(txns, &txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}
