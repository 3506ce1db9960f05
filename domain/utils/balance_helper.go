package utils

import (
	"context"
	"fmt"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

// RecordTransaction appends a ledger entry and emits the matching balance change event.
// This is the single entry point for logging balance deltas.
func RecordTransaction(ctx context.Context, txnRepo interfaces.TransactionRepository, eventPublisher interfaces.EventPublisher, txn *entities.Transaction, oldBalance int64) error {
	if !txn.Type.IsValid() {
		return fmt.Errorf("unknown transaction type %q", txn.Type)
	}
	if err := txnRepo.Append(ctx, txn); err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}

	event := events.BalanceChangeEvent{
		Username:        txn.Username,
		TransactionID:   txn.ID,
		TransactionType: txn.Type,
		Amount:          txn.Amount,
		OldBalance:      oldBalance,
		NewBalance:      txn.BalanceAfter,
	}
	log.WithFields(log.Fields{
		"username":        event.Username,
		"transactionID":   event.TransactionID,
		"transactionType": event.TransactionType,
		"amount":          event.Amount,
		"oldBalance":      event.OldBalance,
		"newBalance":      event.NewBalance,
	}).Debug("Publishing BalanceChangeEvent")
	if err := eventPublisher.Publish(event); err != nil {
		log.WithError(err).Error("Failed to publish balance change event")
	}

	return nil
}
