package services

import (
	"context"
	"fmt"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/utils"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 10

type ledgerService struct {
	accountRepo    interfaces.AccountRepository
	txnRepo        interfaces.TransactionRepository
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
}

// NewLedgerService creates a ledger bound to one unit of work's repositories
func NewLedgerService(
	accountRepo interfaces.AccountRepository,
	txnRepo interfaces.TransactionRepository,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
) interfaces.Ledger {
	return &ledgerService{
		accountRepo:    accountRepo,
		txnRepo:        txnRepo,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// GetBalance returns the account, locking it for the rest of the unit of work
func (s *ledgerService) GetBalance(ctx context.Context, username string) (*entities.Account, error) {
	username, err := requireUsername(username)
	if err != nil {
		return nil, err
	}
	account, err := s.accountRepo.GetForUpdate(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return account, nil
}

// Deposit credits an amount, creating the account when needed
func (s *ledgerService) Deposit(ctx context.Context, username string, amount int64, description string) (*entities.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deposit of %d: %w", amount, entities.ErrInvalidAmount)
	}
	account, isNew, err := s.getOrNew(ctx, username)
	if err != nil {
		return nil, err
	}

	oldBalance := account.Balance
	account.Balance += amount
	account.TotalDeposited += amount
	return s.apply(ctx, account, isNew, oldBalance, entities.TransactionTypeDeposit, amount, description, nil)
}

// Withdraw debits an amount if the account can cover it
func (s *ledgerService) Withdraw(ctx context.Context, username string, amount int64, description string) (bool, error) {
	return s.debit(ctx, username, amount, description, entities.TransactionTypeWithdraw)
}

// Purchase debits a marketplace cost if the account can cover it
func (s *ledgerService) Purchase(ctx context.Context, username string, cost int64, description string) (bool, error) {
	return s.debit(ctx, username, cost, description, entities.TransactionTypePurchase)
}

func (s *ledgerService) debit(ctx context.Context, username string, amount int64, description string, txnType entities.TransactionType) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("%s of %d: %w", txnType, amount, entities.ErrInvalidAmount)
	}
	account, err := s.GetBalance(ctx, username)
	if err != nil {
		return false, err
	}
	if !account.CanAfford(amount) {
		log.WithFields(log.Fields{
			"username": username,
			"amount":   amount,
			"type":     txnType,
		}).Debug("Debit rejected for insufficient funds")
		return false, nil
	}

	oldBalance := account.Balance
	account.Balance -= amount
	if _, err := s.apply(ctx, account, false, oldBalance, txnType, amount, description, nil); err != nil {
		return false, err
	}
	return true, nil
}

// AddWin credits winnings and counts all-in wins
func (s *ledgerService) AddWin(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("win of %d: %w", amount, entities.ErrInvalidAmount)
	}
	account, isNew, err := s.getOrNew(ctx, username)
	if err != nil {
		return nil, err
	}

	oldBalance := account.Balance
	account.Balance += amount
	account.TotalWon += amount
	if isAllIn {
		account.AllInWins++
	}
	return s.apply(ctx, account, isNew, oldBalance, entities.TransactionTypeWin, amount, description, allInMetadata(isAllIn))
}

// AddLoss debits a loss floored at zero and counts all-in losses
func (s *ledgerService) AddLoss(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error) {
	if amount < 0 {
		return nil, fmt.Errorf("loss of %d: %w", amount, entities.ErrInvalidAmount)
	}
	account, err := s.GetBalance(ctx, username)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, nil
	}

	oldBalance := account.Balance
	account.Balance = max(0, account.Balance-amount)
	account.TotalLost += amount
	if isAllIn {
		account.AllInLosses++
	}
	return s.apply(ctx, account, false, oldBalance, entities.TransactionTypeLoss, amount, description, allInMetadata(isAllIn))
}

// ResetEconomy zeroes every account and records a single reset entry
func (s *ledgerService) ResetEconomy(ctx context.Context) error {
	affected, err := s.accountRepo.ResetAll(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to reset accounts: %w", err)
	}

	txn := &entities.Transaction{
		Username:    entities.SystemUsername,
		Type:        entities.TransactionTypeReset,
		Description: "Economy reset",
		Metadata:    map[string]any{"accountsReset": affected},
		Timestamp:   s.clock.Now(),
	}
	if err := utils.RecordTransaction(ctx, s.txnRepo, s.eventPublisher, txn, 0); err != nil {
		return err
	}
	if err := s.eventPublisher.Publish(events.EconomyResetEvent{AccountsReset: affected}); err != nil {
		log.WithError(err).Error("Failed to publish economy reset event")
	}

	log.WithField("accountsReset", affected).Info("Economy reset")
	return nil
}

// GetTransactions returns a user's entries newest first
func (s *ledgerService) GetTransactions(ctx context.Context, username string, limit int) ([]*entities.Transaction, error) {
	username, err := requireUsername(username)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	txns, err := s.txnRepo.GetByUser(ctx, username, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s: %w", username, err)
	}
	return txns, nil
}

// GetLeaderboard returns the richest accounts first
func (s *ledgerService) GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	accounts, err := s.accountRepo.GetLeaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	return accounts, nil
}

func (s *ledgerService) getOrNew(ctx context.Context, username string) (*entities.Account, bool, error) {
	account, err := s.GetBalance(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if account != nil {
		return account, false, nil
	}

	// Another unit of work may be creating the same account; whichever row wins
	// is re-read under lock and credited.
	created, err := s.accountRepo.Create(ctx, entities.NewAccount(username, s.clock.Now()))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create account %s: %w", username, err)
	}
	account, err = s.GetBalance(ctx, username)
	if err != nil {
		return nil, false, err
	}
	if account == nil {
		return nil, false, fmt.Errorf("account %s missing after create", username)
	}
	return account, created, nil
}

// apply persists the mutated account and logs exactly one transaction for the delta
func (s *ledgerService) apply(
	ctx context.Context,
	account *entities.Account,
	isNew bool,
	oldBalance int64,
	txnType entities.TransactionType,
	amount int64,
	description string,
	metadata map[string]any,
) (*entities.Transaction, error) {
	now := s.clock.Now()
	account.LastUpdated = now

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to update account %s: %w", account.Username, err)
	}
	if isNew {
		if err := s.eventPublisher.Publish(events.AccountCreatedEvent{
			Username:       account.Username,
			InitialBalance: account.Balance,
		}); err != nil {
			log.WithError(err).Error("Failed to publish account created event")
		}
	}

	txn := &entities.Transaction{
		Username:     account.Username,
		Type:         txnType,
		Amount:       amount,
		Description:  description,
		BalanceAfter: account.Balance,
		Metadata:     metadata,
		Timestamp:    now,
	}
	if err := utils.RecordTransaction(ctx, s.txnRepo, s.eventPublisher, txn, oldBalance); err != nil {
		return nil, err
	}
	return txn, nil
}

func allInMetadata(isAllIn bool) map[string]any {
	if !isAllIn {
		return nil
	}
	return map[string]any{"allIn": true}
}

func requireUsername(username string) (string, error) {
	normalized := entities.NormalizeUsername(username)
	if normalized == "" {
		return "", fmt.Errorf("username is required")
	}
	return normalized, nil
}
