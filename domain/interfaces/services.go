package interfaces

import (
	"context"
	"time"

	"pointsbank/domain/entities"
)

// Ledger is the only component allowed to move money.
// Every call made through a LedgerExecutor commits together.
type Ledger interface {
	// GetBalance returns the account or nil when absent
	GetBalance(ctx context.Context, username string) (*entities.Account, error)

	// Deposit credits an amount, creating the account when needed
	Deposit(ctx context.Context, username string, amount int64, description string) (*entities.Transaction, error)

	// Withdraw debits an amount, returning false without side effects when the account cannot cover it
	Withdraw(ctx context.Context, username string, amount int64, description string) (bool, error)

	// AddWin credits winnings, creating the account when needed
	AddWin(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error)

	// AddLoss debits a loss floored at zero. No-op for an absent account.
	AddLoss(ctx context.Context, username string, amount int64, description string, isAllIn bool) (*entities.Transaction, error)

	// Purchase debits a marketplace cost, returning false when the account cannot cover it
	Purchase(ctx context.Context, username string, cost int64, description string) (bool, error)

	// ResetEconomy zeroes every account
	ResetEconomy(ctx context.Context) error

	// GetTransactions returns a user's entries newest first
	GetTransactions(ctx context.Context, username string, limit int) ([]*entities.Transaction, error)

	// GetLeaderboard returns the richest accounts first
	GetLeaderboard(ctx context.Context, limit int) ([]*entities.Account, error)
}

// LedgerExecutor runs fn against a Ledger inside one unit of work.
// The work commits when fn returns nil and rolls back otherwise.
type LedgerExecutor interface {
	Execute(ctx context.Context, fn func(ledger Ledger) error) error
}

// RandomSource draws uniform integers in [0, n)
type RandomSource interface {
	Intn(n int) int
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// GameService plays single-shot games
type GameService interface {
	Play(ctx context.Context, req entities.GameRequest) (*entities.GameResult, error)
	Games() []entities.GameKind
}

// BlackjackService manages per-user blackjack hands
type BlackjackService interface {
	Start(ctx context.Context, username string, bet int64) (*entities.BlackjackResult, error)
	Hit(ctx context.Context, username string) (*entities.BlackjackResult, error)
	Stand(ctx context.Context, username string) (*entities.BlackjackResult, error)
	Session(username string) *entities.BlackjackSession
	Sweep(ctx context.Context, now time.Time) ([]*entities.BlackjackResult, error)
}

// DuelService manages escrowed two-party wagers
type DuelService interface {
	Challenge(ctx context.Context, challenger, target string, stake int64, all bool) (*entities.DuelResult, error)
	ChallengeSponsored(ctx context.Context, challenger, target string, pot int64, sponsor *entities.Sponsorship) (*entities.DuelResult, error)
	Accept(ctx context.Context, target, challenger string) (*entities.DuelResult, error)
	Decline(ctx context.Context, target, challenger string) (*entities.DuelResult, error)
	Pending(username string) []*entities.PendingDuel
	Sweep(ctx context.Context, now time.Time) ([]*entities.DuelResult, error)
}

// MarketplaceService sells actions priced in points
type MarketplaceService interface {
	Buy(ctx context.Context, username, action string) (*entities.PurchaseResult, error)
	SponsorDuel(ctx context.Context, buyer, challenger, target string) (*entities.PurchaseResult, error)
}
