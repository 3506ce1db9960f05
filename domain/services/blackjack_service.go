package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

const dealerStandsOn = 17

var naturalMultiplier = decimal.RequireFromString("2.5")

// BlackjackConfig controls session expiry
type BlackjackConfig struct {
	IdleTimeout  time.Duration
	ExpiryPolicy entities.BlackjackExpiryPolicy
}

// DefaultBlackjackConfig expires sessions after two idle minutes and forfeits their bet
func DefaultBlackjackConfig() BlackjackConfig {
	return BlackjackConfig{
		IdleTimeout:  2 * time.Minute,
		ExpiryPolicy: entities.BlackjackExpiryForfeit,
	}
}

type blackjackService struct {
	executor       interfaces.LedgerExecutor
	rng            interfaces.RandomSource
	prices         entities.PriceTable
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
	sessions       interfaces.KeyedStore[string, *entities.BlackjackSession]
	cfg            BlackjackConfig
}

// NewBlackjackService creates the blackjack session manager
func NewBlackjackService(
	executor interfaces.LedgerExecutor,
	rng interfaces.RandomSource,
	prices entities.PriceTable,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	sessions interfaces.KeyedStore[string, *entities.BlackjackSession],
	cfg BlackjackConfig,
) interfaces.BlackjackService {
	return &blackjackService{
		executor:       executor,
		rng:            rng,
		prices:         prices,
		eventPublisher: eventPublisher,
		clock:          clock,
		sessions:       sessions,
		cfg:            cfg,
	}
}

func (s *blackjackService) drawCard() int {
	return s.rng.Intn(13) + 1
}

// Session returns a copy of the user's open hand, or nil
func (s *blackjackService) Session(username string) *entities.BlackjackSession {
	username = entities.NormalizeUsername(username)
	unlock := s.sessions.Lock(username)
	defer unlock()

	session, ok := s.sessions.Get(username)
	if !ok {
		return nil
	}
	return session.Clone()
}

// Start deals a new hand. Naturals settle immediately; anything else debits the bet and opens a session.
func (s *blackjackService) Start(ctx context.Context, username string, bet int64) (*entities.BlackjackResult, error) {
	username = entities.NormalizeUsername(username)
	unlock := s.sessions.Lock(username)
	defer unlock()

	if _, ok := s.sessions.Get(username); ok {
		return entities.NewBlackjackFailure(username, entities.FailureSessionAlreadyActive), nil
	}
	if bet < minBetFor(s.prices, entities.GameBlackjack) {
		return entities.NewBlackjackFailure(username, entities.FailureBelowMinimumBet), nil
	}

	var result *entities.BlackjackResult
	var session *entities.BlackjackSession
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		if !account.CanAfford(bet) {
			result = entities.NewBlackjackFailure(username, entities.FailureInsufficientFunds)
			return nil
		}
		isAllIn := account.Balance == bet

		userCards := []int{s.drawCard()}
		dealerCards := []int{s.drawCard()}
		userCards = append(userCards, s.drawCard())
		dealerCards = append(dealerCards, s.drawCard())

		result = newBlackjackResult(username, bet, userCards, dealerCards, isAllIn)
		result.NewBalance = account.Balance

		userNatural := entities.IsNatural(userCards)
		dealerNatural := entities.IsNatural(dealerCards)
		switch {
		case userNatural && dealerNatural:
			result.Outcome = entities.BlackjackNaturalPush
			result.Finished = true
		case userNatural:
			winnings := payout(bet, naturalMultiplier)
			txn, err := ledger.AddWin(ctx, username, winnings, "Blackjack natural", isAllIn)
			if err != nil {
				return err
			}
			result.Outcome = entities.BlackjackNaturalWin
			result.Winnings = winnings
			result.NewBalance = txn.BalanceAfter
			result.Finished = true
		case dealerNatural:
			txn, err := ledger.AddLoss(ctx, username, bet, "Blackjack dealer natural", isAllIn)
			if err != nil {
				return err
			}
			result.Outcome = entities.BlackjackDealerNatural
			result.NewBalance = txn.BalanceAfter
			result.Finished = true
		default:
			// The bet leaves the balance now and is only credited back on a win or push.
			txn, err := ledger.AddLoss(ctx, username, bet, "Blackjack bet", false)
			if err != nil {
				return err
			}
			now := s.clock.Now()
			session = &entities.BlackjackSession{
				Username:     username,
				Bet:          bet,
				UserCards:    userCards,
				DealerCards:  dealerCards,
				IsAllIn:      isAllIn,
				StartedAt:    now,
				LastActionAt: now,
			}
			result.Outcome = entities.BlackjackInProgress
			result.NewBalance = txn.BalanceAfter
			// Only the dealer's up card is shown while the hand is open.
			result.DealerCards = []int{dealerCards[0]}
			result.DealerTotal = entities.HandValue(result.DealerCards)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start blackjack for %s: %w", username, err)
	}

	if session != nil {
		s.sessions.Put(username, session)
	}
	s.logResult(result)
	return result, nil
}

// Hit draws one card for the user. A bust ends the session with the bet already forfeited.
func (s *blackjackService) Hit(ctx context.Context, username string) (*entities.BlackjackResult, error) {
	username = entities.NormalizeUsername(username)
	unlock := s.sessions.Lock(username)
	defer unlock()

	stored, ok := s.sessions.Get(username)
	if !ok {
		return entities.NewBlackjackFailure(username, entities.FailureNoActiveSession), nil
	}

	// The stored session is replaced, never mutated in place.
	session := stored.Clone()
	session.UserCards = append(session.UserCards, s.drawCard())
	session.LastActionAt = s.clock.Now()

	if entities.HandValue(session.UserCards) <= 21 {
		balance, err := s.balanceOf(ctx, username)
		if err != nil {
			return nil, err
		}
		s.sessions.Put(username, session)
		result := newBlackjackResult(username, session.Bet, session.UserCards, session.DealerCards[:1], session.IsAllIn)
		result.Outcome = entities.BlackjackInProgress
		result.NewBalance = balance
		return result, nil
	}

	result := newBlackjackResult(username, session.Bet, session.UserCards, session.DealerCards, session.IsAllIn)
	result.Outcome = entities.BlackjackBust
	result.Finished = true

	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		balance, err := settleLoss(ctx, ledger, session, "Blackjack bust")
		result.NewBalance = balance
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle blackjack bust for %s: %w", username, err)
	}

	s.sessions.Delete(username)
	s.logResult(result)
	return result, nil
}

// settleLoss closes a lost hand whose bet was debited at the start. An all-in
// hand gets a zero-amount loss entry so the all-in loss is counted.
func settleLoss(ctx context.Context, ledger interfaces.Ledger, session *entities.BlackjackSession, description string) (int64, error) {
	if session.IsAllIn {
		txn, err := ledger.AddLoss(ctx, session.Username, 0, description, true)
		if err != nil || txn == nil {
			return 0, err
		}
		return txn.BalanceAfter, nil
	}
	account, err := ledger.GetBalance(ctx, session.Username)
	if err != nil || account == nil {
		return 0, err
	}
	return account.Balance, nil
}

// Stand plays out the dealer's hand and settles the session
func (s *blackjackService) Stand(ctx context.Context, username string) (*entities.BlackjackResult, error) {
	username = entities.NormalizeUsername(username)
	unlock := s.sessions.Lock(username)
	defer unlock()

	stored, ok := s.sessions.Get(username)
	if !ok {
		return entities.NewBlackjackFailure(username, entities.FailureNoActiveSession), nil
	}

	session := stored.Clone()
	for entities.HandValue(session.DealerCards) < dealerStandsOn {
		session.DealerCards = append(session.DealerCards, s.drawCard())
	}

	result := newBlackjackResult(username, session.Bet, session.UserCards, session.DealerCards, session.IsAllIn)
	result.Finished = true

	userTotal := result.UserTotal
	dealerTotal := result.DealerTotal
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var txn *entities.Transaction
		var err error
		switch {
		case dealerTotal > 21 || userTotal > dealerTotal:
			result.Outcome = entities.BlackjackWin
			result.Winnings = session.Bet * 2
			txn, err = ledger.AddWin(ctx, username, result.Winnings, "Blackjack win", session.IsAllIn)
		case userTotal == dealerTotal:
			result.Outcome = entities.BlackjackPush
			result.Winnings = session.Bet
			txn, err = ledger.AddWin(ctx, username, session.Bet, "Blackjack push refund", false)
		default:
			result.Outcome = entities.BlackjackLoss
			balance, err := settleLoss(ctx, ledger, session, "Blackjack loss")
			result.NewBalance = balance
			return err
		}
		if err != nil {
			return err
		}
		result.NewBalance = txn.BalanceAfter
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle blackjack for %s: %w", username, err)
	}

	s.sessions.Delete(username)
	s.logResult(result)
	return result, nil
}

// Sweep settles every session idle for longer than the configured timeout
func (s *blackjackService) Sweep(ctx context.Context, now time.Time) ([]*entities.BlackjackResult, error) {
	var results []*entities.BlackjackResult
	var errs []error

	for _, candidate := range s.sessions.Values() {
		result, err := s.expire(ctx, candidate.Username, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if result != nil {
			results = append(results, result)
		}
	}

	if len(results) > 0 {
		log.WithField("expired", len(results)).Info("Swept idle blackjack sessions")
	}
	return results, errors.Join(errs...)
}

func (s *blackjackService) expire(ctx context.Context, username string, now time.Time) (*entities.BlackjackResult, error) {
	unlock := s.sessions.Lock(username)
	defer unlock()

	// Re-check under the lock; a hit or stand may have landed since the snapshot.
	session, ok := s.sessions.Get(username)
	if !ok || !session.IdleSince(now, s.cfg.IdleTimeout) {
		return nil, nil
	}

	result := newBlackjackResult(username, session.Bet, session.UserCards, session.DealerCards, session.IsAllIn)
	result.Outcome = entities.BlackjackExpired
	result.Finished = true

	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var txn *entities.Transaction
		var err error
		if s.cfg.ExpiryPolicy == entities.BlackjackExpiryRefund {
			result.Winnings = session.Bet
			txn, err = ledger.AddWin(ctx, username, session.Bet, "Blackjack session expired, bet refunded", false)
		} else {
			txn, err = ledger.AddLoss(ctx, username, 0, "Blackjack session expired, bet forfeited", session.IsAllIn)
		}
		if err != nil {
			return err
		}
		if txn != nil {
			result.NewBalance = txn.BalanceAfter
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expire blackjack session for %s: %w", username, err)
	}

	s.sessions.Delete(username)
	s.logResult(result)
	return result, nil
}

func (s *blackjackService) balanceOf(ctx context.Context, username string) (int64, error) {
	var balance int64
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		if account != nil {
			balance = account.Balance
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read balance for %s: %w", username, err)
	}
	return balance, nil
}

func (s *blackjackService) logResult(result *entities.BlackjackResult) {
	if result == nil || !result.Success {
		return
	}
	log.WithFields(log.Fields{
		"username":    result.Username,
		"outcome":     result.Outcome,
		"bet":         result.Bet,
		"userTotal":   result.UserTotal,
		"dealerTotal": result.DealerTotal,
		"winnings":    result.Winnings,
	}).Info("Blackjack step")

	if !result.Finished {
		return
	}
	if err := s.eventPublisher.Publish(events.BlackjackResolvedEvent{
		Username: result.Username,
		Outcome:  result.Outcome,
		Bet:      result.Bet,
		Winnings: result.Winnings,
		IsAllIn:  result.IsAllIn,
	}); err != nil {
		log.WithError(err).Error("Failed to publish blackjack resolved event")
	}
}

func newBlackjackResult(username string, bet int64, userCards, dealerCards []int, isAllIn bool) *entities.BlackjackResult {
	return &entities.BlackjackResult{
		Success:     true,
		Username:    username,
		Bet:         bet,
		UserCards:   append([]int(nil), userCards...),
		DealerCards: append([]int(nil), dealerCards...),
		UserTotal:   entities.HandValue(userCards),
		DealerTotal: entities.HandValue(dealerCards),
		IsAllIn:     isAllIn,
	}
}
