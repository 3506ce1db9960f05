package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

// DuelConfig controls how long a challenge stays open
type DuelConfig struct {
	TTL time.Duration
}

// DefaultDuelConfig keeps challenges open for two minutes
func DefaultDuelConfig() DuelConfig {
	return DuelConfig{TTL: 2 * time.Minute}
}

type duelService struct {
	executor       interfaces.LedgerExecutor
	rng            interfaces.RandomSource
	prices         entities.PriceTable
	eventPublisher interfaces.EventPublisher
	clock          interfaces.Clock
	duels          interfaces.KeyedStore[entities.DuelKey, *entities.PendingDuel]
	cfg            DuelConfig
}

// NewDuelService creates the duel escrow manager
func NewDuelService(
	executor interfaces.LedgerExecutor,
	rng interfaces.RandomSource,
	prices entities.PriceTable,
	eventPublisher interfaces.EventPublisher,
	clock interfaces.Clock,
	duels interfaces.KeyedStore[entities.DuelKey, *entities.PendingDuel],
	cfg DuelConfig,
) interfaces.DuelService {
	return &duelService{
		executor:       executor,
		rng:            rng,
		prices:         prices,
		eventPublisher: eventPublisher,
		clock:          clock,
		duels:          duels,
		cfg:            cfg,
	}
}

// Challenge opens an organic duel, withdrawing the challenger's stake immediately.
// The stake is clamped to the challenger's balance; all stakes the whole balance.
func (s *duelService) Challenge(ctx context.Context, challenger, target string, stake int64, all bool) (*entities.DuelResult, error) {
	challenger = entities.NormalizeUsername(challenger)
	target = entities.NormalizeUsername(target)
	if challenger == target {
		return entities.NewDuelFailure(challenger, target, entities.FailureSelfChallenge), nil
	}

	minBet := minBetFor(s.prices, entities.GameCoinflip)
	if !all && stake < minBet {
		return entities.NewDuelFailure(challenger, target, entities.FailureBelowMinimumBet), nil
	}

	key := entities.DuelKey{Challenger: challenger, Target: target}
	unlock := s.duels.Lock(key)
	defer unlock()

	if failure, err := s.checkExistingLocked(ctx, key); err != nil || failure != entities.FailureNone {
		if err != nil {
			return nil, err
		}
		return entities.NewDuelFailure(challenger, target, failure), nil
	}

	var result *entities.DuelResult
	var duel *entities.PendingDuel
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(ctx, challenger)
		if err != nil {
			return err
		}
		if account == nil {
			result = entities.NewDuelFailure(challenger, target, entities.FailureInsufficientFunds)
			return nil
		}

		amount := stake
		if all || amount > account.Balance {
			amount = account.Balance
		}
		if amount < minBet {
			result = entities.NewDuelFailure(challenger, target, entities.FailureInsufficientFunds)
			return nil
		}

		ok, err := ledger.Withdraw(ctx, challenger, amount, fmt.Sprintf("Duel stake vs %s", target))
		if err != nil {
			return err
		}
		if !ok {
			result = entities.NewDuelFailure(challenger, target, entities.FailureInsufficientFunds)
			return nil
		}

		now := s.clock.Now()
		duel = &entities.PendingDuel{
			Challenger:      challenger,
			Target:          target,
			Bet:             amount,
			ChallengerStake: amount,
			CreatedAt:       now,
			ExpiresAt:       now.Add(s.cfg.TTL),
		}
		result = &entities.DuelResult{
			Success:    true,
			Outcome:    entities.DuelChallenged,
			Challenger: challenger,
			Target:     target,
			Stake:      amount,
			Pot:        duel.Pot(),
			NewBalance: account.Balance - amount,
			ExpiresAt:  duel.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open duel %s vs %s: %w", challenger, target, err)
	}

	if duel != nil {
		s.duels.Put(key, duel)
		log.WithFields(log.Fields{
			"challenger": challenger,
			"target":     target,
			"stake":      duel.ChallengerStake,
		}).Info("Duel challenge opened")
	}
	return result, nil
}

// ChallengeSponsored opens a duel whose pot is house money.
// When a sponsorship is given its cost is charged to the buyer only if the duel opens.
func (s *duelService) ChallengeSponsored(ctx context.Context, challenger, target string, pot int64, sponsor *entities.Sponsorship) (*entities.DuelResult, error) {
	challenger = entities.NormalizeUsername(challenger)
	target = entities.NormalizeUsername(target)
	if challenger == target {
		return entities.NewDuelFailure(challenger, target, entities.FailureSelfChallenge), nil
	}
	if pot <= 0 {
		return entities.NewDuelFailure(challenger, target, entities.FailureInvalidAmount), nil
	}

	key := entities.DuelKey{Challenger: challenger, Target: target}
	unlock := s.duels.Lock(key)
	defer unlock()

	if failure, err := s.checkExistingLocked(ctx, key); err != nil || failure != entities.FailureNone {
		if err != nil {
			return nil, err
		}
		return entities.NewDuelFailure(challenger, target, failure), nil
	}

	now := s.clock.Now()
	duel := &entities.PendingDuel{
		Challenger:   challenger,
		Target:       target,
		Bet:          pot,
		SponsoredPot: pot,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.cfg.TTL),
	}
	result := &entities.DuelResult{
		Success:    true,
		Outcome:    entities.DuelChallenged,
		Challenger: challenger,
		Target:     target,
		Pot:        pot,
		Sponsored:  true,
		ExpiresAt:  duel.ExpiresAt,
	}

	if sponsor != nil {
		buyer := entities.NormalizeUsername(sponsor.Buyer)
		var funded bool
		err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
			ok, err := ledger.Purchase(ctx, buyer, sponsor.Cost, sponsor.Description)
			if err != nil || !ok {
				return err
			}
			account, err := ledger.GetBalance(ctx, buyer)
			if err != nil {
				return err
			}
			funded = true
			result.NewBalance = account.Balance
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to charge duel sponsorship for %s: %w", buyer, err)
		}
		if !funded {
			return entities.NewDuelFailure(challenger, target, entities.FailureInsufficientFunds), nil
		}
	}

	s.duels.Put(key, duel)
	log.WithFields(log.Fields{
		"challenger": challenger,
		"target":     target,
		"pot":        pot,
	}).Info("Sponsored duel opened")
	return result, nil
}

// Accept resolves the newest pending duel addressed to target with a fair coin
func (s *duelService) Accept(ctx context.Context, target, challenger string) (*entities.DuelResult, error) {
	target = entities.NormalizeUsername(target)
	challenger = entities.NormalizeUsername(challenger)

	candidate := s.find(target, challenger)
	if candidate == nil {
		return entities.NewDuelFailure(challenger, target, entities.FailureNoPendingDuel), nil
	}

	key := candidate.Key()
	unlock := s.duels.Lock(key)
	defer unlock()

	duel, ok := s.duels.Get(key)
	if !ok {
		return entities.NewDuelFailure(key.Challenger, target, entities.FailureNoPendingDuel), nil
	}
	if duel.IsExpired(s.clock.Now()) {
		result, err := s.expireLocked(ctx, duel)
		if err != nil {
			return nil, err
		}
		result.Success = false
		result.Failure = entities.FailureDuelExpired
		return result, nil
	}

	// Claim the duel before touching money so it settles at most once.
	s.duels.Delete(key)

	result := &entities.DuelResult{
		Challenger: duel.Challenger,
		Target:     duel.Target,
		Stake:      duel.ChallengerStake,
		Sponsored:  duel.IsSponsored(),
	}
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		// Lock both accounts in a fixed order so crossing duels cannot deadlock.
		pair := []string{duel.Challenger, duel.Target}
		sort.Strings(pair)
		for _, u := range pair {
			if _, err := ledger.GetBalance(ctx, u); err != nil {
				return err
			}
		}

		settled := duel.Clone()
		if !settled.IsSponsored() {
			ok, err := ledger.Withdraw(ctx, settled.Target, settled.ChallengerStake, fmt.Sprintf("Duel stake vs %s", settled.Challenger))
			if err != nil {
				return err
			}
			if !ok {
				refund := fmt.Sprintf("Duel refund: %s could not match the stake", settled.Target)
				if _, err := ledger.Deposit(ctx, settled.Challenger, settled.ChallengerStake, refund); err != nil {
					return err
				}
				result.Failure = entities.FailureInsufficientFunds
				result.Outcome = entities.DuelRefunded
				result.Refunded = settled.ChallengerStake
				return nil
			}
			settled.TargetStake = settled.ChallengerStake
		}

		winner, loser := settled.Challenger, settled.Target
		if s.rng.Intn(2) == 1 {
			winner, loser = loser, winner
		}
		pot := settled.Pot()
		txn, err := ledger.AddWin(ctx, winner, pot, fmt.Sprintf("Duel win vs %s", loser), false)
		if err != nil {
			return err
		}

		result.Success = true
		result.Outcome = entities.DuelResolved
		result.Pot = pot
		result.Winner = winner
		result.Loser = loser
		if winner == settled.Target {
			result.NewBalance = txn.BalanceAfter
		} else {
			account, err := ledger.GetBalance(ctx, settled.Target)
			if err != nil {
				return err
			}
			if account != nil {
				result.NewBalance = account.Balance
			}
		}
		return nil
	})
	if err != nil {
		s.duels.Put(key, duel)
		return nil, fmt.Errorf("failed to settle duel %s vs %s: %w", duel.Challenger, duel.Target, err)
	}

	if result.Success {
		log.WithFields(log.Fields{
			"challenger": result.Challenger,
			"target":     result.Target,
			"winner":     result.Winner,
			"pot":        result.Pot,
		}).Info("Duel resolved")
		if err := s.eventPublisher.Publish(events.DuelResolvedEvent{
			Challenger: result.Challenger,
			Target:     result.Target,
			Winner:     result.Winner,
			Pot:        result.Pot,
			Sponsored:  result.Sponsored,
		}); err != nil {
			log.WithError(err).Error("Failed to publish duel resolved event")
		}
	}
	return result, nil
}

// Decline refunds the challenger and removes the duel
func (s *duelService) Decline(ctx context.Context, target, challenger string) (*entities.DuelResult, error) {
	target = entities.NormalizeUsername(target)
	challenger = entities.NormalizeUsername(challenger)

	candidate := s.find(target, challenger)
	if candidate == nil {
		return entities.NewDuelFailure(challenger, target, entities.FailureNoPendingDuel), nil
	}

	key := candidate.Key()
	unlock := s.duels.Lock(key)
	defer unlock()

	duel, ok := s.duels.Get(key)
	if !ok {
		return entities.NewDuelFailure(key.Challenger, target, entities.FailureNoPendingDuel), nil
	}

	expired := duel.IsExpired(s.clock.Now())
	result, err := s.expireLocked(ctx, duel)
	if err != nil {
		return nil, err
	}
	if expired {
		result.Success = false
		result.Failure = entities.FailureDuelExpired
	} else {
		result.Outcome = entities.DuelDeclined
	}
	return result, nil
}

// Pending lists duels the user issued or received, newest first
func (s *duelService) Pending(username string) []*entities.PendingDuel {
	username = entities.NormalizeUsername(username)
	var out []*entities.PendingDuel
	for _, d := range s.duels.Values() {
		if d.Challenger == username || d.Target == username {
			out = append(out, d.Clone())
		}
	}
	sortNewestFirst(out)
	return out
}

// Sweep refunds and removes every duel that has expired by now
func (s *duelService) Sweep(ctx context.Context, now time.Time) ([]*entities.DuelResult, error) {
	var results []*entities.DuelResult
	var errs []error

	for _, candidate := range s.duels.Values() {
		if !candidate.IsExpired(now) {
			continue
		}
		result, err := func() (*entities.DuelResult, error) {
			unlock := s.duels.Lock(candidate.Key())
			defer unlock()

			duel, ok := s.duels.Get(candidate.Key())
			if !ok || !duel.IsExpired(now) {
				return nil, nil
			}
			return s.expireLocked(ctx, duel)
		}()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if result != nil {
			results = append(results, result)
		}
	}

	if len(results) > 0 {
		log.WithField("expired", len(results)).Info("Swept expired duels")
	}
	return results, errors.Join(errs...)
}

// checkExistingLocked rejects a live duel on the key and clears an expired one.
// The caller holds the key lock.
func (s *duelService) checkExistingLocked(ctx context.Context, key entities.DuelKey) (entities.Failure, error) {
	existing, ok := s.duels.Get(key)
	if !ok {
		return entities.FailureNone, nil
	}
	if !existing.IsExpired(s.clock.Now()) {
		return entities.FailureDuelAlreadyPending, nil
	}
	if _, err := s.expireLocked(ctx, existing); err != nil {
		return entities.FailureNone, err
	}
	return entities.FailureNone, nil
}

// expireLocked removes the duel and refunds the challenger's stake.
// The caller holds the key lock. On error the duel is left in place.
func (s *duelService) expireLocked(ctx context.Context, duel *entities.PendingDuel) (*entities.DuelResult, error) {
	result := &entities.DuelResult{
		Success:    true,
		Outcome:    entities.DuelRefunded,
		Challenger: duel.Challenger,
		Target:     duel.Target,
		Stake:      duel.ChallengerStake,
		Pot:        duel.Pot(),
		Sponsored:  duel.IsSponsored(),
		Refunded:   duel.ChallengerStake,
		ExpiresAt:  duel.ExpiresAt,
	}

	if duel.ChallengerStake > 0 {
		err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
			txn, err := ledger.Deposit(ctx, duel.Challenger, duel.ChallengerStake, fmt.Sprintf("Duel refund: challenge to %s closed", duel.Target))
			if err != nil {
				return err
			}
			result.NewBalance = txn.BalanceAfter
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to refund duel %s vs %s: %w", duel.Challenger, duel.Target, err)
		}
	}

	s.duels.Delete(duel.Key())
	if err := s.eventPublisher.Publish(events.DuelExpiredEvent{
		Challenger: duel.Challenger,
		Target:     duel.Target,
		Refunded:   duel.ChallengerStake,
	}); err != nil {
		log.WithError(err).Error("Failed to publish duel expired event")
	}
	return result, nil
}

// find returns the newest duel addressed to target, optionally from a named challenger
func (s *duelService) find(target, challenger string) *entities.PendingDuel {
	if challenger != "" {
		d, ok := s.duels.Get(entities.DuelKey{Challenger: challenger, Target: target})
		if !ok {
			return nil
		}
		return d
	}

	var incoming []*entities.PendingDuel
	for _, d := range s.duels.Values() {
		if d.Target == target {
			incoming = append(incoming, d)
		}
	}
	if len(incoming) == 0 {
		return nil
	}
	sortNewestFirst(incoming)
	return incoming[0]
}

func sortNewestFirst(duels []*entities.PendingDuel) {
	sort.Slice(duels, func(i, j int) bool {
		if !duels[i].CreatedAt.Equal(duels[j].CreatedAt) {
			return duels[i].CreatedAt.After(duels[j].CreatedAt)
		}
		return duels[i].Challenger < duels[j].Challenger
	})
}
