package services

import (
	"context"
	"fmt"
	"strings"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

type marketplaceService struct {
	executor       interfaces.LedgerExecutor
	duels          interfaces.DuelService
	prices         entities.PriceTable
	eventPublisher interfaces.EventPublisher
	potMultiplier  int64
}

// NewMarketplaceService creates the action marketplace.
// A sponsored duel's pot is potMultiplier times the sponsor_duel price.
func NewMarketplaceService(
	executor interfaces.LedgerExecutor,
	duels interfaces.DuelService,
	prices entities.PriceTable,
	eventPublisher interfaces.EventPublisher,
	potMultiplier int64,
) interfaces.MarketplaceService {
	return &marketplaceService{
		executor:       executor,
		duels:          duels,
		prices:         prices,
		eventPublisher: eventPublisher,
		potMultiplier:  potMultiplier,
	}
}

// Buy charges the user for an action. The action's effect belongs to whoever consumes the purchase event.
func (s *marketplaceService) Buy(ctx context.Context, username, action string) (*entities.PurchaseResult, error) {
	username = entities.NormalizeUsername(username)
	action = strings.ToLower(strings.TrimSpace(action))

	result := &entities.PurchaseResult{Username: username, Action: action}
	if action == entities.ActionSponsorDuel {
		// Needs both duelists, see SponsorDuel.
		result.Failure = entities.FailureInvalidChoice
		return result, nil
	}
	cost, ok := s.prices.ActionCost(action)
	if !ok {
		result.Failure = entities.FailureUnknownAction
		return result, nil
	}
	result.Cost = cost

	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		ok, err := ledger.Purchase(ctx, username, cost, "Purchased "+action)
		if err != nil {
			return err
		}
		if !ok {
			result.Failure = entities.FailureInsufficientFunds
			return nil
		}
		account, err := ledger.GetBalance(ctx, username)
		if err != nil {
			return err
		}
		result.Success = true
		result.NewBalance = account.Balance
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to purchase %s for %s: %w", action, username, err)
	}

	if result.Success {
		s.publish(result)
	}
	return result, nil
}

// SponsorDuel buys a house-funded duel between two users
func (s *marketplaceService) SponsorDuel(ctx context.Context, buyer, challenger, target string) (*entities.PurchaseResult, error) {
	buyer = entities.NormalizeUsername(buyer)
	result := &entities.PurchaseResult{Username: buyer, Action: entities.ActionSponsorDuel}

	cost, ok := s.prices.ActionCost(entities.ActionSponsorDuel)
	if !ok {
		result.Failure = entities.FailureUnknownAction
		return result, nil
	}
	result.Cost = cost

	duel, err := s.duels.ChallengeSponsored(ctx, challenger, target, cost*s.potMultiplier, &entities.Sponsorship{
		Buyer:       buyer,
		Cost:        cost,
		Description: fmt.Sprintf("Sponsored duel %s vs %s", entities.NormalizeUsername(challenger), entities.NormalizeUsername(target)),
	})
	if err != nil {
		return nil, err
	}

	result.Duel = duel
	if !duel.Success {
		result.Failure = duel.Failure
		return result, nil
	}
	result.Success = true
	result.NewBalance = duel.NewBalance
	s.publish(result)
	return result, nil
}

func (s *marketplaceService) publish(result *entities.PurchaseResult) {
	log.WithFields(log.Fields{
		"username": result.Username,
		"action":   result.Action,
		"cost":     result.Cost,
	}).Info("Marketplace purchase")
	if err := s.eventPublisher.Publish(events.ItemPurchasedEvent{
		Username: result.Username,
		Action:   result.Action,
		Cost:     result.Cost,
	}); err != nil {
		log.WithError(err).Error("Failed to publish item purchased event")
	}
}
