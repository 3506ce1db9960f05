package services

import (
	"context"
	"fmt"
	"sort"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/events"

	log "github.com/sirupsen/logrus"
)

type gameService struct {
	executor       interfaces.LedgerExecutor
	rng            interfaces.RandomSource
	prices         entities.PriceTable
	eventPublisher interfaces.EventPublisher
	games          map[entities.GameKind]game
}

// NewGameService creates the single-shot game engine
func NewGameService(
	executor interfaces.LedgerExecutor,
	rng interfaces.RandomSource,
	prices entities.PriceTable,
	eventPublisher interfaces.EventPublisher,
) interfaces.GameService {
	return &gameService{
		executor:       executor,
		rng:            rng,
		prices:         prices,
		eventPublisher: eventPublisher,
		games:          defaultGames(),
	}
}

// Games lists the playable games in name order
func (s *gameService) Games() []entities.GameKind {
	kinds := make([]entities.GameKind, 0, len(s.games))
	for k := range s.games {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Play validates a wager, draws the outcome and settles it with at most one ledger entry
func (s *gameService) Play(ctx context.Context, req entities.GameRequest) (*entities.GameResult, error) {
	req.Username = entities.NormalizeUsername(req.Username)

	g, ok := s.games[req.Game]
	if !ok {
		return entities.NewGameFailure(req, entities.FailureUnknownGame), nil
	}
	if req.Bet < minBetFor(s.prices, req.Game) {
		return entities.NewGameFailure(req, entities.FailureBelowMinimumBet), nil
	}
	choice, ok := g.normalizeChoice(req.Choice)
	if !ok {
		return entities.NewGameFailure(req, entities.FailureInvalidChoice), nil
	}
	req.Choice = choice

	var result *entities.GameResult
	err := s.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(ctx, req.Username)
		if err != nil {
			return err
		}
		if !account.CanAfford(req.Bet) {
			result = entities.NewGameFailure(req, entities.FailureInsufficientFunds)
			return nil
		}

		isAllIn := account.Balance == req.Bet
		outcome := g.play(s.rng, choice)

		result = &entities.GameResult{
			Success:    true,
			Game:       req.Game,
			Bet:        req.Bet,
			Choice:     choice,
			Outcome:    outcome.description,
			Detail:     outcome.detail,
			Push:       outcome.push,
			NewBalance: account.Balance,
			IsAllIn:    isAllIn,
		}

		switch {
		case outcome.push:
			// No funds moved, so nothing is logged.
		case outcome.won():
			gross := payout(req.Bet, outcome.multiplier)
			description := fmt.Sprintf("%s win: %s", req.Game, outcome.description)
			txn, err := ledger.AddWin(ctx, req.Username, gross-req.Bet, description, isAllIn)
			if err != nil {
				return err
			}
			result.Won = true
			result.Winnings = gross
			result.Detail.Multiplier = outcome.multiplier.String() + "x"
			result.NewBalance = txn.BalanceAfter
		default:
			description := fmt.Sprintf("%s loss: %s", req.Game, outcome.description)
			txn, err := ledger.AddLoss(ctx, req.Username, req.Bet, description, isAllIn)
			if err != nil {
				return err
			}
			result.NewBalance = txn.BalanceAfter
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle %s for %s: %w", req.Game, req.Username, err)
	}

	if result.Success {
		log.WithFields(log.Fields{
			"username": req.Username,
			"game":     req.Game,
			"bet":      req.Bet,
			"won":      result.Won,
			"push":     result.Push,
			"winnings": result.Winnings,
			"allIn":    result.IsAllIn,
		}).Info("Game settled")

		if err := s.eventPublisher.Publish(events.GameSettledEvent{
			Username: req.Username,
			Game:     req.Game,
			Bet:      req.Bet,
			Won:      result.Won,
			Push:     result.Push,
			Winnings: result.Winnings,
			IsAllIn:  result.IsAllIn,
		}); err != nil {
			log.WithError(err).Error("Failed to publish game settled event")
		}
	}
	return result, nil
}

// minBetFor falls back to the stock table for games missing from the configured one
func minBetFor(prices entities.PriceTable, game entities.GameKind) int64 {
	if v, ok := prices.MinBet(game); ok {
		return v
	}
	return entities.DefaultMinBets()[game]
}
