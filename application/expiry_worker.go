package application

import (
	"context"
	"time"

	"pointsbank/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// ExpiryWorker periodically sweeps idle blackjack sessions and stale duels
type ExpiryWorker struct {
	blackjack         interfaces.BlackjackService
	duels             interfaces.DuelService
	clock             interfaces.Clock
	blackjackInterval time.Duration
	duelInterval      time.Duration
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(
	blackjack interfaces.BlackjackService,
	duels interfaces.DuelService,
	clock interfaces.Clock,
	blackjackInterval time.Duration,
	duelInterval time.Duration,
) *ExpiryWorker {
	return &ExpiryWorker{
		blackjack:         blackjack,
		duels:             duels,
		clock:             clock,
		blackjackInterval: blackjackInterval,
		duelInterval:      duelInterval,
	}
}

// Start begins both sweep loops and returns a function that stops them
func (w *ExpiryWorker) Start(ctx context.Context) func() {
	stopChan := make(chan struct{})

	go func() {
		log.WithFields(log.Fields{
			"blackjackInterval": w.blackjackInterval,
			"duelInterval":      w.duelInterval,
		}).Info("Expiry worker started")

		blackjackTicker := time.NewTicker(w.blackjackInterval)
		defer blackjackTicker.Stop()
		duelTicker := time.NewTicker(w.duelInterval)
		defer duelTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Expiry worker shutting down (context cancelled)...")
				return
			case <-stopChan:
				log.Info("Expiry worker shutting down (stop requested)...")
				return
			case <-blackjackTicker.C:
				w.SweepBlackjack(ctx)
			case <-duelTicker.C:
				w.SweepDuels(ctx)
			}
		}
	}()

	return func() {
		close(stopChan)
	}
}

// SweepBlackjack settles every session idle past its timeout. Returns how many were settled.
func (w *ExpiryWorker) SweepBlackjack(ctx context.Context) int {
	results, err := w.blackjack.Sweep(ctx, w.clock.Now())
	if err != nil {
		log.Errorf("Error sweeping blackjack sessions: %v", err)
	}
	if len(results) > 0 {
		log.WithField("count", len(results)).Info("Expired idle blackjack sessions")
	}
	return len(results)
}

// SweepDuels refunds every duel past its expiry. Returns how many were refunded.
func (w *ExpiryWorker) SweepDuels(ctx context.Context) int {
	results, err := w.duels.Sweep(ctx, w.clock.Now())
	if err != nil {
		log.Errorf("Error sweeping pending duels: %v", err)
	}
	if len(results) > 0 {
		log.WithField("count", len(results)).Info("Refunded expired duels")
	}
	return len(results)
}
