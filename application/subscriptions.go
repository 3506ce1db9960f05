package application

import (
	"context"

	"pointsbank/domain/entities"
	"pointsbank/events"
	"pointsbank/infrastructure/observability"

	log "github.com/sirupsen/logrus"
)

// ExternalPublisher forwards committed domain events off-process
type ExternalPublisher interface {
	PublishContext(ctx context.Context, event events.Event) error
}

// RegisterSubscriptions attaches metrics and external forwarding to the bus.
// Either dependency may be nil.
func RegisterSubscriptions(bus *events.Bus, metrics *observability.MetricsProvider, external ExternalPublisher) {
	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		recordEventMetrics(metrics, event)
	})

	if external == nil {
		log.Info("No external event publisher configured, domain events stay in-process")
		return
	}

	bus.SubscribeAll(func(ctx context.Context, event events.Event) {
		if err := external.PublishContext(ctx, event); err != nil {
			log.WithFields(log.Fields{
				"eventType": event.Type(),
			}).WithError(err).Error("Failed to forward event")
		}
	})
}

func recordEventMetrics(metrics *observability.MetricsProvider, event events.Event) {
	switch e := event.(type) {
	case events.BalanceChangeEvent:
		metrics.RecordBalanceTransaction(string(e.TransactionType), e.Amount)
	case events.GameSettledEvent:
		metrics.RecordGameSettled(string(e.Game), gameOutcomeLabel(e.Won, e.Push), e.Bet)
	case events.BlackjackResolvedEvent:
		metrics.RecordGameSettled(string(entities.GameBlackjack), blackjackOutcomeLabel(e.Outcome), e.Bet)
	case events.DuelResolvedEvent:
		metrics.RecordDuel(observability.OutcomeWin, e.Sponsored)
	case events.DuelExpiredEvent:
		metrics.RecordDuel(observability.OutcomeExpired, false)
	case events.ItemPurchasedEvent:
		metrics.RecordPurchase(e.Action)
	}
}

func gameOutcomeLabel(won, push bool) string {
	switch {
	case push:
		return observability.OutcomePush
	case won:
		return observability.OutcomeWin
	default:
		return observability.OutcomeLoss
	}
}

func blackjackOutcomeLabel(outcome entities.BlackjackOutcome) string {
	switch outcome {
	case entities.BlackjackWin, entities.BlackjackNaturalWin:
		return observability.OutcomeWin
	case entities.BlackjackPush, entities.BlackjackNaturalPush:
		return observability.OutcomePush
	case entities.BlackjackExpired:
		return observability.OutcomeExpired
	default:
		return observability.OutcomeLoss
	}
}
