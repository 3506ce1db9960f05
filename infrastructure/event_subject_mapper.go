package infrastructure

import (
	"fmt"

	"pointsbank/events"
)

var eventSubjects = map[events.EventType]string{
	events.EventTypeBalanceChange:     "economy.balance.changed",
	events.EventTypeAccountCreated:    "economy.account.created",
	events.EventTypeGameSettled:       "economy.game.settled",
	events.EventTypeBlackjackResolved: "economy.blackjack.resolved",
	events.EventTypeDuelResolved:      "economy.duel.resolved",
	events.EventTypeDuelExpired:       "economy.duel.expired",
	events.EventTypeEconomyReset:      "economy.reset",
	events.EventTypeItemPurchased:     "economy.marketplace.purchased",
}

// EventSubjectMapper handles mapping between domain events and NATS subjects
type EventSubjectMapper struct{}

// NewEventSubjectMapper creates a new event subject mapper
func NewEventSubjectMapper() *EventSubjectMapper {
	return &EventSubjectMapper{}
}

// MapEventToSubject converts a domain event to its NATS subject
func (m *EventSubjectMapper) MapEventToSubject(event events.Event) string {
	if subject, ok := eventSubjects[event.Type()]; ok {
		return subject
	}
	return fmt.Sprintf("unknown.%s", event.Type())
}

// MapSubjectToEventType converts a NATS subject back to an event type
func (m *EventSubjectMapper) MapSubjectToEventType(subject string) events.EventType {
	for eventType, s := range eventSubjects {
		if s == subject {
			return eventType
		}
	}
	return events.EventType(subject)
}

// GetAllSubjects returns all subjects that this service publishes to, in event type order
func (m *EventSubjectMapper) GetAllSubjects() []string {
	all := events.AllEventTypes()
	subjects := make([]string, 0, len(all))
	for _, t := range all {
		subjects = append(subjects, eventSubjects[t])
	}
	return subjects
}
