package events

import (
	"context"
	"sync"

	"pointsbank/domain/entities"

	log "github.com/sirupsen/logrus"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTypeBalanceChange     EventType = "balance_change"
	EventTypeAccountCreated    EventType = "account_created"
	EventTypeGameSettled       EventType = "game_settled"
	EventTypeBlackjackResolved EventType = "blackjack_resolved"
	EventTypeDuelResolved      EventType = "duel_resolved"
	EventTypeDuelExpired       EventType = "duel_expired"
	EventTypeEconomyReset      EventType = "economy_reset"
	EventTypeItemPurchased     EventType = "item_purchased"
)

// AllEventTypes lists every event type the core emits
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeBalanceChange,
		EventTypeAccountCreated,
		EventTypeGameSettled,
		EventTypeBlackjackResolved,
		EventTypeDuelResolved,
		EventTypeDuelExpired,
		EventTypeEconomyReset,
		EventTypeItemPurchased,
	}
}

// Event is the base interface for all events
type Event interface {
	Type() EventType
}

// BalanceChangeEvent is emitted for every ledger entry
type BalanceChangeEvent struct {
	Username        string
	TransactionID   int64
	TransactionType entities.TransactionType
	Amount          int64
	OldBalance      int64
	NewBalance      int64
}

func (e BalanceChangeEvent) Type() EventType {
	return EventTypeBalanceChange
}

// AccountCreatedEvent is emitted when the ledger lazily creates an account
type AccountCreatedEvent struct {
	Username       string
	InitialBalance int64
}

func (e AccountCreatedEvent) Type() EventType {
	return EventTypeAccountCreated
}

// GameSettledEvent is emitted after a single-shot game commits
type GameSettledEvent struct {
	Username string
	Game     entities.GameKind
	Bet      int64
	Won      bool
	Push     bool
	Winnings int64
	IsAllIn  bool
}

func (e GameSettledEvent) Type() EventType {
	return EventTypeGameSettled
}

// BlackjackResolvedEvent is emitted when a hand finishes, including by expiry
type BlackjackResolvedEvent struct {
	Username string
	Outcome  entities.BlackjackOutcome
	Bet      int64
	Winnings int64
	IsAllIn  bool
}

func (e BlackjackResolvedEvent) Type() EventType {
	return EventTypeBlackjackResolved
}

// DuelResolvedEvent is emitted when an accepted duel pays out
type DuelResolvedEvent struct {
	Challenger string
	Target     string
	Winner     string
	Pot        int64
	Sponsored  bool
}

func (e DuelResolvedEvent) Type() EventType {
	return EventTypeDuelResolved
}

// DuelExpiredEvent is emitted when an unanswered duel is refunded
type DuelExpiredEvent struct {
	Challenger string
	Target     string
	Refunded   int64
}

func (e DuelExpiredEvent) Type() EventType {
	return EventTypeDuelExpired
}

// EconomyResetEvent is emitted after a full economy reset
type EconomyResetEvent struct {
	AccountsReset int64
}

func (e EconomyResetEvent) Type() EventType {
	return EventTypeEconomyReset
}

// ItemPurchasedEvent is emitted after a marketplace purchase
type ItemPurchasedEvent struct {
	Username string
	Action   string
	Cost     int64
}

func (e ItemPurchasedEvent) Type() EventType {
	return EventTypeItemPurchased
}

// Handler is a function that handles events
type Handler func(ctx context.Context, event Event)

// Bus manages event subscriptions and dispatching
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe adds a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	log.WithFields(log.Fields{
		"eventType":    eventType,
		"handlerCount": len(b.handlers[eventType]),
	}).Debug("Subscribed handler to event type")
}

// SubscribeAll adds a handler for every event type
func (b *Bus) SubscribeAll(handler Handler) {
	for _, t := range AllEventTypes() {
		b.Subscribe(t, handler)
	}
}

// Emit publishes an event to all registered handlers.
// Handlers run on their own goroutines; a panicking handler is logged and dropped.
func (b *Bus) Emit(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[event.Type()]))
	copy(handlers, b.handlers[event.Type()])
	b.mu.RUnlock()

	log.WithFields(log.Fields{
		"eventType":    event.Type(),
		"handlerCount": len(handlers),
	}).Debug("Emitting event to handlers")

	for i, handler := range handlers {
		go func(h Handler, handlerIndex int) {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"eventType":    event.Type(),
						"handlerIndex": handlerIndex,
						"panic":        r,
					}).Error("Event handler panicked")
				}
			}()
			h(ctx, event)
		}(handler, i)
	}
}

// Publish emits the event immediately. It lets the bus stand in wherever an
// EventPublisher is expected outside a unit of work.
func (b *Bus) Publish(event Event) error {
	b.Emit(context.Background(), event)
	return nil
}

// TransactionalBus holds events raised inside a unit of work until it commits
type TransactionalBus struct {
	real    *Bus
	mu      sync.Mutex
	pending []Event
}

func NewTransactionalBus(real *Bus) *TransactionalBus {
	return &TransactionalBus{real: real}
}

func (b *TransactionalBus) Publish(e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.WithFields(log.Fields{
		"eventType":    e.Type(),
		"pendingCount": len(b.pending),
	}).Debug("Adding event to transactional bus pending queue")
	b.pending = append(b.pending, e)
	return nil
}

// Flush hands pending events to the main bus. Called after a successful commit.
func (b *TransactionalBus) Flush(ctx context.Context) error {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	if b.real == nil {
		return nil
	}

	// Events outlive the transaction, so they get a fresh context.
	eventCtx := context.Background()
	for _, ev := range pending {
		b.real.Emit(eventCtx, ev)
	}
	log.WithField("flushedCount", len(pending)).Debug("Flushed transactional bus")
	return nil
}

// Discard drops pending events after a rollback
func (b *TransactionalBus) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = nil
}

// Pending returns the number of events waiting for Flush
func (b *TransactionalBus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
