package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"pointsbank/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionalBus_FlushDeliversToMainBus(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	received := make(chan BalanceChangeEvent, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		if balanceEvent, ok := event.(BalanceChangeEvent); ok {
			received <- balanceEvent
		} else {
			t.Errorf("Expected BalanceChangeEvent, got %T", event)
		}
	})

	testEvent := BalanceChangeEvent{
		Username:        "alice",
		TransactionID:   7,
		TransactionType: entities.TransactionTypeWin,
		Amount:          500,
		OldBalance:      1000,
		NewBalance:      1500,
	}

	require.NoError(t, transactionalBus.Publish(testEvent))
	assert.Equal(t, 1, transactionalBus.Pending())

	require.NoError(t, transactionalBus.Flush(context.Background()))
	assert.Equal(t, 0, transactionalBus.Pending())

	select {
	case got := <-received:
		assert.Equal(t, testEvent, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Event was not received within timeout")
	}
}

func TestTransactionalBus_DiscardDropsEvents(t *testing.T) {
	mainBus := NewBus()
	transactionalBus := NewTransactionalBus(mainBus)

	called := make(chan struct{}, 1)
	mainBus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		called <- struct{}{}
	})

	require.NoError(t, transactionalBus.Publish(BalanceChangeEvent{Username: "bob"}))
	transactionalBus.Discard()
	require.NoError(t, transactionalBus.Flush(context.Background()))

	select {
	case <-called:
		t.Fatal("discarded event should not be delivered")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_MultipleEventsAndTypes(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := map[EventType]int{}
	bus.SubscribeAll(func(ctx context.Context, event Event) {
		defer wg.Done()
		mu.Lock()
		seen[event.Type()]++
		mu.Unlock()
	})

	wg.Add(3)
	require.NoError(t, bus.Publish(GameSettledEvent{Username: "a", Game: entities.GameDice}))
	require.NoError(t, bus.Publish(DuelResolvedEvent{Challenger: "a", Target: "b", Winner: "a", Pot: 200}))
	require.NoError(t, bus.Publish(GameSettledEvent{Username: "b", Game: entities.GameSlots}))
	wg.Wait()

	assert.Equal(t, 2, seen[EventTypeGameSettled])
	assert.Equal(t, 1, seen[EventTypeDuelResolved])
}

func TestBus_HandlerPanicIsRecovered(t *testing.T) {
	bus := NewBus()
	done := make(chan struct{})

	bus.Subscribe(EventTypeEconomyReset, func(ctx context.Context, event Event) {
		panic("boom")
	})
	bus.Subscribe(EventTypeEconomyReset, func(ctx context.Context, event Event) {
		close(done)
	})

	bus.Emit(context.Background(), EconomyResetEvent{AccountsReset: 3})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second handler did not run")
	}
}
