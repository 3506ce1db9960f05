package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/testhelpers"
	"pointsbank/events"
	"pointsbank/infrastructure/snapshot"

	"github.com/stretchr/testify/require"
)

// recordingPublisher keeps every event synchronously
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) ofType(t events.EventType) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

// testEnv is a real ledger over an in-memory snapshot store
type testEnv struct {
	store     *snapshot.Store
	executor  interfaces.LedgerExecutor
	rng       *testhelpers.ScriptedRandom
	clock     *testhelpers.FakeClock
	publisher *recordingPublisher
	prices    entities.PriceTable
}

func newTestEnv(t *testing.T, draws ...int) *testEnv {
	t.Helper()
	store := snapshot.NewMemory(nil)
	clock := testhelpers.NewFakeClock(time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC))
	return &testEnv{
		store:     store,
		executor:  NewLedgerExecutor(store, clock),
		rng:       testhelpers.NewScriptedRandom(draws...),
		clock:     clock,
		publisher: &recordingPublisher{},
		prices: entities.PriceTable{
			MinBets:     entities.DefaultMinBets(),
			ActionCosts: map[string]int64{"shoutout": 500, entities.ActionSponsorDuel: 1000},
		},
	}
}

func (e *testEnv) seed(t *testing.T, username string, amount int64) {
	t.Helper()
	err := e.executor.Execute(context.Background(), func(ledger interfaces.Ledger) error {
		_, err := ledger.Deposit(context.Background(), username, amount, "seed")
		return err
	})
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, username string) int64 {
	t.Helper()
	var balance int64
	err := e.executor.Execute(context.Background(), func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(context.Background(), username)
		if account != nil {
			balance = account.Balance
		}
		return err
	})
	require.NoError(t, err)
	return balance
}

func (e *testEnv) account(t *testing.T, username string) *entities.Account {
	t.Helper()
	var out *entities.Account
	err := e.executor.Execute(context.Background(), func(ledger interfaces.Ledger) error {
		account, err := ledger.GetBalance(context.Background(), username)
		out = account.Clone()
		return err
	})
	require.NoError(t, err)
	return out
}

// history returns entries newest first, excluding the seed deposit
func (e *testEnv) history(t *testing.T, username string) []*entities.Transaction {
	t.Helper()
	var out []*entities.Transaction
	err := e.executor.Execute(context.Background(), func(ledger interfaces.Ledger) error {
		txns, err := ledger.GetTransactions(context.Background(), username, 100)
		for _, txn := range txns {
			if txn.Description != "seed" {
				out = append(out, txn)
			}
		}
		return err
	})
	require.NoError(t, err)
	return out
}
