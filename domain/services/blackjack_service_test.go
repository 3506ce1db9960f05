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
	"pointsbank/infrastructure/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBlackjack(env *testEnv, cfg BlackjackConfig) interfaces.BlackjackService {
	return NewBlackjackService(
		env.executor,
		env.rng,
		env.prices,
		env.publisher,
		env.clock,
		memstore.New[string, *entities.BlackjackSession](),
		cfg,
	)
}

func TestBlackjack_NaturalAllIn(t *testing.T) {
	// user A K, dealer 9 7
	env := newTestEnv(t, testhelpers.Cards(1, 9, 13, 7)...)
	env.seed(t, "alice", 200)
	bj := newBlackjack(env, DefaultBlackjackConfig())

	result, err := bj.Start(context.Background(), "alice", 200)
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.Equal(t, entities.BlackjackNaturalWin, result.Outcome)
	assert.True(t, result.IsAllIn)
	assert.True(t, result.Finished)
	assert.Equal(t, int64(500), result.Winnings)
	assert.Equal(t, int64(700), result.NewBalance)
	assert.Equal(t, int64(700), env.balance(t, "alice"))
	assert.Nil(t, bj.Session("alice"))
	assert.Len(t, env.publisher.ofType(events.EventTypeBlackjackResolved), 1)
}

func TestBlackjack_NaturalOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		cards   []int
		outcome entities.BlackjackOutcome
		balance int64
	}{
		{"both naturals push", []int{1, 1, 13, 12}, entities.BlackjackNaturalPush, 1000},
		{"dealer natural", []int{10, 1, 7, 13}, entities.BlackjackDealerNatural, 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testhelpers.Cards(tt.cards...)...)
			env.seed(t, "alice", 1000)
			bj := newBlackjack(env, DefaultBlackjackConfig())

			result, err := bj.Start(context.Background(), "alice", 200)
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.True(t, result.Finished)
			assert.Equal(t, tt.balance, env.balance(t, "alice"))
			assert.Nil(t, bj.Session("alice"))
		})
	}
}

func TestBlackjack_StartOpensSession(t *testing.T) {
	// user 10 7, dealer 9 5
	env := newTestEnv(t, testhelpers.Cards(10, 9, 7, 5)...)
	env.seed(t, "alice", 1000)
	bj := newBlackjack(env, DefaultBlackjackConfig())

	result, err := bj.Start(context.Background(), "@Alice", 200)
	require.NoError(t, err)
	assert.Equal(t, entities.BlackjackInProgress, result.Outcome)
	assert.False(t, result.Finished)
	assert.Equal(t, []int{10, 7}, result.UserCards)
	assert.Equal(t, []int{9}, result.DealerCards, "only the up card is shown")
	assert.Equal(t, 17, result.UserTotal)
	assert.Equal(t, int64(800), result.NewBalance)

	session := bj.Session("alice")
	require.NotNil(t, session)
	assert.Equal(t, []int{9, 5}, session.DealerCards)

	txns := env.history(t, "alice")
	require.Len(t, txns, 1)
	assert.Equal(t, entities.TransactionTypeLoss, txns[0].Type)
	assert.Equal(t, "Blackjack bet", txns[0].Description)

	again, err := bj.Start(context.Background(), "alice", 200)
	require.NoError(t, err)
	assert.Equal(t, entities.FailureSessionAlreadyActive, again.Failure)
	assert.Equal(t, int64(800), env.balance(t, "alice"))
}

func TestBlackjack_StartRejections(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", 150)
	bj := newBlackjack(env, DefaultBlackjackConfig())

	result, err := bj.Start(context.Background(), "alice", 99)
	require.NoError(t, err)
	assert.Equal(t, entities.FailureBelowMinimumBet, result.Failure)

	result, err = bj.Start(context.Background(), "alice", 151)
	require.NoError(t, err)
	assert.Equal(t, entities.FailureInsufficientFunds, result.Failure)
	assert.Nil(t, bj.Session("alice"))
}

func TestBlackjack_HitThenBust(t *testing.T) {
	// user 2 3, dealer 9 5, hits 4 then K then Q
	draws := testhelpers.Cards(2, 9, 3, 5, 4, 13, 12)
	env := newTestEnv(t, draws...)
	env.seed(t, "alice", 1000)
	bj := newBlackjack(env, DefaultBlackjackConfig())
	ctx := context.Background()

	_, err := bj.Start(ctx, "alice", 200)
	require.NoError(t, err)

	result, err := bj.Hit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.BlackjackInProgress, result.Outcome)
	assert.Equal(t, 9, result.UserTotal)
	assert.Equal(t, []int{9}, result.DealerCards)
	assert.Equal(t, int64(800), result.NewBalance)

	result, err = bj.Hit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 19, result.UserTotal)

	result, err = bj.Hit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.BlackjackBust, result.Outcome)
	assert.True(t, result.Finished)
	assert.Equal(t, int64(800), result.NewBalance)
	assert.Nil(t, bj.Session("alice"))

	again, err := bj.Hit(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.FailureNoActiveSession, again.Failure)

	stand, err := bj.Stand(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, entities.FailureNoActiveSession, stand.Failure)
	assert.Len(t, env.history(t, "alice"), 1, "bust adds no entry beyond the bet")
}

func TestBlackjack_Stand(t *testing.T) {
	tests := []struct {
		name     string
		dealer   []int
		outcome  entities.BlackjackOutcome
		balance  int64
		winnings int64
		entries  int
	}{
		{"dealer busts", []int{10}, entities.BlackjackWin, 1200, 400, 2},
		{"push refunds bet", []int{4}, entities.BlackjackPush, 1000, 200, 2},
		{"dealer higher", []int{5}, entities.BlackjackLoss, 800, 0, 1},
		{"dealer stands on hard 17 below user", []int{2, 1}, entities.BlackjackWin, 1200, 400, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// user 10 8, dealer 9 5
			draws := append(testhelpers.Cards(10, 9, 8, 5), testhelpers.Cards(tt.dealer...)...)
			env := newTestEnv(t, draws...)
			env.seed(t, "alice", 1000)
			bj := newBlackjack(env, DefaultBlackjackConfig())
			ctx := context.Background()

			_, err := bj.Start(ctx, "alice", 200)
			require.NoError(t, err)

			result, err := bj.Stand(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Equal(t, tt.winnings, result.Winnings)
			assert.Equal(t, tt.balance, result.NewBalance)
			assert.Equal(t, tt.balance, env.balance(t, "alice"))
			assert.Len(t, env.history(t, "alice"), tt.entries)
			assert.Nil(t, bj.Session("alice"))
			assert.Zero(t, env.rng.Remaining())
		})
	}
}

func TestBlackjack_SweepForfeits(t *testing.T) {
	env := newTestEnv(t, testhelpers.Cards(10, 9, 7, 5)...)
	env.seed(t, "alice", 200)
	bj := newBlackjack(env, DefaultBlackjackConfig())
	ctx := context.Background()

	_, err := bj.Start(ctx, "alice", 200)
	require.NoError(t, err)

	env.clock.Advance(time.Minute)
	results, err := bj.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, bj.Session("alice"))

	env.clock.Advance(2 * time.Minute)
	results, err = bj.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, entities.BlackjackExpired, results[0].Outcome)
	assert.Nil(t, bj.Session("alice"))
	assert.Equal(t, int64(0), env.balance(t, "alice"))

	txns := env.history(t, "alice")
	require.Len(t, txns, 2)
	assert.Equal(t, entities.TransactionTypeLoss, txns[0].Type)
	assert.Equal(t, int64(0), txns[0].Amount)
	assert.Equal(t, int64(1), env.account(t, "alice").AllInLosses)
}

func TestBlackjack_SweepRefunds(t *testing.T) {
	env := newTestEnv(t, testhelpers.Cards(10, 9, 7, 5)...)
	env.seed(t, "alice", 1000)
	bj := newBlackjack(env, BlackjackConfig{IdleTimeout: time.Minute, ExpiryPolicy: entities.BlackjackExpiryRefund})
	ctx := context.Background()

	_, err := bj.Start(ctx, "alice", 300)
	require.NoError(t, err)
	assert.Equal(t, int64(700), env.balance(t, "alice"))

	env.clock.Advance(2 * time.Minute)
	results, err := bj.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(300), results[0].Winnings)
	assert.Equal(t, int64(1000), env.balance(t, "alice"))
}

func TestBlackjack_HitKeepsSessionAlive(t *testing.T) {
	env := newTestEnv(t, testhelpers.Cards(2, 9, 3, 5, 4)...)
	env.seed(t, "alice", 1000)
	bj := newBlackjack(env, DefaultBlackjackConfig())
	ctx := context.Background()

	_, err := bj.Start(ctx, "alice", 200)
	require.NoError(t, err)

	env.clock.Advance(90 * time.Second)
	_, err = bj.Hit(ctx, "alice")
	require.NoError(t, err)

	env.clock.Advance(90 * time.Second)
	results, err := bj.Sweep(ctx, env.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, bj.Session("alice"))
}

func TestBlackjack_AllInLossesCounted(t *testing.T) {
	t.Run("bust", func(t *testing.T) {
		// user 10 6, dealer 9 5, hits K
		env := newTestEnv(t, testhelpers.Cards(10, 9, 6, 5, 13)...)
		env.seed(t, "alice", 200)
		bj := newBlackjack(env, DefaultBlackjackConfig())
		ctx := context.Background()

		_, err := bj.Start(ctx, "alice", 200)
		require.NoError(t, err)

		result, err := bj.Hit(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, entities.BlackjackBust, result.Outcome)
		assert.True(t, result.IsAllIn)
		assert.Zero(t, result.NewBalance)

		account := env.account(t, "alice")
		assert.Equal(t, int64(1), account.AllInLosses)
		assert.Zero(t, account.AllInWins)
		assert.Equal(t, int64(200), account.TotalLost)

		txns := env.history(t, "alice")
		require.Len(t, txns, 2)
		assert.Equal(t, "Blackjack bust", txns[0].Description)
		assert.Zero(t, txns[0].Amount)
	})

	t.Run("stand loss", func(t *testing.T) {
		// user 10 7, dealer 9 9
		env := newTestEnv(t, testhelpers.Cards(10, 9, 7, 9)...)
		env.seed(t, "alice", 200)
		bj := newBlackjack(env, DefaultBlackjackConfig())
		ctx := context.Background()

		_, err := bj.Start(ctx, "alice", 200)
		require.NoError(t, err)

		result, err := bj.Stand(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, entities.BlackjackLoss, result.Outcome)
		assert.Zero(t, result.NewBalance)

		account := env.account(t, "alice")
		assert.Equal(t, int64(1), account.AllInLosses)
		assert.Equal(t, int64(200), account.TotalLost)
	})

	t.Run("stand win", func(t *testing.T) {
		// user 10 9, dealer 9 8
		env := newTestEnv(t, testhelpers.Cards(10, 9, 9, 8)...)
		env.seed(t, "alice", 200)
		bj := newBlackjack(env, DefaultBlackjackConfig())
		ctx := context.Background()

		_, err := bj.Start(ctx, "alice", 200)
		require.NoError(t, err)

		result, err := bj.Stand(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, entities.BlackjackWin, result.Outcome)

		account := env.account(t, "alice")
		assert.Equal(t, int64(1), account.AllInWins)
		assert.Zero(t, account.AllInLosses)
	})
}

func TestBlackjack_SessionReadDuringHits(t *testing.T) {
	// user 2 2, dealer 9 5, then ten aces
	draws := testhelpers.Cards(2, 9, 2, 5)
	for i := 0; i < 10; i++ {
		draws = append(draws, testhelpers.Cards(1)...)
	}
	env := newTestEnv(t, draws...)
	env.seed(t, "alice", 1000)
	bj := newBlackjack(env, DefaultBlackjackConfig())
	ctx := context.Background()

	_, err := bj.Start(ctx, "alice", 200)
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 10; i++ {
			_, err := bj.Hit(ctx, "alice")
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if session := bj.Session("alice"); session != nil {
				assert.GreaterOrEqual(t, len(session.UserCards), 2)
			}
		}
	}()
	wg.Wait()

	session := bj.Session("alice")
	require.NotNil(t, session)
	assert.Len(t, session.UserCards, 12)
	assert.Zero(t, env.rng.Remaining())
}
