package services

import (
	"context"
	"testing"

	"pointsbank/domain/entities"
	"pointsbank/domain/interfaces"
	"pointsbank/domain/random"
	"pointsbank/infrastructure/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithdrawBeyondBalanceChangesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "alice", 300)
	ctx := context.Background()

	var ok bool
	err := env.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
		var err error
		ok, err = ledger.Withdraw(ctx, "alice", 301, "too much")
		return err
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(300), env.balance(t, "alice"))
	assert.Empty(t, env.history(t, "alice"))
}

// Random play never drives a balance negative and every balance matches its latest entry.
func TestRandomPlayKeepsLedgerConsistent(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 1337} {
		env := newTestEnv(t)
		rng := random.New(seed)
		games := NewGameService(env.executor, rng, env.prices, env.publisher)
		bj := NewBlackjackService(env.executor, rng, env.prices, env.publisher, env.clock,
			memstore.New[string, *entities.BlackjackSession](), DefaultBlackjackConfig())
		duels := NewDuelService(env.executor, rng, env.prices, env.publisher, env.clock,
			memstore.New[entities.DuelKey, *entities.PendingDuel](), DefaultDuelConfig())
		ctx := context.Background()

		players := []string{"alice", "bob", "carol"}
		for _, p := range players {
			env.seed(t, p, 2000)
		}
		kinds := games.Games()
		choices := map[entities.GameKind][]string{
			entities.GameCoinflip: {"heads", "tails"},
			entities.GameRoulette: {"red", "black", "odd", "even", "0", "17"},
			entities.GameRPS:      {"rock", "paper", "scissors"},
		}

		for i := 0; i < 300; i++ {
			p := players[rng.Intn(len(players))]
			bet := int64(100 + rng.Intn(900))
			switch rng.Intn(5) {
			case 0, 1:
				kind := kinds[rng.Intn(len(kinds))]
				choice := ""
				if opts := choices[kind]; opts != nil {
					choice = opts[rng.Intn(len(opts))]
				}
				_, err := games.Play(ctx, entities.GameRequest{Username: p, Game: kind, Bet: bet, Choice: choice})
				require.NoError(t, err)
			case 2:
				if bj.Session(p) == nil {
					_, err := bj.Start(ctx, p, bet)
					require.NoError(t, err)
				} else if rng.Intn(2) == 0 {
					_, err := bj.Hit(ctx, p)
					require.NoError(t, err)
				} else {
					_, err := bj.Stand(ctx, p)
					require.NoError(t, err)
				}
			case 3:
				target := players[rng.Intn(len(players))]
				_, err := duels.Challenge(ctx, p, target, bet, false)
				require.NoError(t, err)
			case 4:
				_, err := duels.Accept(ctx, p, "")
				require.NoError(t, err)
			}
		}

		for _, p := range players {
			account := env.account(t, p)
			require.NotNil(t, account)
			assert.GreaterOrEqual(t, account.Balance, int64(0), "seed %d player %s", seed, p)

			var txns []*entities.Transaction
			require.NoError(t, env.executor.Execute(ctx, func(ledger interfaces.Ledger) error {
				var err error
				txns, err = ledger.GetTransactions(ctx, p, 10000)
				return err
			}))
			require.NotEmpty(t, txns)
			assert.Equal(t, account.Balance, txns[0].BalanceAfter, "seed %d player %s", seed, p)
		}
	}
}
