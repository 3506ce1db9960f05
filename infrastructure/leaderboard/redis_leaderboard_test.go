package leaderboard

import (
	"context"
	"testing"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/events"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func names(accounts []*entities.Account) []string {
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a.Username)
	}
	return out
}

func TestMergeTies(t *testing.T) {
	t.Run("orders tied usernames ascending", func(t *testing.T) {
		head := []redis.Z{
			{Score: 900, Member: "zed"},
			{Score: 500, Member: "carol"},
			{Score: 500, Member: "bob"},
		}
		got := mergeTies(head, 500, []string{"carol", "bob", "alice"}, 3)

		assert.Equal(t, []string{"zed", "alice", "bob"}, names(got))
		assert.Equal(t, int64(900), got[0].Balance)
		assert.Equal(t, int64(500), got[1].Balance)
	})

	t.Run("ties above the boundary", func(t *testing.T) {
		head := []redis.Z{
			{Score: 500, Member: "bob"},
			{Score: 500, Member: "alice"},
			{Score: 100, Member: "carol"},
		}
		got := mergeTies(head, 100, []string{"carol"}, 3)

		assert.Equal(t, []string{"alice", "bob", "carol"}, names(got))
		assert.Equal(t, int64(500), got[1].Balance)
	})

	t.Run("no ties at the boundary", func(t *testing.T) {
		head := []redis.Z{
			{Score: 300, Member: "bob"},
			{Score: 200, Member: "alice"},
		}
		got := mergeTies(head, 200, []string{"alice"}, 5)

		assert.Equal(t, []string{"bob", "alice"}, names(got))
	})
}

func setupRedis(t *testing.T) redis.UniversalClient {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
			Labels: map[string]string{
				"test":      "pointsbank-leaderboard",
				"test-name": t.Name(),
				"cleanup":   "auto",
			},
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: Failed to terminate redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := Connect(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func change(username string, txnID, balance int64) events.BalanceChangeEvent {
	return events.BalanceChangeEvent{
		Username:        username,
		TransactionID:   txnID,
		TransactionType: entities.TransactionTypeDeposit,
		NewBalance:      balance,
	}
}

func TestRedisLeaderboard(t *testing.T) {
	rdb := setupRedis(t)
	ctx := context.Background()

	t.Run("rebuild then apply", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:apply")
		require.NoError(t, board.Rebuild(ctx, []*entities.Account{
			{Username: "alice", Balance: 500},
			{Username: "bob", Balance: 300},
		}))

		require.NoError(t, board.Apply(ctx, change("bob", 10, 800)))

		top, err := board.Top(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"bob", "alice"}, names(top))
		assert.Equal(t, int64(800), top[0].Balance)
	})

	t.Run("stale update is ignored", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:stale")
		require.NoError(t, board.Rebuild(ctx, nil))

		require.NoError(t, board.Apply(ctx, change("alice", 7, 700)))
		require.NoError(t, board.Apply(ctx, change("alice", 5, 100)))

		top, err := board.Top(ctx, 10)
		require.NoError(t, err)
		require.Len(t, top, 1)
		assert.Equal(t, int64(700), top[0].Balance)
	})

	t.Run("reset zeroes scores and fences older updates", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:reset")
		require.NoError(t, board.Rebuild(ctx, nil))
		require.NoError(t, board.Apply(ctx, change("alice", 1, 400)))
		require.NoError(t, board.Apply(ctx, change("bob", 2, 600)))

		require.NoError(t, board.Apply(ctx, events.BalanceChangeEvent{
			Username:        entities.SystemUsername,
			TransactionID:   3,
			TransactionType: entities.TransactionTypeReset,
		}))
		require.NoError(t, board.Apply(ctx, change("carol", 2, 900)))

		top, err := board.Top(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob"}, names(top))
		for _, a := range top {
			assert.Zero(t, a.Balance)
		}
	})

	t.Run("ties at the limit", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:ties")
		require.NoError(t, board.Rebuild(ctx, []*entities.Account{
			{Username: "dave", Balance: 100},
			{Username: "carol", Balance: 100},
			{Username: "bob", Balance: 100},
			{Username: "alice", Balance: 200},
		}))

		top, err := board.Top(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, []string{"alice", "bob", "carol"}, names(top))
	})

	t.Run("ties above the limit keep username order", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:upper-ties")
		require.NoError(t, board.Rebuild(ctx, []*entities.Account{
			{Username: "zoe", Balance: 500},
			{Username: "amy", Balance: 500},
			{Username: "max", Balance: 500},
			{Username: "ned", Balance: 100},
		}))

		top, err := board.Top(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, []string{"amy", "max", "zoe", "ned"}, names(top))
	})

	t.Run("bus subscription projects events", func(t *testing.T) {
		board := NewRedisLeaderboard(rdb, "test:bus")
		require.NoError(t, board.Rebuild(ctx, nil))
		bus := events.NewBus()
		board.Subscribe(bus)

		require.NoError(t, bus.Publish(change("erin", 1, 250)))

		assert.Eventually(t, func() bool {
			top, err := board.Top(ctx, 1)
			return err == nil && len(top) == 1 && top[0].Username == "erin"
		}, 2*time.Second, 20*time.Millisecond)
	})
}
