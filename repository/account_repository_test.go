package repository

import (
	"context"
	"testing"
	"time"

	"pointsbank/domain/entities"
	"pointsbank/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_Get(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	t.Run("account not found", func(t *testing.T) {
		account, err := repo.Get(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, account)
	})

	t.Run("account found", func(t *testing.T) {
		created := testutil.CreateTestAccount("alice", 500)
		createAccount(t, repo, created)

		account, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		require.NotNil(t, account)
		assert.Equal(t, int64(500), account.Balance)
		assert.Equal(t, int64(500), account.TotalDeposited)
		assert.True(t, created.LastUpdated.Equal(account.LastUpdated))
	})

	t.Run("duplicate create leaves the row alone", func(t *testing.T) {
		inserted, err := repo.Create(ctx, testutil.CreateTestAccount("alice", 1))
		require.NoError(t, err)
		assert.False(t, inserted)

		account, err := repo.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(500), account.Balance)
	})
}

func createAccount(t *testing.T, repo *AccountRepository, account *entities.Account) {
	t.Helper()
	inserted, err := repo.Create(context.Background(), account)
	require.NoError(t, err)
	require.True(t, inserted)
}

func TestAccountRepository_Update(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	account := testutil.CreateTestAccount("bob", 1000)
	createAccount(t, repo, account)

	account.Balance = 250
	account.TotalLost = 750
	account.AllInLosses = 1
	require.NoError(t, repo.Update(ctx, account))

	got, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(250), got.Balance)
	assert.Equal(t, int64(750), got.TotalLost)
	assert.Equal(t, int64(1), got.AllInLosses)

	t.Run("missing account", func(t *testing.T) {
		err := repo.Update(ctx, testutil.CreateTestAccount("ghost", 1))
		assert.Error(t, err)
	})

	t.Run("negative balance rejected by constraint", func(t *testing.T) {
		got.Balance = -1
		assert.Error(t, repo.Update(ctx, got))
	})
}

func TestAccountRepository_ResetAndLeaderboard(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewAccountRepository(testDB.DB)
	ctx := context.Background()

	for name, balance := range map[string]int64{"carol": 300, "alice": 300, "bob": 900, "dave": 10} {
		createAccount(t, repo, testutil.CreateTestAccount(name, balance))
	}

	board, err := repo.GetLeaderboard(ctx, 3)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, "bob", board[0].Username)
	assert.Equal(t, "alice", board[1].Username)
	assert.Equal(t, "carol", board[2].Username)

	resetAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	count, err := repo.ResetAll(ctx, resetAt)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	got, err := repo.Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
	assert.True(t, got.LastUpdated.Equal(resetAt))
	assert.Equal(t, int64(900), got.TotalDeposited)
}
