package accounts

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/hutechbot/backend/internal/errors"
)

func TestInMemoryRepoAccounts(t *testing.T) {
	ctx := context.Background()

	t.Run("added account becomes active", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv002"}))

		active, err := repo.GetActive(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, "sv002", active.Username)

		first, err := repo.Get(ctx, 100, "sv001")
		require.NoError(t, err)
		require.False(t, first.Active)
	})

	t.Run("add validates input", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.ErrorIs(t, repo.Add(ctx, &Account{Username: "sv001"}), apperrors.ErrValidation)
		require.ErrorIs(t, repo.Add(ctx, &Account{ChatID: 100}), apperrors.ErrValidation)
	})

	t.Run("re-adding keeps creation time", func(t *testing.T) {
		repo := NewInMemoryRepo()
		now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		repo.nowFunc = func() time.Time { return now }

		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))

		repo.nowFunc = func() time.Time { return now.Add(time.Hour) }
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))

		account, err := repo.Get(ctx, 100, "sv001")
		require.NoError(t, err)
		require.Equal(t, now, account.CreatedAt)
		require.Equal(t, now.Add(time.Hour), account.UpdatedAt)
	})

	t.Run("list puts the active account first", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv002"}))
		require.NoError(t, repo.SetActive(ctx, 100, "sv001"))

		list, err := repo.List(ctx, 100)
		require.NoError(t, err)
		require.Len(t, list, 2)
		require.Equal(t, "sv001", list[0].Username)
		require.True(t, list[0].Active)
	})

	t.Run("set active unknown account", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.ErrorIs(t, repo.SetActive(ctx, 100, "ghost"), apperrors.ErrAccountNotFound)
	})

	t.Run("remove and remove all", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv002"}))

		require.NoError(t, repo.Remove(ctx, 100, "sv001"))
		_, err := repo.Get(ctx, 100, "sv001")
		require.ErrorIs(t, err, apperrors.ErrAccountNotFound)

		require.NoError(t, repo.RemoveAll(ctx, 100))
		list, err := repo.List(ctx, 100)
		require.NoError(t, err)
		require.Empty(t, list)
	})

	t.Run("update tokens", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))

		expiry := time.Now().Add(time.Hour)
		require.NoError(t, repo.UpdateTokens(ctx, 100, "sv001", "tok", "legacy", expiry))

		account, err := repo.Get(ctx, 100, "sv001")
		require.NoError(t, err)
		require.Equal(t, "tok", account.Token)
		require.Equal(t, "legacy", account.LegacyToken)
		require.Equal(t, expiry, account.TokenExpiry)

		require.ErrorIs(t, repo.UpdateTokens(ctx, 100, "ghost", "tok", "", expiry), apperrors.ErrAccountNotFound)
	})

	t.Run("stored accounts are isolated from callers", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))

		account, err := repo.Get(ctx, 100, "sv001")
		require.NoError(t, err)
		account.Token = "mutated"

		again, err := repo.Get(ctx, 100, "sv001")
		require.NoError(t, err)
		require.Empty(t, again.Token)
	})
}

func TestInMemoryRepoSettings(t *testing.T) {
	ctx := context.Background()

	t.Run("preferred campus", func(t *testing.T) {
		repo := NewInMemoryRepo()
		require.NoError(t, repo.Add(ctx, &Account{ChatID: 100, Username: "sv001"}))

		campus, err := repo.GetPreferredCampus(ctx, 100)
		require.NoError(t, err)
		require.Empty(t, campus)

		require.NoError(t, repo.SetPreferredCampus(ctx, 100, "Thu Duc Campus"))
		campus, err = repo.GetPreferredCampus(ctx, 100)
		require.NoError(t, err)
		require.Equal(t, "Thu Duc Campus", campus)

		require.NoError(t, repo.ClearPreferredCampus(ctx, 100))
		campus, err = repo.GetPreferredCampus(ctx, 100)
		require.NoError(t, err)
		require.Empty(t, campus)
	})

	t.Run("consent", func(t *testing.T) {
		repo := NewInMemoryRepo()

		consented, err := repo.HasConsented(ctx, 100)
		require.NoError(t, err)
		require.False(t, consented)

		require.NoError(t, repo.SetConsent(ctx, 100, true))
		consented, err = repo.HasConsented(ctx, 100)
		require.NoError(t, err)
		require.True(t, consented)
	})
}

func TestAccountKey(t *testing.T) {
	require.Equal(t, "100/sv001", Key(100, "sv001"))
	require.Equal(t, "100/sv001", (&Account{ChatID: 100, Username: "sv001"}).Key())
}

func TestAccountLabel(t *testing.T) {
	require.Equal(t, "sv001", (&Account{Username: "sv001"}).Label())
	require.Equal(t, "Nguyễn Văn A", (&Account{Username: "sv001", DisplayName: "Nguyễn Văn A"}).Label())
}
