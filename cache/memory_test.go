package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "tkb:100", Key("tkb", 100))
	require.Equal(t, "diem:100:sv001", Key("diem", 100, "sv001"))
	require.Equal(t, "hocphan:100:sv001:2024-2025", Key("hocphan", 100, "sv001", "2024-2025"))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	type payload struct {
		Name string `json:"name"`
	}

	t.Run("round trip with cache timestamp", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		store.nowFunc = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, Key("tkb", 100, "sv001"), payload{Name: "a"}, time.Hour))

		var got payload
		cachedAt, found, err := store.Get(ctx, Key("tkb", 100, "sv001"), &got)
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "a", got.Name)
		require.Equal(t, now, cachedAt.UTC())
	})

	t.Run("miss", func(t *testing.T) {
		store := NewMemoryStore()
		_, found, err := store.Get(ctx, "tkb:100", nil)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("expired entry is a miss", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		store.nowFunc = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "tkb:100", payload{Name: "a"}, time.Hour))

		store.nowFunc = func() time.Time { return now.Add(2 * time.Hour) }
		_, found, err := store.Get(ctx, "tkb:100", nil)
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("clear user leaves other users alone", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Set(ctx, Key("tkb", 100), payload{}, time.Hour))
		require.NoError(t, store.Set(ctx, Key("diem", 100, "sv001"), payload{}, time.Hour))
		require.NoError(t, store.Set(ctx, Key("tkb", 1007), payload{}, time.Hour))

		require.NoError(t, store.ClearUser(ctx, 100))

		_, found, _ := store.Get(ctx, Key("tkb", 100), nil)
		require.False(t, found)
		_, found, _ = store.Get(ctx, Key("diem", 100, "sv001"), nil)
		require.False(t, found)
		_, found, _ = store.Get(ctx, Key("tkb", 1007), nil)
		require.True(t, found)
	})

	t.Run("sweep removes only expired entries", func(t *testing.T) {
		store := NewMemoryStore()
		now := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)
		store.nowFunc = func() time.Time { return now }

		require.NoError(t, store.Set(ctx, "short:100", payload{}, time.Minute))
		require.NoError(t, store.Set(ctx, "long:100", payload{}, time.Hour))

		store.nowFunc = func() time.Time { return now.Add(10 * time.Minute) }
		require.Equal(t, 1, store.Sweep())

		_, found, _ := store.Get(ctx, "long:100", nil)
		require.True(t, found)
	})
}
