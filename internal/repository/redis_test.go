package repository

import (
	"context"
	"testing"
	"time"

	"leihlokal/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	defer client.Close()

	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetState", func(t *testing.T) {
		state := &models.DragState{
			SessionID: "abc",
			Dragging:  true,
			Multi:     true,
			ItemID:    "drill",
			StartCol:  1,
			CurCol:    2,
			StartRow:  3,
			CurRow:    5,
		}

		require.NoError(t, repo.SetDragState(ctx, state))
		assert.True(t, s.Exists("leih:drag:abc"))

		got, err := repo.GetDragState(ctx, "abc")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, state.ItemID, got.ItemID)
		assert.Equal(t, 5, got.CurRow)
		assert.True(t, got.Multi)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, repo.SetDragState(ctx, &models.DragState{SessionID: "old"}))
		s.FastForward(2 * time.Hour)

		got, err := repo.GetDragState(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("GetNonExistentState", func(t *testing.T) {
		got, err := repo.GetDragState(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearState", func(t *testing.T) {
		require.NoError(t, repo.SetDragState(ctx, &models.DragState{SessionID: "gone"}))
		require.NoError(t, repo.ClearDragState(ctx, "gone"))

		got, _ := repo.GetDragState(ctx, "gone")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "client-1", 2, time.Second)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, "client-1", 2, time.Second)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(2 * time.Second)
		allowed, err = repo.CheckRateLimit(ctx, "client-1", 2, time.Second)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("ServerDown", func(t *testing.T) {
		s.SetError("LOADING")
		defer s.SetError("")

		_, err := repo.GetDragState(ctx, "abc")
		assert.Error(t, err)
	})
}

func TestRedisStateRepository_NilClient(t *testing.T) {
	repo := NewRedisStateRepository(nil, time.Minute)
	ctx := context.Background()

	_, err := repo.GetDragState(ctx, "x")
	assert.Error(t, err)
	assert.Error(t, repo.SetDragState(ctx, &models.DragState{}))
	assert.Error(t, repo.ClearDragState(ctx, "x"))
	_, err = repo.CheckRateLimit(ctx, "x", 1, time.Second)
	assert.Error(t, err)
}
