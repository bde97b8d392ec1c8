package auth

import (
	"context"
	"testing"
	"time"

	"portfolio/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisResetStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)

	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisResetStore(rdb, "test:reset:"), s
}

func TestRedisResetStore_StateMachine(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.CreatePasswordReset(ctx, &models.PasswordReset{
		TokenHash: "h1",
		Email:     "ann@example.com",
		ExpiresAt: now.Add(time.Hour),
	}))
	assert.True(t, mr.Exists("test:reset:h1"))
	assert.Greater(t, mr.TTL("test:reset:h1"), time.Hour)

	_, err := store.ConsumePasswordReset(ctx, "missing", now)
	assert.ErrorIs(t, err, models.ErrTokenInvalid)

	_, err = store.ConsumePasswordReset(ctx, "h1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, models.ErrTokenExpired)

	email, err := store.ConsumePasswordReset(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", email)

	_, err = store.ConsumePasswordReset(ctx, "h1", now)
	assert.ErrorIs(t, err, models.ErrTokenAlreadyUsed)

	require.NoError(t, store.ReleasePasswordReset(ctx, "h1"))
	email, err = store.ConsumePasswordReset(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", email)

	assert.NoError(t, store.ReleasePasswordReset(ctx, "missing"))
	assert.False(t, mr.Exists("test:reset:missing"))
}

func TestRedisResetStore_WithManager(t *testing.T) {
	f := newFixture(t)
	store, _ := newRedisStore(t)
	f.manager.resets = store

	token := f.requestToken(t)
	require.NoError(t, f.manager.RedeemPasswordReset(context.Background(), token, "N3w!password"))
	assert.ErrorIs(t, f.manager.RedeemPasswordReset(context.Background(), token, "N3w!password"), models.ErrTokenAlreadyUsed)
}
