package cache

import (
	"context"
	"testing"
	"time"

	"einvoice/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetSetExpire(t *testing.T) {
	m := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "Registered", time.Minute))
	v, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, "Registered", v)

	now = now.Add(time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "entry expires at its ttl")

	assert.ErrorIs(t, m.Set(ctx, "", "v", time.Minute), ErrEmptyKey)
	assert.ErrorIs(t, m.Set(ctx, "k", "v", 0), ErrInvalidTTL)
}

func TestMemory_Lock(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	token, ok, err := m.TryLock(ctx, "lock", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, _ = m.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok, "second caller must not acquire a held lock")

	require.NoError(t, m.Unlock(ctx, "lock", "someone-else"))
	_, ok, _ = m.TryLock(ctx, "lock", time.Minute)
	assert.False(t, ok, "a wrong token does not release the lock")

	require.NoError(t, m.Unlock(ctx, "lock", token))
	_, ok, _ = m.TryLock(ctx, "lock", time.Minute)
	assert.True(t, ok)
}

func TestNew_DefaultsToMemory(t *testing.T) {
	assert.IsType(t, &Memory{}, New(config.RedisConfig{}))
	assert.IsType(t, &Redis{}, New(config.RedisConfig{Addr: "localhost:6379"}))
}
