package main

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-booking/internal/config"
)

func TestOpenLockerReturnsRedisErrors(t *testing.T) {
	cfg := config.Config{
		RedisAddr:        "127.0.0.1:1",
		RedisDialTimeout: 300 * time.Millisecond,
		LockTTL:          time.Second,
	}

	locker, ping, closeFn, err := openLocker(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Nil(t, locker)
	assert.Nil(t, ping)
	assert.Nil(t, closeFn)
}

func TestOpenLockerFallsBackInProcess(t *testing.T) {
	locker, ping, closeFn, err := openLocker(context.Background(), config.Config{}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, locker)
	assert.Nil(t, ping)
	closeFn()

	ran := false
	require.NoError(t, locker.WithSlotLock(context.Background(), "2026-10-21T0900", func(ctx context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}
