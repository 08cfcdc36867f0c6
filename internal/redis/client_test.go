package redisclient

import (
	"context"
	"crypto/tls"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsDefaults(t *testing.T) {
	ro := Options{Addr: "localhost:6379"}.redisOptions()

	assert.Equal(t, 10, ro.PoolSize)
	assert.Equal(t, 0, ro.DB)
	assert.Equal(t, 5*time.Second, ro.DialTimeout)
	assert.Equal(t, 2*time.Second, ro.ReadTimeout)
	assert.Equal(t, 2*time.Second, ro.WriteTimeout)
	assert.Nil(t, ro.TLSConfig)
}

func TestOptionsCarryPoolDBAndTLS(t *testing.T) {
	ro := Options{
		Addr:         "cache.internal:6380",
		Username:     "app",
		Password:     "s3cret",
		DB:           3,
		TLS:          true,
		PoolSize:     25,
		MinIdleConns: 4,
		DialTimeout:  time.Second,
		IOTimeout:    750 * time.Millisecond,
	}.redisOptions()

	assert.Equal(t, "cache.internal:6380", ro.Addr)
	assert.Equal(t, "app", ro.Username)
	assert.Equal(t, "s3cret", ro.Password)
	assert.Equal(t, 3, ro.DB)
	assert.Equal(t, 25, ro.PoolSize)
	assert.Equal(t, 4, ro.MinIdleConns)
	assert.Equal(t, time.Second, ro.DialTimeout)
	assert.Equal(t, 750*time.Millisecond, ro.ReadTimeout)
	assert.Equal(t, 750*time.Millisecond, ro.WriteTimeout)
	require.NotNil(t, ro.TLSConfig)
	assert.Equal(t, "cache.internal", ro.TLSConfig.ServerName)
	assert.Equal(t, uint16(tls.VersionTLS12), ro.TLSConfig.MinVersion)
}

func TestOptionsClampMinIdleToPool(t *testing.T) {
	ro := Options{Addr: "localhost:6379", PoolSize: 2, MinIdleConns: 8}.redisOptions()
	assert.Equal(t, 1, ro.MinIdleConns)
}

func TestNewRedisClientFailsFastOnDeadAddress(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1", DialTimeout: 500 * time.Millisecond})
	assert.Nil(t, rdb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis 127.0.0.1:1")
}

func TestNewRedisClientHonorsCallerContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRedisClient(ctx, Options{Addr: "127.0.0.1:1"})
	assert.ErrorIs(t, err, context.Canceled)
}
