package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options carries the connection settings the api-server reads from its
// environment. Zero values fall back to small single-node defaults.
type Options struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	TLS          bool
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	IOTimeout    time.Duration // read and write
}

func (o Options) redisOptions() *redis.Options {
	ro := &redis.Options{
		Addr:         o.Addr,
		Username:     o.Username,
		Password:     o.Password,
		DB:           o.DB,
		PoolSize:     o.PoolSize,
		MinIdleConns: o.MinIdleConns,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.IOTimeout,
		WriteTimeout: o.IOTimeout,
	}
	if ro.PoolSize <= 0 {
		ro.PoolSize = 10
	}
	if ro.MinIdleConns < 0 || ro.MinIdleConns > ro.PoolSize {
		ro.MinIdleConns = 1
	}
	if ro.DialTimeout <= 0 {
		ro.DialTimeout = 5 * time.Second
	}
	if o.IOTimeout <= 0 {
		ro.ReadTimeout = 2 * time.Second
		ro.WriteTimeout = 2 * time.Second
	}
	if o.TLS {
		host, _, err := net.SplitHostPort(o.Addr)
		if err != nil {
			host = o.Addr
		}
		ro.TLSConfig = &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
	}
	return ro
}

// NewRedisClient dials Redis and pings it within ctx so a bad address fails
// startup instead of the first booking.
func NewRedisClient(ctx context.Context, o Options) (*redis.Client, error) {
	rdb := redis.NewClient(o.redisOptions())

	pingCtx, cancel := context.WithTimeout(ctx, rdb.Options().DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s (db %d): %w", o.Addr, o.DB, err)
	}

	return rdb, nil
}
