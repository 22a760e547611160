// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyPrefix = "anieflix:lock:"

// Only the token holder may extend or delete the key.
var (
	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)
)

// RedisConfig holds connection settings for the shared lock store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration // lease length; refreshed while held
}

// RedisLocker shares folder locks between replicas that mount the same media
// root. Leases are refreshed at a third of the TTL until released, so a crashed
// holder frees its folders after at most one TTL. A lease whose key vanished or
// was taken over, or that could not be refreshed for a full TTL, is marked lost.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRedisLocker connects to Redis and verifies the connection.
func NewRedisLocker(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to Redis lock store")
	return newRedisLocker(client, cfg.TTL, logger), nil
}

func newRedisLocker(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string) (*Lease, error) {
	rkey := keyPrefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, rkey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	lease := NewLease(func() {
		close(stop)
		<-done
		relCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.client, []string{rkey}, token).Err(); err != nil {
			l.logger.Warn().Err(err).Str("key", key).Msg("lock release failed; lease will expire")
		}
	})
	go l.refresh(lease, rkey, token, stop, done)
	return lease, nil
}

func (l *RedisLocker) refresh(lease *Lease, rkey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(l.ttl / 3)
	defer t.Stop()
	lastOK := time.Now()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			n, err := refreshScript.Run(ctx, l.client, []string{rkey}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if err != nil {
				if time.Since(lastOK) < l.ttl {
					l.logger.Warn().Err(err).Str("key", rkey).Msg("lock refresh failed")
					continue
				}
				err = fmt.Errorf("no refresh for %s: %w", time.Since(lastOK).Round(time.Millisecond), err)
			} else if n == 0 {
				err = errors.New("key expired or taken over")
			} else {
				lastOK = time.Now()
				continue
			}
			l.logger.Error().Err(err).Str("key", rkey).Msg("lock lease lost")
			lease.MarkLost()
			return
		}
	}
}

// Close closes the Redis client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
