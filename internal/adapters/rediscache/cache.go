// Package rediscache implements the process-external shared hot cache:
// per-user working-set values with TTL, plus the optimistic-lock
// compare-and-swap protocol used for the `user_context:{user}` key.
package rediscache

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a Redis client behind the ports.HotCache contract.
type Cache struct {
	client      redis.UniversalClient
	defaultTTL  time.Duration
	maxAttempts int
}

func New(redisURL string, defaultTTLSeconds int) (*Cache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	ttl := time.Duration(defaultTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, defaultTTL: ttl, maxAttempts: 3}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	ttl := c.defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// CompareAndSwap implements the watch/read/modify/CAS loop: acquire a
// watch on the key, read the current value, compute the new value,
// commit only if the key was not concurrently modified; otherwise
// restart up to maxAttempts, with exponential-backoff jitter between
// attempts. After exhausting attempts, ok is false and the caller
// drops the cache update; the durable log remains authoritative.
func (c *Cache) CompareAndSwap(ctx context.Context, key string, ttlSeconds int, modify func(current []byte, exists bool) ([]byte, error)) (bool, error) {
	ttl := c.defaultTTL
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}

	backoff := 50 * time.Millisecond
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		ok, err := c.tryCompareAndSwap(ctx, key, ttl, modify)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}

		if attempt == c.maxAttempts-1 {
			break
		}

		jitter := time.Duration(rand.Int63n(int64(backoff)))
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(backoff + jitter):
		}
		backoff *= 2
	}

	log.Printf("[rediscache] optimistic lock lost after %d attempts for key %s, dropping cache update", c.maxAttempts, key)
	return false, nil
}

func (c *Cache) tryCompareAndSwap(ctx context.Context, key string, ttl time.Duration, modify func(current []byte, exists bool) ([]byte, error)) (bool, error) {
	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		exists := true
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				return err
			}
			exists = false
			current = nil
		}

		next, err := modify(current, exists)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, ttl)
			return nil
		})
		return err
	}

	err := c.client.Watch(ctx, txf, key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	return false, err
}
