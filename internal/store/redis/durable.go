// Package redis is the Redis durable backend of the guide store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/guide/internal/domain"
)

// DefaultKeyTTL bounds how long Redis keeps a value. The guide store checks
// its own expiry on read; this only stops dead keys from piling up.
const DefaultKeyTTL = 48 * time.Hour

// Durable stores guide cache entries as plain Redis strings.
type Durable struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewDurable wraps client. keyTTL <= 0 means DefaultKeyTTL.
func NewDurable(client redis.UniversalClient, keyTTL time.Duration) *Durable {
	if keyTTL <= 0 {
		keyTTL = DefaultKeyTTL
	}
	return &Durable{client: client, ttl: keyTTL}
}

func (d *Durable) Read(ctx context.Context, key string) (string, bool, error) {
	val, err := d.client.Get(ctx, DurableKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, &domain.StorageError{Op: "read", Key: key, Err: err}
	}
	return val, true, nil
}

func (d *Durable) Write(ctx context.Context, key, value string) error {
	if err := d.client.Set(ctx, DurableKey(key), value, d.ttl).Err(); err != nil {
		return &domain.StorageError{Op: "write", Key: key, Err: err}
	}
	return nil
}

// Keys lists the store keys currently held in Redis.
func (d *Durable) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := d.client.Scan(ctx, 0, KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k, err := ExtractKey(iter.Val())
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan guide keys: %w", err)
	}
	return keys, nil
}

// Flush removes every key written by the guide service.
func (d *Durable) Flush(ctx context.Context) error {
	iter := d.client.Scan(ctx, 0, KeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := d.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete guide key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush guide keys: %w", err)
	}
	return nil
}

func (d *Durable) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
