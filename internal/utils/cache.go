package utils

import (
	"context"       // Context for Redis operations
	"encoding/json" // JSON encoding/decoding
	"errors"        // Sentinel matching
	"strconv"       // Key formatting
	"time"          // Time durations

	"github.com/redis/go-redis/v9" // Redis client
)

// Cache is a JSON read-through cache on Redis. A nil *Cache is valid and
// behaves as a cache that never hits.
type Cache struct {
	rdb redis.UniversalClient // Redis client
	ttl time.Duration         // Default entry lifetime
}

// NewCache wraps a Redis client
func NewCache(rdb redis.UniversalClient, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// Read-through entries are keyed by a generation counter. Writers bump the
// counter after committing, so a reader that loaded stale rows before the
// bump stores them under a key nobody asks for again.

// UserGenerationKey holds the cache generation of one user's wallet views
func UserGenerationKey(userID uint) string {
	return "cachegen:user:" + strconv.FormatUint(uint64(userID), 10)
}

// AdminUsersGenerationKey holds the cache generation of the admin user pages
const AdminUsersGenerationKey = "cachegen:admin:users"

// AdminUsersPrefix is the key prefix shared by all admin user pages
const AdminUsersPrefix = "admin:users:"

// WalletPrefix is the key prefix shared by every generation of a user's wallet
func WalletPrefix(userID uint) string {
	return "wallet:user:" + strconv.FormatUint(uint64(userID), 10) + ":"
}

// WalletKey is the cache key for a user's wallet
func WalletKey(userID uint, gen int64) string {
	return WalletPrefix(userID) + "gen:" + strconv.FormatInt(gen, 10)
}

// TxHistoryPrefix is the key prefix shared by all of a user's transaction pages
func TxHistoryPrefix(userID uint) string {
	return "txhistory:user:" + strconv.FormatUint(uint64(userID), 10) + ":"
}

// TxHistoryKey is the cache key for one page of a user's transactions
func TxHistoryKey(userID uint, gen int64, page, pageSize int) string {
	return TxHistoryPrefix(userID) + "gen:" + strconv.FormatInt(gen, 10) +
		":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
}

// AdminUsersKey is the cache key for one admin page of users with wallets
func AdminUsersKey(gen int64, page, pageSize int) string {
	return AdminUsersPrefix + "gen=" + strconv.FormatInt(gen, 10) +
		":page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
}

// Generation reads a generation counter, 0 if it was never bumped
func (c *Cache) Generation(ctx context.Context, key string) (int64, error) {
	if c == nil {
		return 0, nil
	}
	gen, err := c.rdb.Get(ctx, key).Int64() // Current counter
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Invalidate bumps the generation counter genKey and then deletes every key
// under the given prefixes. The counter has no TTL.
func (c *Cache) Invalidate(ctx context.Context, genKey string, prefixes ...string) error {
	if c == nil {
		return nil
	}
	errs := []error{c.rdb.Incr(ctx, genKey).Err()} // Retire older generations
	for _, prefix := range prefixes {
		errs = append(errs, c.DeletePrefix(ctx, prefix))
	}
	return errors.Join(errs...)
}

// GetCache retrieves a value from Redis and unmarshals it into dest
func (c *Cache) GetCache(ctx context.Context, key string, dest any) (bool, error) {
	if c == nil {
		return false, nil // Caching disabled
	}
	val, err := c.rdb.Get(ctx, key).Bytes() // Get value from Redis
	if errors.Is(err, redis.Nil) {
		return false, nil // Key does not exist
	} else if err != nil {
		return false, err // Other Redis error
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err // Corrupt entry counts as a miss
	}
	return true, nil
}

// SetCache sets a value in Redis with the cache TTL
func (c *Cache) SetCache(ctx context.Context, key string, value any) error {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(value) // Marshal value to JSON
	if err != nil {
		return err // Return error if marshaling fails
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err() // Set value in Redis with TTL
}

// DeleteCache deletes keys from Redis
func (c *Cache) DeleteCache(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err() // Delete keys from Redis
}

// DeletePrefix deletes every key starting with prefix
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	if c == nil {
		return nil
	}
	iter := c.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator() // Walk matching keys
	var batch []string
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := c.rdb.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	return c.DeleteCache(ctx, batch...)
}
