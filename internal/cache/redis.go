package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/oggyb/guestmatch/internal/config"
)

const likeCountTTL = time.Hour

// releaseScript deletes a guard only if it still holds our token, so a guard
// that expired and was re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.Client.Close()
}

// KeyForLikeCount generates Redis key for a user's like count in one event.
func (c *RedisCache) KeyForLikeCount(eventID, userID string) string {
	return fmt.Sprintf("likes:count:%s:%s", eventID, userID)
}

func (c *RedisCache) UpdateLikeCount(ctx context.Context, eventID, userID string, count int64) error {
	// Always refresh TTL when updating
	return c.Client.Set(ctx, c.KeyForLikeCount(eventID, userID), count, likeCountTTL).Err()
}

// GetLikeCount returns the cached count; found is false on a miss.
func (c *RedisCache) GetLikeCount(ctx context.Context, eventID, userID string) (count int64, found bool, err error) {
	key := c.KeyForLikeCount(eventID, userID)
	val, err := c.Client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil // cache miss
	} else if err != nil {
		return 0, false, err
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	// refresh TTL on access
	_ = c.Client.Expire(ctx, key, likeCountTTL).Err()
	return n, true, nil
}

// InvalidateLikeCounts drops cached counts; the next read recounts from the DB.
func (c *RedisCache) InvalidateLikeCounts(ctx context.Context, eventID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, u := range userIDs {
		keys = append(keys, c.KeyForLikeCount(eventID, u))
	}
	return c.Client.Del(ctx, keys...).Err()
}

// InvalidateUserLikeCounts drops userID's counts in every event. Used after a
// block, which is not scoped to one event.
func (c *RedisCache) InvalidateUserLikeCounts(ctx context.Context, userIDs ...string) error {
	for _, u := range userIDs {
		iter := c.Client.Scan(ctx, 0, fmt.Sprintf("likes:count:*:%s", u), 100).Iterator()
		for iter.Next(ctx) {
			if err := c.Client.Del(ctx, iter.Val()).Err(); err != nil {
				return err
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}
	}
	return nil
}

func guardKey(action, actorID, targetID, eventID string) string {
	return fmt.Sprintf("guard:%s:%s:%s:%s", action, actorID, targetID, eventID)
}

// AcquireGuard takes the re-entrancy guard for one action. ok is false while
// another invocation of the same action holds it. The guard expires after ttl
// even if release is never called.
func (c *RedisCache) AcquireGuard(
	ctx context.Context,
	action, actorID, targetID, eventID string,
	ttl time.Duration,
) (release func(), ok bool, err error) {
	key := guardKey(action, actorID, targetID, eventID)
	token := uuid.NewString()

	ok, err = c.Client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return func() {}, ok, err
	}
	release = func() {
		// the caller's ctx may already be done
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(rctx, c.Client, []string{key}, token).Err()
	}
	return release, true, nil
}

func notifyKey(kind, eventID, userID string) string {
	return fmt.Sprintf("notify:%s:%s:%s", kind, eventID, userID)
}

// Reserve implements the notification ledger on TTL keys: the key lives for
// the window, so SET NX succeeds again once the window has passed. The window
// is measured by Redis, not by at.
func (c *RedisCache) Reserve(
	ctx context.Context,
	userID, eventID, kind string,
	at time.Time,
	window time.Duration,
) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return c.Client.SetNX(ctx, notifyKey(kind, eventID, userID), at.UnixMilli(), window).Result()
}
