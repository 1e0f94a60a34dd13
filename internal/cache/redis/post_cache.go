// Package rediscache implements the fast read path on Redis: TTL'd post
// records plus a score-ordered index for ranked pagination.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
)

const (
	postKeyPrefix = "post:"
	indexKey      = "posts:index"
)

// commands is the subset of redis.Cmdable the cache needs. *redis.Client
// satisfies it; tests inject a scripted fake.
type commands interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	ZRem(ctx context.Context, key string, members ...any) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZScan(ctx context.Context, key string, cursor uint64, match string, count int64) *redis.ScanCmd
}

// PostCache implements feed.PostCache. All operations are safe for concurrent
// use by independent callers; writes are last-writer-wins per identifier.
type PostCache struct {
	rdb    commands
	logger *zap.Logger
}

// NewPostCache constructs a PostCache on the provided client.
func NewPostCache(rdb commands, logger *zap.Logger) *PostCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostCache{rdb: rdb, logger: logger}
}

func postKey(uid string) string {
	return postKeyPrefix + uid
}

// Put stores each record under its identifier with the given TTL and ranks it
// in the index by timestamp (score 0 when the record carries none). Prior
// entries for a recurring identifier are overwritten silently. Per-record
// failures are logged and skipped; the count of stored records is returned
// together with a CacheError when anything failed.
func (c *PostCache) Put(ctx context.Context, posts []feed.Post, ttl time.Duration) (int, error) {
	stored := 0
	var firstErr error
	for _, post := range posts {
		payload, err := json.Marshal(post)
		if err != nil {
			c.logger.Error("marshal post for cache", zap.String("uid", post.UID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := c.rdb.Set(ctx, postKey(post.UID), payload, ttl).Err(); err != nil {
			c.logger.Error("cache post", zap.String("uid", post.UID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		member := redis.Z{Score: float64(post.Timestamp), Member: post.UID}
		if err := c.rdb.ZAdd(ctx, indexKey, member).Err(); err != nil {
			c.logger.Error("index post", zap.String("uid", post.UID), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		stored++
	}
	if firstErr != nil {
		return stored, &feed.CacheError{Op: "put", Err: firstErr}
	}
	return stored, nil
}

// Get walks the index in descending score order starting at offset and fetches
// each entry's record. Entries whose backing record expired are removed from
// the index as a side effect and never count toward limit, so Get never
// returns a stale record. The category filter applies after the fetch. The
// index is over-read by a factor of two to amortize skipped entries.
func (c *PostCache) Get(ctx context.Context, category feed.Category, limit, offset int) ([]feed.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	start := int64(offset)
	stop := start + int64(limit)*2 - 1
	uids, err := c.rdb.ZRevRange(ctx, indexKey, start, stop).Result()
	if err != nil {
		return nil, &feed.CacheError{Op: "range index", Err: err}
	}

	results := make([]feed.Post, 0, limit)
	for _, uid := range uids {
		if len(results) >= limit {
			break
		}
		data, err := c.rdb.Get(ctx, postKey(uid)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Record expired out from under the index: purge lazily.
			if remErr := c.rdb.ZRem(ctx, indexKey, uid).Err(); remErr != nil {
				c.logger.Warn("evict stale index entry", zap.String("uid", uid), zap.Error(remErr))
			}
			continue
		}
		if err != nil {
			return nil, &feed.CacheError{Op: "get post", Err: err}
		}
		var post feed.Post
		if err := json.Unmarshal(data, &post); err != nil {
			c.logger.Error("decode cached post", zap.String("uid", uid), zap.Error(err))
			continue
		}
		if category != "" && post.Category != category {
			continue
		}
		results = append(results, post)
	}
	return results, nil
}

// Count returns the index cardinality. Entries whose record expired but has
// not been read yet are still counted, so this may transiently over-report.
func (c *PostCache) Count(ctx context.Context) (int64, error) {
	n, err := c.rdb.ZCard(ctx, indexKey).Result()
	if err != nil {
		return 0, &feed.CacheError{Op: "count index", Err: err}
	}
	return n, nil
}

// Reconcile incrementally scans the index and removes entries whose backing
// record no longer exists. Each scan step is bounded by batchSize so the
// index is never blocked wholesale. The sweep is idempotent and safe to run
// concurrently with itself.
func (c *PostCache) Reconcile(ctx context.Context, batchSize int64) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	var removed int64
	cursor := uint64(0)
	for {
		if err := ctx.Err(); err != nil {
			return removed, fmt.Errorf("reconcile interrupted: %w", err)
		}
		// ZScan yields member/score pairs interleaved.
		pairs, next, err := c.rdb.ZScan(ctx, indexKey, cursor, "", batchSize).Result()
		if err != nil {
			return removed, &feed.CacheError{Op: "scan index", Err: err}
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			uid := pairs[i]
			n, err := c.rdb.Exists(ctx, postKey(uid)).Result()
			if err != nil {
				return removed, &feed.CacheError{Op: "probe post", Err: err}
			}
			if n > 0 {
				continue
			}
			if err := c.rdb.ZRem(ctx, indexKey, uid).Err(); err != nil {
				return removed, &feed.CacheError{Op: "evict index entry", Err: err}
			}
			removed++
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
