package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmallory/pagefeed/internal/feed"
)

const sessionKeyPrefix = "session:"

// SessionTable implements feed.SessionTable on Redis. One key per principal
// holds the currently valid session id; replacing it invalidates any token
// carrying the previous id even though that token's signature still verifies.
type SessionTable struct {
	rdb commands
}

// NewSessionTable constructs a SessionTable on the provided client.
func NewSessionTable(rdb commands) *SessionTable {
	return &SessionTable{rdb: rdb}
}

func sessionKey(principal string) string {
	return sessionKeyPrefix + principal
}

// Replace records sessionID as the only valid session for the principal.
func (t *SessionTable) Replace(ctx context.Context, principal, sessionID string, ttl time.Duration) error {
	if err := t.rdb.Set(ctx, sessionKey(principal), sessionID, ttl).Err(); err != nil {
		return &feed.CacheError{Op: "replace session", Err: err}
	}
	return nil
}

// Lookup returns the current session id for the principal, or feed.ErrNotFound.
func (t *SessionTable) Lookup(ctx context.Context, principal string) (string, error) {
	id, err := t.rdb.Get(ctx, sessionKey(principal)).Result()
	if errors.Is(err, redis.Nil) {
		return "", feed.ErrNotFound
	}
	if err != nil {
		return "", &feed.CacheError{Op: "lookup session", Err: err}
	}
	return id, nil
}

// Remove deletes the principal's session entry and reports whether one existed.
func (t *SessionTable) Remove(ctx context.Context, principal string) (bool, error) {
	n, err := t.rdb.Del(ctx, sessionKey(principal)).Result()
	if err != nil {
		return false, &feed.CacheError{Op: "remove session", Err: err}
	}
	return n > 0, nil
}
