package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jmallory/pagefeed/internal/feed"
)

type sessionEntry struct {
	id       string
	expireAt time.Time
}

// SessionTable is an in-memory feed.SessionTable for development/testing.
type SessionTable struct {
	mu      sync.Mutex
	entries map[string]sessionEntry
	now     func() time.Time
}

// NewSessionTable constructs a SessionTable.
func NewSessionTable() *SessionTable {
	return &SessionTable{
		entries: make(map[string]sessionEntry),
		now:     time.Now,
	}
}

// Replace records sessionID as the only valid session for the principal.
func (t *SessionTable) Replace(_ context.Context, principal, sessionID string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := sessionEntry{id: sessionID}
	if ttl > 0 {
		entry.expireAt = t.now().Add(ttl)
	}
	t.entries[principal] = entry
	return nil
}

// Lookup returns the current session id for the principal, or feed.ErrNotFound.
func (t *SessionTable) Lookup(_ context.Context, principal string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[principal]
	if !ok {
		return "", feed.ErrNotFound
	}
	if !entry.expireAt.IsZero() && !t.now().Before(entry.expireAt) {
		delete(t.entries, principal)
		return "", feed.ErrNotFound
	}
	return entry.id, nil
}

// Remove deletes the principal's session entry and reports whether one existed.
func (t *SessionTable) Remove(_ context.Context, principal string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[principal]
	delete(t.entries, principal)
	return ok, nil
}
