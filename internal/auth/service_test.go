package auth

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jmallory/pagefeed/internal/feed"
)

type fakePrincipals struct {
	byName map[string]feed.Principal
}

func (f *fakePrincipals) FindByName(_ context.Context, name string) (feed.Principal, error) {
	p, ok := f.byName[name]
	if !ok {
		return feed.Principal{}, feed.ErrNotFound
	}
	return p, nil
}

type fakeSessions struct {
	mu   sync.Mutex
	live map[string]string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{live: make(map[string]string)}
}

func (f *fakeSessions) Replace(_ context.Context, principal, sessionID string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[principal] = sessionID
	return nil
}

func (f *fakeSessions) Lookup(_ context.Context, principal string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.live[principal]
	if !ok {
		return "", feed.ErrNotFound
	}
	return id, nil
}

func (f *fakeSessions) Remove(_ context.Context, principal string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[principal]
	delete(f.live, principal)
	return ok, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqIDs struct{ n int }

func (s *seqIDs) NewID() (string, error) {
	s.n++
	return fmt.Sprintf("sess-%03d", s.n), nil
}

func newTestService(t *testing.T) (*Service, *fakeClock, *fakeSessions) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	principals := &fakePrincipals{byName: map[string]feed.Principal{
		"admin1": {Username: "admin1", PasswordHash: string(hash), Role: "admin"},
	}}
	sessions := newFakeSessions()
	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}

	svc, err := NewService(Config{Secret: []byte("test-secret"), TokenTTL: 15 * time.Minute},
		principals, sessions, clock, &seqIDs{}, nil)
	require.NoError(t, err)
	return svc, clock, sessions
}

func TestLoginIssuesValidatableToken(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	principal, err := svc.Validate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "admin1", principal)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "admin1", "wrong")
	require.ErrorIs(t, err, feed.ErrUnauthorized)
}

func TestLoginRejectsUnknownPrincipal(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), "ghost", "hunter2")
	require.ErrorIs(t, err, feed.ErrUnauthorized)
}

func TestSecondLoginSupersedesFirstToken(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)

	// The first token still carries a good signature, but its session id is
	// no longer the live one.
	_, err = svc.Validate(ctx, first)
	require.ErrorIs(t, err, feed.ErrUnauthorized)

	principal, err := svc.Validate(ctx, second)
	require.NoError(t, err)
	require.Equal(t, "admin1", principal)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	svc, clock, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)

	clock.advance(16 * time.Minute)

	_, err = svc.Validate(ctx, token)
	require.ErrorIs(t, err, feed.ErrUnauthorized)
}

func TestValidateRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)

	_, err = svc.Validate(ctx, token+"x")
	require.ErrorIs(t, err, feed.ErrUnauthorized)
}

func TestRevokeInvalidatesOutstandingToken(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.Login(ctx, "admin1", "hunter2")
	require.NoError(t, err)

	removed, err := svc.Revoke(ctx, "admin1")
	require.NoError(t, err)
	require.True(t, removed)

	_, err = svc.Validate(ctx, token)
	require.ErrorIs(t, err, feed.ErrUnauthorized)

	removed, err = svc.Revoke(ctx, "admin1")
	require.NoError(t, err)
	require.False(t, removed)
}

func TestHashPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}
