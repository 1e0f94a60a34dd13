package postgres

import (
	"context"
	"fmt"

	"github.com/jmallory/pagefeed/internal/feed"
)

// PrincipalStore resolves login names against the principals table. It
// implements feed.PrincipalStore.
type PrincipalStore struct {
	pool pool
}

// NewPrincipalStore constructs a PrincipalStore on an existing pool. The pool
// is shared with the PostStore; its lifecycle belongs to the caller.
func NewPrincipalStore(p pool) (*PrincipalStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PrincipalStore{pool: p}, nil
}

// FindByName returns the principal for a login name, or feed.ErrNotFound.
func (s *PrincipalStore) FindByName(ctx context.Context, name string) (feed.Principal, error) {
	var p feed.Principal
	err := s.pool.QueryRow(ctx,
		`SELECT username, password_hash, role FROM principals WHERE username = $1`,
		name,
	).Scan(&p.Username, &p.PasswordHash, &p.Role)
	if err != nil {
		if errIsNoRows(err) {
			return feed.Principal{}, feed.ErrNotFound
		}
		return feed.Principal{}, &feed.StorageError{Op: "find principal", Err: err}
	}
	return p, nil
}
