// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmallory/pagefeed/internal/feed"
)

// PostStoreConfig controls the Postgres connection pool used for post rows.
type PostStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostStore is the durable post record store. It implements feed.PostStore.
type PostStore struct {
	pool pool
}

// NewPool opens a pgx connection pool from the config. Stores built on the
// same pool share connections; the pool's lifecycle belongs to the caller.
func NewPool(ctx context.Context, cfg PostStoreConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

// NewPostStore creates a Postgres-backed PostStore using the provided config.
func NewPostStore(ctx context.Context, cfg PostStoreConfig) (*PostStore, error) {
	p, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PostStore{pool: p}, nil
}

// NewPostStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewPostStoreWithPool(p pool) (*PostStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *PostStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveNew persists the previously unseen records of the batch and returns how
// many were written. The whole batch commits as one transaction: on failure
// nothing is applied and the caller may retry the batch as a unit. Records
// whose identifier already exists are skipped silently.
func (s *PostStore) SaveNew(ctx context.Context, posts []feed.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &feed.StorageError{Op: "begin", Err: err}
	}
	defer func() {
		// No-op once the transaction committed.
		_ = tx.Rollback(ctx)
	}()

	saved := 0
	for _, post := range posts {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM posts WHERE uid = $1)`, post.UID,
		).Scan(&exists)
		if err != nil {
			return 0, &feed.StorageError{Op: "check post", Err: err}
		}
		if exists {
			continue
		}
		_, err = tx.Exec(ctx, `
INSERT INTO posts (uid, post_url, video_url, image_url, comments, reactions, category, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			post.UID,
			post.PostURL,
			post.VideoURL,
			post.ImageURL,
			post.Comments,
			post.Reactions,
			string(post.Category),
			post.Timestamp,
		)
		if err != nil {
			return 0, &feed.StorageError{Op: "insert post", Err: err}
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, &feed.StorageError{Op: "commit", Err: err}
	}
	return saved, nil
}

// List returns posts from durable storage, newest score first. An empty
// category means no filter.
func (s *PostStore) List(ctx context.Context, category feed.Category, limit, offset int) ([]feed.Post, error) {
	rows, err := s.pool.Query(ctx, `
SELECT uid, post_url, video_url, image_url, comments, reactions, category, ts
FROM posts
WHERE ($1 = '' OR category = $1)
ORDER BY ts DESC, uid
LIMIT $2 OFFSET $3`,
		string(category), limit, offset)
	if err != nil {
		return nil, &feed.StorageError{Op: "list posts", Err: err}
	}
	defer rows.Close()

	var posts []feed.Post
	for rows.Next() {
		var p feed.Post
		var cat string
		err := rows.Scan(
			&p.UID,
			&p.PostURL,
			&p.VideoURL,
			&p.ImageURL,
			&p.Comments,
			&p.Reactions,
			&cat,
			&p.Timestamp,
		)
		if err != nil {
			return nil, &feed.StorageError{Op: "scan post", Err: err}
		}
		p.Category = feed.Category(cat)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &feed.StorageError{Op: "list posts", Err: err}
	}
	return posts, nil
}

// CountByCategory returns the category histogram over durable storage.
func (s *PostStore) CountByCategory(ctx context.Context) (map[feed.Category]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(uid) FROM posts GROUP BY category`)
	if err != nil {
		return nil, &feed.StorageError{Op: "count categories", Err: err}
	}
	defer rows.Close()

	counts := make(map[feed.Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, &feed.StorageError{Op: "scan category count", Err: err}
		}
		counts[feed.Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, &feed.StorageError{Op: "count categories", Err: err}
	}
	return counts, nil
}

// errIsNoRows reports whether err is the pgx no-rows sentinel.
func errIsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
