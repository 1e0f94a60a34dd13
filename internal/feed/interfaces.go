package feed

import (
	"context"
	"time"
)

// Fetcher retrieves the raw markup of a remote page. Implementations may block
// for tens of seconds and must honor ctx cancellation.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Snapshot, error)
}

// PostStore is the durable record store. SaveNew commits the whole batch in a
// single transaction: previously unseen records become visible together or not
// at all.
type PostStore interface {
	SaveNew(ctx context.Context, posts []Post) (int, error)
	List(ctx context.Context, category Category, limit, offset int) ([]Post, error)
	CountByCategory(ctx context.Context) (map[Category]int64, error)
}

// PostCache is the TTL-based read-through cache with a ranked index.
type PostCache interface {
	Put(ctx context.Context, posts []Post, ttl time.Duration) (int, error)
	Get(ctx context.Context, category Category, limit, offset int) ([]Post, error)
	Count(ctx context.Context) (int64, error)
	Reconcile(ctx context.Context, batchSize int64) (int64, error)
}

// JobStore persists asynchronous job records for later polling.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, progress string, result *CrawlSummary, errText string) error
	GetJob(ctx context.Context, jobID string) (Job, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs. Depth reports the
// number of submitted items not yet picked up by a worker.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
	Depth() int
}

// BlobStore archives raw snapshots and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes ingest-completed events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// PrincipalStore resolves login names to principals. Missing names yield
// ErrNotFound.
type PrincipalStore interface {
	FindByName(ctx context.Context, name string) (Principal, error)
}

// SessionTable tracks the single live session id per principal. It is the
// source of truth for token validity regardless of signature state.
type SessionTable interface {
	Replace(ctx context.Context, principal, sessionID string, ttl time.Duration) error
	Lookup(ctx context.Context, principal string) (string, error)
	Remove(ctx context.Context, principal string) (bool, error)
}

// SessionService issues, validates, and revokes principal-bound tokens.
type SessionService interface {
	Login(ctx context.Context, username, password string) (string, error)
	Validate(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, principal string) (bool, error)
}

// AdmissionPolicy gates job submission. A false return means the caller must
// reject the submission without starting the pipeline.
type AdmissionPolicy interface {
	AllowSubmit(principal string) bool
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and job identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
