// Package feed defines core types shared across subsystems.
package feed

import "time"

// Category classifies a post by the media markers found at extraction time.
type Category string

// Category values derived during extraction. Precedence when several markers
// appear in the same fragment: video, then reels, then image, then text.
const (
	CategoryText  Category = "text"
	CategoryImage Category = "image"
	CategoryVideo Category = "video"
	CategoryReels Category = "reels"
)

// Valid reports whether c is one of the known category values.
func (c Category) Valid() bool {
	switch c {
	case CategoryText, CategoryImage, CategoryVideo, CategoryReels:
		return true
	default:
		return false
	}
}

// Post is a single extracted post record. Posts are created once by the
// extractor and never mutated afterward; the durable copy is permanent while
// the cached copy expires with its TTL.
type Post struct {
	UID       string   `json:"uid" db:"uid"`
	PostURL   string   `json:"post_url" db:"post_url"`
	VideoURL  string   `json:"video_url,omitempty" db:"video_url"`
	ImageURL  string   `json:"image_url,omitempty" db:"image_url"`
	Comments  int      `json:"comments" db:"comments"`
	Reactions int      `json:"reactions" db:"reactions"`
	Category  Category `json:"category" db:"category"`

	// Timestamp is the unix time used as the cache rank score. Zero when the
	// source provided none, which leaves ordering among such posts undefined.
	Timestamp int64 `json:"timestamp,omitempty" db:"ts"`
}

// CrawlRequest captures one fetch-extract-persist-cache run.
type CrawlRequest struct {
	PageURL  string `json:"page_url"`
	MaxPosts int    `json:"limit"`

	// Principal records who submitted the run, for audit logging only.
	Principal string `json:"-"`
}

// CrawlSummary is the terminal result of a pipeline run.
type CrawlSummary struct {
	PostsFound  int    `json:"posts_found"`
	Stored      int    `json:"db_saved"`
	Cached      int    `json:"cache_saved"`
	SnapshotURI string `json:"snapshot_uri,omitempty"`
	Message     string `json:"message"`
}

// JobStatus represents the lifecycle state of an asynchronous crawl job.
type JobStatus string

// Job status values persisted in the job store.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is the polling-visible record of an asynchronous crawl.
type Job struct {
	ID        string        `json:"id"`
	Status    JobStatus     `json:"status"`
	Progress  string        `json:"progress,omitempty"`
	Submitted time.Time     `json:"submitted_at"`
	Started   *time.Time    `json:"started_at,omitempty"`
	Finished  *time.Time    `json:"finished_at,omitempty"`
	Request   CrawlRequest  `json:"request"`
	Result    *CrawlSummary `json:"result,omitempty"`
	ErrorText string        `json:"error,omitempty"`
}

// QueueItem wraps a job ready to run.
type QueueItem struct {
	JobID     string
	Request   CrawlRequest
	Submitted int64
}

// Snapshot is the raw page content returned by a Fetcher.
type Snapshot struct {
	URL      string
	HTML     []byte
	Duration time.Duration
}

// Principal is an authenticated identity loaded from the principal store.
type Principal struct {
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	Role         string `db:"role"`
}
