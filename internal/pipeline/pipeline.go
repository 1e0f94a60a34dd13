// Package pipeline runs one page ingest end to end: fetch, extract, persist,
// cache, and announce.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jmallory/pagefeed/internal/feed"
	"github.com/jmallory/pagefeed/internal/hash/sha256"
	"github.com/jmallory/pagefeed/internal/metrics"
)

// Progress stage labels, in execution order. They surface verbatim in job
// polling responses.
const (
	StageFetching   = "fetching page"
	StageExtracting = "extracting posts"
	StageSaving     = "saving posts"
	StageCaching    = "caching posts"
)

// Config controls pipeline behavior.
type Config struct {
	CacheTTL        time.Duration
	BlobPrefix      string
	Topic           string
	ContentType     string
	DefaultMaxPosts int
}

// extractor turns raw markup into post records.
type extractor interface {
	Extract(snapshot string, maxPosts int) []feed.Post
}

// ProgressFunc receives stage transitions. It may be nil.
type ProgressFunc func(stage string)

// Pipeline wires the ingest collaborators together. BlobStore and Publisher
// are optional; a nil value skips that leg.
type Pipeline struct {
	fetcher   feed.Fetcher
	extractor extractor
	posts     feed.PostStore
	cache     feed.PostCache
	blobs     feed.BlobStore
	publisher feed.Publisher
	clock     feed.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Pipeline.
func New(
	fetcher feed.Fetcher,
	ex extractor,
	posts feed.PostStore,
	cache feed.PostCache,
	blobs feed.BlobStore,
	publisher feed.Publisher,
	clock feed.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	if cfg.DefaultMaxPosts <= 0 {
		cfg.DefaultMaxPosts = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:   fetcher,
		extractor: ex,
		posts:     posts,
		cache:     cache,
		blobs:     blobs,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run executes one crawl. A fetch failure aborts the run; a database failure
// does not stop the cache leg, it is reported in the summary message instead.
// Snapshot archiving and event publishing are best-effort.
func (p *Pipeline) Run(ctx context.Context, req feed.CrawlRequest, progress ProgressFunc) (feed.CrawlSummary, error) {
	start := p.clock.Now()
	maxPosts := req.MaxPosts
	if maxPosts <= 0 {
		maxPosts = p.cfg.DefaultMaxPosts
	}

	report(progress, StageFetching)
	snapshot, err := p.fetcher.Fetch(ctx, req.PageURL)
	if err != nil {
		return feed.CrawlSummary{}, fmt.Errorf("fetch page: %w", err)
	}
	p.logger.Debug("fetched page",
		zap.String("page_url", req.PageURL),
		zap.Int("bytes", len(snapshot.HTML)),
		zap.Duration("duration", snapshot.Duration),
	)

	snapshotURI := p.archiveSnapshot(ctx, req.PageURL, snapshot)

	report(progress, StageExtracting)
	posts := p.extractor.Extract(string(snapshot.HTML), maxPosts)
	for _, post := range posts {
		metrics.ObservePost(req.PageURL, string(post.Category))
	}

	summary := feed.CrawlSummary{
		PostsFound:  len(posts),
		SnapshotURI: snapshotURI,
		Message:     "completed",
	}
	if len(posts) == 0 {
		p.logger.Info("no posts extracted", zap.String("page_url", req.PageURL))
		summary.Message = "no posts found"
		p.publishCompletion(ctx, req, summary)
		metrics.ObserveCrawlDuration(req.PageURL, p.clock.Now().Sub(start))
		return summary, nil
	}

	var problems []string

	report(progress, StageSaving)
	stored, err := p.posts.SaveNew(ctx, posts)
	if err != nil {
		// The cache leg still runs so readers see fresh posts even when the
		// database is down.
		p.logger.Error("save posts", zap.String("page_url", req.PageURL), zap.Error(err))
		problems = append(problems, fmt.Sprintf("database save failed: %v", err))
	}
	summary.Stored = stored
	metrics.ObserveStored(stored)

	report(progress, StageCaching)
	cached, err := p.cache.Put(ctx, posts, p.cfg.CacheTTL)
	if err != nil {
		p.logger.Error("cache posts", zap.String("page_url", req.PageURL), zap.Error(err))
		problems = append(problems, fmt.Sprintf("cache write failed: %v", err))
	}
	summary.Cached = cached
	metrics.ObserveCached(cached)

	if len(problems) > 0 {
		summary.Message = strings.Join(problems, "; ")
	}

	p.publishCompletion(ctx, req, summary)
	metrics.ObserveCrawlDuration(req.PageURL, p.clock.Now().Sub(start))
	return summary, nil
}

func (p *Pipeline) archiveSnapshot(ctx context.Context, pageURL string, snapshot feed.Snapshot) string {
	if p.blobs == nil {
		return ""
	}
	path := p.buildBlobPath(pageURL, snapshot.HTML)
	uri, err := p.blobs.PutObject(ctx, path, p.cfg.ContentType, snapshot.HTML)
	if err != nil {
		p.logger.Warn("archive snapshot", zap.String("page_url", pageURL), zap.Error(err))
		return ""
	}
	return uri
}

// buildBlobPath names snapshots by host, capture time, and a short content
// digest so two captures within the same second cannot clobber each other.
func (p *Pipeline) buildBlobPath(pageURL string, html []byte) string {
	host := metrics.SanitizePage(pageURL)
	stamp := p.clock.Now().UTC().Format("20060102T150405Z")
	digest := sha256.ShortHex(html, 8)
	prefix := strings.Trim(p.cfg.BlobPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s-%s.html", host, stamp, digest)
	}
	return fmt.Sprintf("%s/%s/%s-%s.html", prefix, host, stamp, digest)
}

func (p *Pipeline) publishCompletion(ctx context.Context, req feed.CrawlRequest, summary feed.CrawlSummary) {
	if p.publisher == nil || p.cfg.Topic == "" {
		return
	}
	payload := map[string]any{
		"page_url":     req.PageURL,
		"principal":    req.Principal,
		"posts_found":  summary.PostsFound,
		"db_saved":     summary.Stored,
		"cache_saved":  summary.Cached,
		"snapshot_uri": summary.SnapshotURI,
		"timestamp":    p.clock.Now().UTC().Format(time.RFC3339),
	}
	if _, err := p.publisher.Publish(ctx, p.cfg.Topic, payload); err != nil {
		p.logger.Warn("publish completion event", zap.String("page_url", req.PageURL), zap.Error(err))
	}
}

func report(progress ProgressFunc, stage string) {
	if progress != nil {
		progress(stage)
	}
}
